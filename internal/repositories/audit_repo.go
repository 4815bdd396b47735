package repositories

import (
	"context"

	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Log(ctx context.Context, entry models.AuditLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (actor, component, action, entity_type, entity_id, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.Actor.Hex(), entry.Component.Hex(), entry.Action, entry.EntityType, entry.EntityID, entry.Meta)
	return err
}

func (r *AuditRepo) GetByEntity(ctx context.Context, component common.Address, entityType, entityID string, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, actor, component, action, entity_type, entity_id, meta, created_at
		FROM audit_log WHERE component = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at DESC LIMIT $4 OFFSET $5
	`, component.Hex(), entityType, entityID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanAuditRows(rows)
}

func (r *AuditRepo) GetByActor(ctx context.Context, actor common.Address, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, actor, component, action, entity_type, entity_id, meta, created_at
		FROM audit_log WHERE actor = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, actor.Hex(), limit, offset)
	if err != nil {
		return nil, err
	}
	return scanAuditRows(rows)
}

func scanAuditRows(rows pgx.Rows) ([]models.AuditLog, error) {
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var (
			l                models.AuditLog
			actor, component string
		)
		if err := rows.Scan(&l.ID, &actor, &component, &l.Action, &l.EntityType, &l.EntityID, &l.Meta, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Actor = common.HexToAddress(actor)
		l.Component = common.HexToAddress(component)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
