package repositories

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NonceRepo stores login challenges. A nonce can be consumed once, by the
// address it was issued to, before it expires.
type NonceRepo struct {
	pool *pgxpool.Pool
}

func NewNonceRepo(pool *pgxpool.Pool) *NonceRepo {
	return &NonceRepo{pool: pool}
}

func (r *NonceRepo) Create(ctx context.Context, address common.Address, ttl time.Duration) (*models.LoginNonce, error) {
	n := &models.LoginNonce{
		Address: address,
		Nonce:   generateNonce(16),
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO login_nonces (address, nonce, expires_at)
		VALUES ($1, $2, now() + make_interval(secs => $3))
		RETURNING id, created_at, expires_at
	`, address.Hex(), n.Nonce, ttl.Seconds()).Scan(&n.ID, &n.CreatedAt, &n.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *NonceRepo) Consume(ctx context.Context, address common.Address, nonce string) (*models.LoginNonce, error) {
	n := models.LoginNonce{Address: address}
	err := r.pool.QueryRow(ctx, `
		UPDATE login_nonces
		SET used = true
		WHERE address = $1 AND nonce = $2 AND used = false AND expires_at > now()
		RETURNING id, nonce, created_at, expires_at, used
	`, address.Hex(), nonce).Scan(&n.ID, &n.Nonce, &n.CreatedAt, &n.ExpiresAt, &n.Used)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteExpired drops nonces past their expiry and returns how many went.
func (r *NonceRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM login_nonces WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func generateNonce(bytes int) string {
	b := make([]byte, bytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
