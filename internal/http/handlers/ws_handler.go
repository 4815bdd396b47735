package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/escrow-marketplace/backend/internal/auth"
	"github.com/escrow-marketplace/backend/internal/config"
	"github.com/escrow-marketplace/backend/internal/events"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsConn serializes writes: events from different streams are dispatched
// from different goroutines, and a websocket allows one writer at a time.
type wsConn struct {
	mu   sync.Mutex
	conn messageWriter
	all  bool
}

func (c *wsConn) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub pushes component events to connected wallets. A connection receives
// the events naming its address, or every event when opened with scope=all.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[common.Address][]*wsConn
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[common.Address][]*wsConn),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	for _, stream := range events.AllStreams {
		if err := h.subscriber.Subscribe(ctx, stream, h.dispatch); err != nil {
			h.log.Error("ws subscribe failed", zap.String("stream", stream), zap.Error(err))
		}
	}
}

func (h *WSHub) dispatch(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	targets := make(map[common.Address]bool)
	for _, addr := range events.Parties(event) {
		targets[addr] = true
	}

	h.mu.RLock()
	var recipients []*wsConn
	for addr, conns := range h.connections {
		for _, c := range conns {
			if c.all || targets[addr] {
				recipients = append(recipients, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range recipients {
		if err := c.send(data); err != nil {
			h.log.Debug("ws send failed", zap.String("type", event.Type), zap.Error(err))
		}
	}
}

func (h *WSHub) add(addr common.Address, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[addr] = append(h.connections[addr], c)
}

func (h *WSHub) remove(addr common.Address, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.connections[addr]
	for i, existing := range conns {
		if existing == c {
			h.connections[addr] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.connections[addr]) == 0 {
		delete(h.connections, addr)
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	addr := claims.Caller()
	entry := &wsConn{conn: conn, all: conn.Query("scope") == "all"}

	h.add(addr, entry)
	defer func() {
		h.remove(addr, entry)
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
