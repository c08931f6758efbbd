package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ConnectionStatusConnected    = "connected"
	ConnectionStatusDisconnected = "disconnected"
	ConnectionStatusReconnecting = "reconnecting"
	ConnectionStatusError        = "error"
)

// ConnectionStatus tracks one realtime client connection. Rows are
// upserted on connect and heartbeat and marked disconnected on teardown.
type ConnectionStatus struct {
	bun.BaseModel `bun:"table:connection_status,alias:cs"`

	ID                int       `bun:",pk,nullzero" json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	ClientID          string    `bun:",unique,nullzero" json:"client_id"`
	Status            string    `bun:",nullzero,default:'connected'" json:"status"`
	LastPingAt        time.Time `json:"last_ping_at"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
	LatencyMs         int       `json:"latency_ms"`
}
