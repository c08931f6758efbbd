package realtime

import (
	"context"
	"time"

	"github.com/davemejos/mediasync/pkg/models"
	"github.com/gorilla/websocket"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	log  logger.Logger
}

// heartbeat is the client-reported health payload. Latency and reconnect
// attempts are measured client-side; the server just records them.
type heartbeat struct {
	Type              string `json:"type"`
	Status            string `json:"status"`
	LatencyMs         int    `json:"latency_ms"`
	ReconnectAttempts int    `json:"reconnect_attempts"`
}

func (c *client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Err(err).Warn("unexpected websocket close")
			}
			return
		}

		hb := heartbeat{}
		if err := json.Unmarshal(msg, &hb); err != nil || hb.Type != "ping" {
			continue
		}

		status := hb.Status
		switch status {
		case models.ConnectionStatusConnected, models.ConnectionStatusReconnecting, models.ConnectionStatusError:
		default:
			status = models.ConnectionStatusConnected
		}

		err = c.hub.service.UpsertConnection(context.Background(), &models.ConnectionStatus{
			ClientID:          c.id,
			Status:            status,
			LastPingAt:        time.Now(),
			ReconnectAttempts: hb.ReconnectAttempts,
			LatencyMs:         hb.LatencyMs,
		})
		if err != nil {
			c.log.Err(err).Error("heartbeat upsert error")
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
