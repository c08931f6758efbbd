package realtime

import (
	"context"

	"github.com/davemejos/mediasync/pkg/models"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

// Hub fans catalog change events out to connected websocket clients.
// All client bookkeeping happens on the single dispatch loop in run(),
// so no mutex guards the client set.
type Hub struct {
	log     logger.Logger
	service *Service

	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan Event
	shutdown   chan struct{}
	done       chan struct{}
}

func NewHub(db *bun.DB) *Hub {
	return &Hub{
		log:        logger.New(),
		service:    NewService(db),
		clients:    map[*client]struct{}{},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, 256),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Start() {
	go h.run()
}

// Stop tears down the dispatch loop and closes every client. Safe to
// call at any lifecycle point, but only once.
func (h *Hub) Stop() {
	close(h.shutdown)
	<-h.done
}

// Broadcast queues an event for delivery. It never blocks the caller;
// if the hub's buffer is full the event is dropped with a warning, and
// clients recover via reconciliation.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("realtime broadcast buffer full, dropping event", logger.Data{"type": event.Type})
	}
}

// drop hands a client back to the dispatch loop for teardown. Once the
// hub has shut down the loop no longer receives, so drop bails out
// instead of blocking the calling goroutine forever.
func (h *Hub) drop(c *client) {
	select {
	case h.unregister <- c:
	case <-h.shutdown:
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.shutdown:
			for c := range h.clients {
				h.closeClient(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			err := h.service.UpsertConnection(context.Background(), &models.ConnectionStatus{
				ClientID: c.id,
				Status:   models.ConnectionStatusConnected,
			})
			if err != nil {
				h.log.Err(err).Error("upsert connection error")
			}
			h.log.Info("realtime client connected", logger.Data{"client_id": c.id, "total": len(h.clients)})
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.closeClient(c)
			}
			err := h.service.MarkDisconnected(context.Background(), c.id)
			if err != nil {
				h.log.Err(err).Error("mark disconnected error")
			}
			h.log.Info("realtime client disconnected", logger.Data{"client_id": c.id, "total": len(h.clients)})
		case event := <-h.broadcast:
			msg, err := json.Marshal(event)
			if err != nil {
				h.log.Err(err).Error("marshal event error")
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer; drop it rather than stall the loop.
					h.closeClient(c)
				}
			}
		}
	}
}

func (h *Hub) closeClient(c *client) {
	delete(h.clients, c)
	close(c.send)
}
