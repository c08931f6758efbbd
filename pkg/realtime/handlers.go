package realtime

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"

	"github.com/davemejos/mediasync/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The admin UI is served from a different origin in development;
	// access control happens upstream of this service.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type handler struct {
	hub     *Hub
	service *Service
}

func (h *handler) subscribe(c echo.Context) error {
	clientID := c.QueryParam("client_id")
	if clientID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.WithStack(err)
		}
		clientID = id.String()
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.WithStack(err)
	}

	cl := &client{
		id:   clientID,
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 64),
		log:  logger.FromEchoContext(c),
	}
	h.hub.register <- cl

	go cl.writePump()
	go cl.readPump()

	return nil
}

func (h *handler) listConnections(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListConnectionsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	conns, err := h.service.ListConnections(ctx, ListConnectionsOptions{
		Statuses: params.Status,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Connections []*models.ConnectionStatus `json:"connections"`
		Total       int                        `json:"total"`
	}{conns, len(conns)}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
