// Package ws is the chat transport: one websocket connection per patient,
// frames handed to the turn engine one at a time.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vitalink-health/intake/internal/intake"
	"github.com/vitalink-health/intake/internal/session"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10

	// outboundBuffer absorbs bursts of events within a turn; a client that
	// stops draining loses events rather than stalling the turn.
	outboundBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// client binds one connection to its session. The read loop is the session's
// single turn driver; the writer goroutine is the only conn writer.
type client struct {
	conn   *websocket.Conn
	sess   *session.Session
	out    chan any
	logger *slog.Logger
}

func (c *client) enqueue(v any) {
	select {
	case c.out <- v:
	default:
		c.logger.Warn("outbound buffer full, dropping event", "user_id", c.sess.ID)
	}
}

func (c *client) writePump(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case out := <-c.out:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(out); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type Handler struct {
	engine         *intake.Engine
	registry       *Registry
	stallThreshold int
	logger         *slog.Logger
}

func NewHandler(engine *intake.Engine, registry *Registry, stallThreshold int, logger *slog.Logger) *Handler {
	return &Handler{
		engine:         engine,
		registry:       registry,
		stallThreshold: stallThreshold,
		logger:         logger,
	}
}

// ServeChat upgrades the connection and runs the session until disconnect.
// Frames are processed to completion in arrival order, so a session never
// runs two turns at once.
func (h *Handler) ServeChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &client{
		conn:   conn,
		sess:   session.New(h.stallThreshold),
		out:    make(chan any, outboundBuffer),
		logger: h.logger,
	}

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writerDone := make(chan struct{})
	go c.writePump(ctx, writerDone)

	registered := false
	for {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			break
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", "user_id", c.sess.ID, "error", err)
			}
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}

		h.engine.HandleMessage(ctx, c.sess, string(data), c.enqueue)

		// The engine assigns the identifier on the first init or chat frame.
		if !registered && c.sess.ID != "" {
			h.registry.add(c.sess.ID, c)
			registered = true
		}
	}

	if registered {
		h.registry.remove(c.sess.ID, c)
	}
	h.engine.SessionClosed(c.sess)
	h.logger.Info("websocket disconnected", "user_id", c.sess.ID)

	cancel()
	<-writerDone
}
