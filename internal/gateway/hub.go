package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/alphabot-ai/voicethreads/internal/ratelimit"
	"github.com/alphabot-ai/voicethreads/internal/transport"
)

// ErrOffline is returned when the recipient has no open connection.
var ErrOffline = errors.New("gateway: recipient offline")

const writeTimeout = 10 * time.Second

type conn struct {
	ws     *websocket.Conn
	sender transport.Sender

	// gorilla/websocket allows one concurrent writer per connection.
	mu sync.Mutex
}

func (c *conn) write(f outFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(f)
}

// Hub tracks one live connection per user and implements
// transport.Messenger over them.
type Hub struct {
	mu       sync.RWMutex
	conns    map[int64]*conn
	throttle *ratelimit.Throttle
	logger   zerolog.Logger
}

// NewHub returns an empty hub. A nil throttle sends without pacing.
func NewHub(throttle *ratelimit.Throttle, logger zerolog.Logger) *Hub {
	if throttle == nil {
		throttle = ratelimit.NewThrottle(0, 0)
	}
	return &Hub{
		conns:    make(map[int64]*conn),
		throttle: throttle,
		logger:   logger.With().Str("component", "hub").Logger(),
	}
}

// register makes c the user's connection, closing any previous one.
func (h *Hub) register(c *conn) {
	h.mu.Lock()
	old := h.conns[c.sender.ID]
	h.conns[c.sender.ID] = c
	h.mu.Unlock()

	if old != nil {
		h.logger.Debug().Int64("user_id", c.sender.ID).Msg("replacing connection")
		_ = old.ws.Close()
	}
}

// unregister removes c unless it has already been replaced.
func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[c.sender.ID] == c {
		delete(h.conns, c.sender.ID)
		h.throttle.Forget(c.sender.ID)
	}
}

// Online reports whether userID has an open connection.
func (h *Hub) Online(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[userID]
	return ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[int64]*conn)
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = c.ws.Close()
	}
}

func (h *Hub) send(ctx context.Context, to int64, f outFrame) error {
	h.mu.RLock()
	c := h.conns[to]
	h.mu.RUnlock()
	if c == nil {
		return ErrOffline
	}

	if err := h.throttle.Wait(ctx, to); err != nil {
		return fmt.Errorf("throttle %s frame to %d: %w", f.Type, to, err)
	}
	if err := c.write(f); err != nil {
		return fmt.Errorf("write %s frame to %d: %w", f.Type, to, err)
	}
	return nil
}

func (h *Hub) SendText(ctx context.Context, to int64, text string) error {
	return h.send(ctx, to, outFrame{Type: "text", Text: text})
}

func (h *Hub) SendVoice(ctx context.Context, to int64, audioRef, caption string) error {
	return h.send(ctx, to, outFrame{Type: "voice", AudioRef: audioRef, Caption: caption})
}

func (h *Hub) PresentButtons(ctx context.Context, to int64, text string, rows [][]transport.Button) error {
	return h.send(ctx, to, outFrame{Type: "buttons", Text: text, Buttons: rows})
}

var _ transport.Messenger = (*Hub)(nil)
