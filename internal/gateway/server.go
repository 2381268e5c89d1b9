// Package gateway is a JSON-over-WebSocket chat frontend: clients connect
// as a user, send text, voice and button frames, and receive the bot's
// replies on the same socket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/alphabot-ai/voicethreads/internal/ratelimit"
	"github.com/alphabot-ai/voicethreads/internal/transport"
)

const (
	maxFrameBytes = 64 << 10

	msgSlowDown = "⏳ You're sending messages too fast. Please wait a moment."
	msgBadFrame = "⚠️ Unsupported message."
)

// Server represents the gateway HTTP server
type Server struct {
	echo     *echo.Echo
	addr     string
	hub      *Hub
	handler  transport.Handler
	limiter  ratelimit.Limiter
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer wires the routes. A nil limiter accepts every frame.
func NewServer(addr string, hub *Hub, handler transport.Handler, limiter ratelimit.Limiter, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	logger = logger.With().Str("component", "gateway").Logger()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(LogRequests(logger))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		echo:    e,
		addr:    addr,
		hub:     hub,
		handler: handler,
		limiter: limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	s.echo.GET("/ws", s.serveWS)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("gateway listening")
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes every socket and waits for the
// read loops to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.cancel()
	s.hub.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (s *Server) serveWS(c echo.Context) error {
	userID, err := strconv.ParseInt(c.QueryParam("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id must be a positive integer")
	}
	sender := transport.Sender{
		ID:     userID,
		Name:   c.QueryParam("name"),
		Handle: c.QueryParam("handle"),
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("websocket upgrade failed")
		return nil
	}
	ws.SetReadLimit(maxFrameBytes)

	s.wg.Add(1)
	defer s.wg.Done()

	cn := &conn{ws: ws, sender: sender}
	s.hub.register(cn)
	defer func() {
		s.hub.unregister(cn)
		_ = ws.Close()
	}()

	s.logger.Info().Int64("user_id", userID).Msg("client connected")
	s.readLoop(cn)
	s.logger.Info().Int64("user_id", userID).Msg("client disconnected")
	return nil
}

// readLoop feeds the connection's frames to the handler in order.
func (s *Server) readLoop(cn *conn) {
	log := s.logger.With().Int64("user_id", cn.sender.ID).Logger()
	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("read frame")
			}
			return
		}

		var f inFrame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Debug().Err(err).Msg("undecodable frame")
			s.reply(cn, msgBadFrame)
			continue
		}
		ev, err := f.event(cn.sender)
		if err != nil {
			log.Debug().Err(err).Msg("unsupported frame")
			s.reply(cn, msgBadFrame)
			continue
		}

		if s.limiter != nil && !s.limiter.Allow(cn.sender.ID) {
			log.Debug().Dur("retry_after", s.limiter.RetryAfter(cn.sender.ID)).Msg("inbound rate limited")
			s.reply(cn, msgSlowDown)
			continue
		}

		s.dispatch(cn, ev)
	}
}

func (s *Server) dispatch(cn *conn, ev transport.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Int64("user_id", cn.sender.ID).
				Str("event", string(ev.Kind)).
				Msg("handler panicked")
		}
	}()
	s.handler.Handle(s.ctx, ev)
}

// reply writes straight to cn, bypassing the hub's throttle.
func (s *Server) reply(cn *conn, text string) {
	if err := cn.write(outFrame{Type: "text", Text: text}); err != nil {
		s.logger.Debug().Err(err).Int64("user_id", cn.sender.ID).Msg("write reply")
	}
}
