// Package gateway exposes the assistant over HTTP and websocket.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"chatkit/internal/config"
	"chatkit/internal/gateway/handlers"
	"chatkit/internal/gateway/middleware"
	"chatkit/internal/gateway/websocket"
	"chatkit/internal/provider"
	"chatkit/internal/runner"
	"chatkit/internal/storage"
	"chatkit/pkg/logger"
)

// Options wires the server's dependencies.
type Options struct {
	Config    *config.Config
	Version   string
	Assistant handlers.Assistant
	// Store enables transcripts and the sessions endpoints. May be nil.
	Store *storage.DB
	// Tools are listed by GET /api/v1/tools.
	Tools []provider.Tool
	// QA enables the document QA and embeddings endpoints. May be nil.
	QA handlers.DocumentQA
}

// Server is the HTTP gateway.
type Server struct {
	httpServer  *http.Server
	router      *mux.Router
	hub         *websocket.Hub
	chat        *handlers.Chat
	rateLimiter *middleware.RateLimiter
	config      *config.Config

	hubCtx     context.Context
	hubCancel  context.CancelFunc
	hubDone    chan struct{}
	hubStarted atomic.Bool
}

// NewServer creates the server and registers its routes.
func NewServer(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
		cfg.Normalize()
	}

	var store handlers.Transcripts
	if opts.Store != nil {
		store = opts.Store
	}

	router := mux.NewRouter()
	rateLimiter := middleware.NewRateLimiter(cfg.Gateway.RateLimit)

	// Recovery -> Logging -> CORS -> RateLimit
	handler := middleware.Recovery(
		middleware.Logging(
			middleware.CORS(
				rateLimiter.RateLimit(router),
			),
		),
	)

	s := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Gateway.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			// 不设置 WriteTimeout: 回答耗时由请求 context 控制
		},
		router:      router,
		hub:         websocket.NewHub(),
		chat:        handlers.NewChat(opts.Assistant, store, cfg.Provider.Model),
		rateLimiter: rateLimiter,
		config:      cfg,
		hubDone:     make(chan struct{}),
	}
	s.hubCtx, s.hubCancel = context.WithCancel(context.Background())
	s.hub.SetChatHandler(s.chatFrames)

	router.HandleFunc("/api/v1/health", handlers.HealthHandler(opts.Version, cfg.Provider.Model)).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/tools", handlers.ToolsHandler(opts.Tools)).Methods(http.MethodGet)
	router.Handle("/api/v1/chat", s.chat).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/ws", func(w http.ResponseWriter, r *http.Request) {
		s.startHub()
		websocket.ServeWs(s.hub, w, r)
	})
	if opts.Store != nil {
		handlers.NewSessions(opts.Store).Register(router)
	}
	if opts.QA != nil {
		handlers.NewQA(opts.QA).Register(router)
	}
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.SendError(w, http.StatusNotFound, handlers.ErrCodeNotFound, "no route for "+r.URL.Path)
	})

	return s
}

// startHub runs the websocket hub until Shutdown. Safe to call repeatedly.
func (s *Server) startHub() {
	if s.hubStarted.CompareAndSwap(false, true) {
		go func() {
			defer close(s.hubDone)
			s.hub.Run(s.hubCtx)
		}()
	}
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln and blocks until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.startHub()
	logger.Info().Str("addr", ln.Addr().String()).Msg("Starting gateway server")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, waits up to 5s for in-flight ones
// and stops the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info().Msg("Shutting down gateway server")

	s.rateLimiter.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)

	s.hubCancel()
	if s.hubStarted.Load() {
		<-s.hubDone
	}
	if err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}

// NotifyReload tells every websocket client that the config at path changed.
func (s *Server) NotifyReload(path string) {
	s.hub.BroadcastAll(websocket.Encode(websocket.WSMessage{Type: websocket.TypeReload, Path: path}))
}

// chatFrames runs one websocket chat and converts its progress into frames.
func (s *Server) chatFrames(ctx context.Context, sessionID, message string) (<-chan []byte, error) {
	out := make(chan []byte, 64)

	frame := func(typ, session string, payload any) {
		data, err := websocket.Frame(typ, session, payload)
		if err != nil {
			logger.Warn().Err(err).Str("type", typ).Msg("Failed to encode websocket frame")
			return
		}
		out <- data
	}
	fail := func(err error) {
		out <- websocket.Encode(websocket.WSMessage{
			Type:    websocket.TypeError,
			Session: sessionID,
			Code:    handlers.ErrorCode(err),
			Message: runner.ErrorMessage(err),
		})
	}

	go func() {
		defer close(out)
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error().Interface("panic", rec).Msg("PANIC in websocket chat")
				fail(fmt.Errorf("internal error: %v", rec))
			}
		}()

		hooks := runner.Hooks{
			OnPartial: func(text string) {
				out <- websocket.Encode(websocket.WSMessage{Type: websocket.TypePartial, Session: sessionID, Delta: text})
			},
			OnToolEvent: func(ev runner.ToolEvent) {
				frame(websocket.TypeTool, sessionID, ev)
			},
			OnPlanning: func(u runner.PlanningUpdate) {
				frame(websocket.TypePlanning, sessionID, u)
			},
		}

		resp, err := s.chat.Complete(ctx, handlers.ChatRequest{SessionID: sessionID, Message: message}, hooks)
		if err != nil {
			fail(err)
			return
		}
		frame(websocket.TypeDone, resp.SessionID, resp)
	}()
	return out, nil
}
