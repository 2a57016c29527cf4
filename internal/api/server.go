package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"

	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/database"
	"github.com/chatrelay/chatrelay/internal/relay"
	"github.com/chatrelay/chatrelay/internal/stats"
)

type ChatRelayApp struct {
	log            *log.Logger
	db             database.ChatRepository
	mux            *http.Server
	rs             *relay.RelayServer
	stats          stats.StatsProvider
	signingKey     []byte
	allowedOrigins []string

	// overridable in tests
	generateShortId func() (string, error)
}

func NewChatRelayApp(mux *http.ServeMux, logger *log.Logger, rs *relay.RelayServer, db database.ChatRepository, sp stats.StatsProvider, cfg *config.Config) *ChatRelayApp {
	s := &ChatRelayApp{
		log:             logger,
		db:              db,
		rs:              rs,
		stats:           sp,
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		generateShortId: shortid.Generate,
	}

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("GET /api/rooms", s.authMiddleware(s.listRooms))
	mux.Handle("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.Handle("POST /api/rooms/join", s.authMiddleware(s.joinRoom))
	mux.Handle("DELETE /api/rooms", s.authMiddleware(s.deleteRoom))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *ChatRelayApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *ChatRelayApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
