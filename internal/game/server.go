package game

import (
	"log/slog"
	"net/http"
	"time"

	"example.com/codenames/internal/auth"
)

type Config struct {
	RoundDuration  time.Duration // 0 => таймер выключен
	TickInterval   time.Duration // шаг обратного отсчёта, в проде 1s
	GraceTimeout   time.Duration
	MaxPlayers     int
	Layout         Layout
	LogLimit       int
	PersistTimeout time.Duration
	RequireAuth    bool
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.GraceTimeout <= 0 {
		c.GraceTimeout = 30 * time.Second
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = 10
	}
	if c.Layout == (Layout{}) {
		c.Layout = DefaultLayout
	}
	if c.LogLimit <= 0 {
		c.LogLimit = 50
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 5 * time.Second
	}
	return c
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type Server struct {
	cfg      Config
	games    *GameManager
	verifier TokenVerifier
	log      *slog.Logger
}

func NewServer(cfg Config, games *GameManager, verifier TokenVerifier, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:      cfg.withDefaults(),
		games:    games,
		verifier: verifier,
		log:      log,
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/", s.handleWS)
}
