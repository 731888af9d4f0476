package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"example.com/codenames/internal/auth"
	"example.com/codenames/internal/config"
	"example.com/codenames/internal/game"
	"example.com/codenames/internal/httpapi"
	"example.com/codenames/internal/store"
	"example.com/codenames/internal/words"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	db  *pgxpool.Pool
	rdb *redis.Client

	games *game.GameManager
	srv   *http.Server
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	pool, err := words.Load(cfg.Game.WordsFile)
	if err != nil {
		return nil, err
	}
	if len(pool) < game.BoardSize {
		return nil, fmt.Errorf("%w: %s has %d", game.ErrNotEnoughWords, cfg.Game.WordsFile, len(pool))
	}

	// --- Postgres ---
	dbpool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})

	// Quick connectivity checks (fail fast).
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := dbpool.Ping(pingCtx); err != nil {
		dbpool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		dbpool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping (%s db=%d): %w", cfg.Redis.Addr, cfg.Redis.DB, err)
	}

	authSvc := auth.NewService([]byte(cfg.Auth.Secret))

	// --- Stores ---
	users := store.NewUserStore(dbpool)
	matches := store.NewMatchStore(dbpool)
	markers := store.NewMarkerStore(rdb, cfg.Redis.ActiveRoomTTL)
	gateway := &store.Gateway{
		Rooms:   store.NewRoomStore(dbpool),
		Matches: matches,
		Markers: markers,
	}

	// --- Game ---
	gameCfg := cfg.GameConfig()
	games := game.NewGameManager(gameCfg, gateway, pool, log)
	gameSrv := game.NewServer(gameCfg, games, authSvc, log)

	meH := &httpapi.MeHandler{Users: users, Stats: matches, Markers: markers, Log: log}

	mux := http.NewServeMux()
	mux.Handle("/healthz", httpapi.Health(games))
	gameSrv.RegisterRoutes(mux)
	mux.Handle("/api/me", httpapi.AuthMiddleware(authSvc)(http.HandlerFunc(meH.Me)))

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	log.Info("app ready", "words", len(pool), "round", gameCfg.RoundDuration, "auth_required", gameCfg.RequireAuth)
	return &App{cfg: cfg, log: log, db: dbpool, rdb: rdb, games: games, srv: srv}, nil
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()

		a.log.Info("http server shutting down")
		// websocket-соединения hijacked, Shutdown их не ждёт — закрываем игры сами
		_ = a.srv.Shutdown(shutdownCtx)
		if err := a.games.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("games shutdown", "err", err)
		}
		return nil
	})

	err := g.Wait()
	_ = a.Close(context.Background())
	return err
}

func (a *App) Close(ctx context.Context) error {
	// best-effort
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	return nil
}
