// Command arena-server runs the real-time chess coordinator: matchmaking, challenges,
// live sessions and rating settlement behind one WebSocket endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/cheese-arena/internal/auth"
	"github.com/park285/cheese-arena/internal/challenge"
	"github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/hub"
	"github.com/park285/cheese-arena/internal/matchmaking"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/store"
	"github.com/park285/cheese-arena/internal/store/pgstore"
	"github.com/park285/cheese-arena/internal/store/redisstore"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("dotenv error: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		obslog.L().Error("server_exit", zap.Error(err))
		obslog.Sync()
		os.Exit(1)
	}
}

// stores holds the persistence backends chosen from config, with their closers.
type stores struct {
	players    store.PlayerStore
	games      store.GameStore
	challenges store.ChallengeStore
	closers    []io.Closer
}

func (s *stores) Close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			obslog.L().Warn("store_close_error", zap.Error(err))
		}
	}
}

func openStores(ctx context.Context, cfg *config.AppConfig) (*stores, error) {
	mem := store.NewMemory()
	s := &stores{players: mem, games: mem, challenges: mem}

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pg)
		if err := pg.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		s.players, s.games = pg, pg
		obslog.L().Info("store_postgres_enabled")
	}
	if cfg.RedisURL != "" {
		rs, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, rs)
		s.challenges = rs
		obslog.L().Info("store_redis_enabled")
	}
	return s, nil
}

func buildResolver(cfg *config.AppConfig) auth.Resolver {
	var chain auth.Chain
	if cfg.AuthServiceURL != "" {
		chain = append(chain, auth.NewRemoteResolver(cfg.AuthServiceURL))
	}
	if len(cfg.AuthTokens) > 0 {
		chain = append(chain, auth.NewStaticResolver(cfg.AuthTokens))
	}
	return chain
}

func run(ctx context.Context, cfg *config.AppConfig) error {
	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return fmt.Errorf("messages: %w", err)
	}
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	mgr := game.NewManager(st.games, st.players, rules.New())
	defer mgr.Close()
	if _, err := mgr.Recover(ctx); err != nil {
		return fmt.Errorf("recover sessions: %w", err)
	}

	registry := matchmaking.New(mgr, matchmaking.WithWindow(cfg.RatingWindow))
	lifecycle := challenge.New(st.challenges, mgr, st.players,
		challenge.WithTTL(cfg.ChallengeTTL),
		challenge.WithSearches(registry),
	)
	resolver := buildResolver(cfg)
	h := hub.New(resolver, st.players, mgr, registry, lifecycle,
		hub.WithCatalog(msgs),
		hub.WithSendQueue(cfg.SendQueueSize),
	)
	mgr.AttachNotifier(h)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           routes(&api{resolver: resolver, players: st.players}, h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		obslog.L().Info("http_listen", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return lifecycle.Run(gctx, cfg.ChallengeSweep) })
	g.Go(func() error {
		<-gctx.Done()
		obslog.L().Info("shutdown_begin")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		h.Shutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	obslog.L().Info("shutdown_complete")
	return err
}
