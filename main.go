package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/Tetsu-is/crate-digger/internal/auth"
	"github.com/Tetsu-is/crate-digger/internal/cache"
	"github.com/Tetsu-is/crate-digger/internal/config"
	"github.com/Tetsu-is/crate-digger/internal/handler"
	"github.com/Tetsu-is/crate-digger/internal/log"
	"github.com/Tetsu-is/crate-digger/internal/memstore"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
	"github.com/Tetsu-is/crate-digger/internal/relationship"
	"github.com/Tetsu-is/crate-digger/internal/repository"
	"github.com/Tetsu-is/crate-digger/internal/social"
)

// ============================================
// Wiring
// ============================================

type app struct {
	users     handler.Users
	relations *relationship.Store
	social    *social.Service
	cleanup   []func()
}

func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

func newRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func newBus(cfg *config.Config, client *redis.Client) realtime.Bus {
	if cfg.Realtime.Driver == "redis" && client != nil {
		return realtime.NewRedisBus(client, cfg.Realtime.Channel)
	}
	return realtime.NewMemoryBus()
}

// newApp builds the services on top of the configured backend. Postgres
// writes reach the bus through the NOTIFY relay; memstore publishes itself.
func newApp(ctx context.Context, cfg *config.Config, bus realtime.Bus, opts []relationship.Option) (*app, error) {
	logger := log.L()
	a := &app{}

	if cfg.Backend.Driver == "memory" {
		db := memstore.New(bus)
		a.users = db
		a.relations = relationship.NewStore(db, db, db, opts...)
		a.social = social.NewService(social.Backend{Posts: db, Feeds: db, Comments: db, Collections: db, Notifications: db})
		logger.Warn().Msg("using in-memory backend, data is lost on exit")
		return a, nil
	}

	pool, err := repository.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, err
	}
	a.cleanup = append(a.cleanup, pool.Close)

	if cfg.Database.Migrate {
		if err := repository.Migrate(ctx, pool); err != nil {
			a.close()
			return nil, err
		}
	}

	if cfg.Realtime.PGRelay {
		relayCtx, cancel := context.WithCancel(ctx)
		relay := realtime.NewPGRelay(pool, realtime.DefaultPGChannel, bus)
		done := make(chan struct{})
		go func() {
			defer close(done)
			relay.Run(relayCtx)
		}()
		a.cleanup = append(a.cleanup, func() {
			cancel()
			<-done
		})
	}

	users := repository.NewUserRepository(pool)
	notifications := repository.NewNotificationRepository(pool)
	a.users = users
	a.relations = relationship.NewStore(users, repository.NewFollowRepository(pool), notifications, opts...)
	a.social = social.NewService(social.Backend{
		Posts:         repository.NewPostRepository(pool),
		Feeds:         repository.NewFeedRepository(pool),
		Comments:      repository.NewCommentRepository(pool),
		Collections:   repository.NewCollectionRepository(pool),
		Notifications: notifications,
	})
	return a, nil
}

func newRouter(cfg *config.Config, h *handler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(log.HTTPMiddleware(log.L()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("crate-digger"))
	})
	h.Routes(r)
	return r
}

// ============================================
// Main
// ============================================

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := log.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}
	log.Init(log.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "crate-digger"})
	logger := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		client *redis.Client
		opts   []relationship.Option
	)
	if cfg.Redis.Address != "" {
		client, err = newRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Str("address", cfg.Redis.Address).Msg("failed to connect redis")
		}
		defer client.Close()
		opts = append(opts, relationship.WithCache(cache.NewCounterCache(client, cfg.Redis.StatsTTL)))
	}

	bus := newBus(cfg, client)
	defer bus.Close()

	a, err := newApp(ctx, cfg, bus, opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start backend")
	}
	defer a.close()

	h := handler.New(handler.Deps{
		Users:     a.users,
		Relations: a.relations,
		Social:    a.social,
		Issuer:    auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL),
		Changes:   bus,
		Limits:    cfg.Pagination,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(cfg, h),
		ReadHeaderTimeout: 10 * time.Second,
		// Websocket streams end with the process context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("backend", cfg.Backend.Driver).
			Str("realtime", cfg.Realtime.Driver).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
