package issuer

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/alovak/simple-banking/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"
)

// App is the HTTP flavour of the issuer: it owns the store, the session
// backend and the server, and is responsible for starting and stopping them.
type App struct {
	srv        *http.Server
	wg         *sync.WaitGroup
	Addr       string
	logger     *slog.Logger
	config     *Config
	repository *Repository
	redis      *redis.Client
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "issuer"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:     &sync.WaitGroup{},
		logger: logger,
		config: config,
	}
}

// OpenStore builds the repository selected by cfg.DBDriver and makes sure the
// schema exists.
func OpenStore(ctx context.Context, cfg *Config, pins PINScheme) (*Repository, error) {
	if cfg.DBDriver == DriverMemory {
		return NewRepository(pins), nil
	}
	db, err := OpenDB(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLRepository(db, pins), nil
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	pins, err := NewPINScheme(a.config.PINScheme)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	repository, err := OpenStore(ctx, a.config, pins)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	a.repository = repository

	var sessions SessionStore
	switch a.config.SessionBackend {
	case SessionBackendRedis:
		a.redis = redis.NewClient(&redis.Options{Addr: a.config.RedisAddr, Password: a.config.RedisPassword})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			a.redis = nil
			repository.Close()
			a.repository = nil
			return fmt.Errorf("ping redis: %w", err)
		}
		sessions = NewRedisSessions(a.redis, a.config.SessionTTL)
	default:
		sessions = NewMemorySessions(a.config.SessionTTL)
	}

	router := chi.NewRouter()
	router.Use(middleware.NewStructuredLogger(a.logger))

	svc := NewService(a.logger, repository, pins, a.config)
	api := NewAPI(a.logger, svc, NewAccounts(a.logger, repository), sessions)
	api.AppendRoutes(router)

	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := repository.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	return nil
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	if a.srv != nil {
		a.srv.Shutdown(context.Background())
	}
	a.wg.Wait()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("closing redis", "err", err)
		}
	}
	if a.repository != nil {
		if err := a.repository.Close(); err != nil {
			a.logger.Error("closing store", "err", err)
		}
	}

	a.logger.Info("app stopped")
}
