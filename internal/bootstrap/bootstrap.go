// Package bootstrap assembles the quote application from configuration.
// cmd/service and cmd/quotes share it so both front-ends run the same stack.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/adapters/clients/acl"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/redis"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/sqlite"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// LoadConfig loads and validates the configuration for profile.
// An empty profile falls back to APP_ENVIRONMENT, then "local".
func LoadConfig(profile string) (*config.Config, error) {
	if profile == "" {
		profile = config.ProfileFromEnv()
	}

	cfg, err := config.Load(profile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// NewLogger builds the process logger from cfg and installs it as default.
func NewLogger(cfg *config.Config) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter is NewLogger with the terminal sink sent to w.
func NewLoggerWithWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := logging.NewWithWriter(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	}, w)
	logging.SetDefault(logger)

	return logger
}

// Runtime is the assembled application.
type Runtime struct {
	Service    *app.QuoteService
	Store      *app.QuoteStore
	Reconciler *app.Reconciler
	Remote     *acl.RemoteQuoteClient
	Health     *ports.DefaultHealthRegistry

	closers []func() error
}

// Options tune Build for the calling front-end.
type Options struct {
	// Events receives collection changes. Defaults to ports.NopPublisher.
	Events ports.EventPublisher

	// SessionID scopes the session store. Defaults to a random UUID.
	SessionID string
}

// Build opens the stores, loads the collection and wires the reconciler and
// service. The caller must Close the runtime.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (rt *Runtime, err error) {
	rt = &Runtime{Health: ports.NewHealthRegistry()}

	defer func() {
		if err != nil {
			err = errors.Join(err, rt.Close())
			rt = nil
		}
	}()

	durable, err := sqlite.Open(sqlite.Options{Path: cfg.Storage.Durable.Path, Logger: logger})
	if err != nil {
		return rt, fmt.Errorf("opening durable store: %w", err)
	}

	rt.closers = append(rt.closers, durable.Close)

	session, err := openSession(ctx, cfg.Storage.Session, opts.SessionID)
	if err != nil {
		return rt, fmt.Errorf("opening session store: %w", err)
	}

	if c, ok := session.(interface{ Close() error }); ok {
		rt.closers = append(rt.closers, c.Close)
	}

	httpClient, err := clients.New(&clients.Config{
		BaseURL:     cfg.Remote.BaseURL,
		ServiceName: cfg.Remote.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		UserAgent:   cfg.App.Name + "/" + cfg.App.Version,
		Logger:      logger,
	})
	if err != nil {
		return rt, fmt.Errorf("creating HTTP client: %w", err)
	}

	rt.Remote = acl.NewRemoteQuoteClient(httpClient, cfg.Remote.UserID)

	for _, checker := range []ports.HealthChecker{durable, session, rt.Remote} {
		if err := rt.Health.Register(checker); err != nil {
			return rt, fmt.Errorf("registering health check: %w", err)
		}
	}

	rt.Store = app.NewQuoteStore(app.QuoteStoreConfig{
		Durable: durable,
		Session: session,
		Logger:  logger,
	})

	if _, err := rt.Store.Load(ctx); err != nil {
		return rt, fmt.Errorf("loading quotes: %w", err)
	}

	rt.Reconciler = app.NewReconciler(app.ReconcilerConfig{
		Store:    rt.Store,
		Remote:   rt.Remote,
		Events:   opts.Events,
		Logger:   logger,
		Timeout:  cfg.Sync.Timeout,
		Interval: cfg.Sync.Interval,
		OnStart:  cfg.Sync.OnStart,
	})

	rt.Service = app.NewQuoteService(app.QuoteServiceConfig{
		Store:      rt.Store,
		Reconciler: rt.Reconciler,
		Events:     opts.Events,
		Logger:     logger,
	})

	return rt, nil
}

type sessionStore interface {
	ports.SessionStore
	ports.HealthChecker
}

func openSession(ctx context.Context, cfg config.SessionStorageConfig, id string) (sessionStore, error) {
	if id == "" {
		id = uuid.NewString()
	}

	switch cfg.Driver {
	case config.SessionDriverRedis:
		return redis.New(ctx, redis.Config{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			Session:  id,
			TTL:      cfg.TTL,
		})
	case config.SessionDriverMemory, "":
		return memory.New(cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown session driver %q", cfg.Driver)
	}
}

// Close waits for in-flight pushes and releases the stores.
func (rt *Runtime) Close() error {
	if rt.Service != nil {
		rt.Service.WaitPushes()
	}

	var errs []error

	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	rt.closers = nil

	return errors.Join(errs...)
}
