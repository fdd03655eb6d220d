package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/config"
	"github.com/aretw0/chatflow/pkg/adapters/file"
	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/adapters/redis"
	"github.com/aretw0/chatflow/pkg/adapters/sql"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/flowstore"
	"github.com/aretw0/chatflow/pkg/observability"
	"github.com/aretw0/chatflow/pkg/ports"
)

// App bundles the configured Flow Store and its resources.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Store  *flowstore.Service

	closers []func() error
}

// Open builds the repository selected by cfg.Store.Driver and wraps it in a Flow Store.
// Redis deployments also get a distributed locker so admin writes serialize across replicas.
func Open(cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	repo, locker, err := app.openRepository()
	if err != nil {
		app.Close()
		return nil, err
	}

	opts := []flowstore.Option{flowstore.WithLogger(logger)}
	if locker != nil {
		opts = append(opts, flowstore.WithLocker(locker))
	}
	app.Store = flowstore.New(repo, opts...)

	logger.Debug("flow store ready", "driver", cfg.Store.Driver)
	return app, nil
}

func (a *App) openRepository() (ports.FlowRepository, ports.DistributedLocker, error) {
	sc := a.Config.Store
	switch sc.Driver {
	case config.DriverMemory:
		return memory.NewStore(), nil, nil
	case config.DriverFile:
		return file.New(sc.Dir), nil, nil
	case config.DriverRedis:
		store := redis.New(sc.RedisAddr, sc.RedisPassword, sc.RedisDB, redis.WithPrefix(sc.RedisPrefix))
		a.closers = append(a.closers, store.Close)
		return store, redis.NewLocker(store.Client(), sc.RedisPrefix), nil
	case config.DriverSQLite, config.DriverPostgres:
		store, err := sql.Open(sc.Driver, sc.DSN, sql.WithLogger(a.Logger))
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}

// Engine creates the conversation engine on top of the store.
func (a *App) Engine(hooks domain.LifecycleHooks) *chatflow.Engine {
	opts := []chatflow.Option{
		chatflow.WithLogger(a.Logger),
		chatflow.WithLifecycleHooks(hooks),
	}
	if a.Config.WhatsApp.Template != "" {
		opts = append(opts, chatflow.WithWhatsAppTemplate(a.Config.WhatsApp.Template))
	}
	if a.Config.Cursor.Secret != "" {
		opts = append(opts, chatflow.WithCursorSecret([]byte(a.Config.Cursor.Secret)))
	}
	return chatflow.New(a.Store, opts...)
}

// Hooks logs lifecycle events and fans them out to extra.
func (a *App) Hooks(extra ...domain.LifecycleHooks) domain.LifecycleHooks {
	return observability.Chain(append([]domain.LifecycleHooks{observability.LogHooks(a.Logger)}, extra...)...)
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
