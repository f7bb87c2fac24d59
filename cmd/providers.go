package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
	"github.com/xkilldash9x/trackerprobe/internal/browser"
	"github.com/xkilldash9x/trackerprobe/internal/config"
	"github.com/xkilldash9x/trackerprobe/internal/store"
	"github.com/xkilldash9x/trackerprobe/internal/target"
)

// sessionProvider opens the browser session a run drives. The returned
// cleanup releases the session and the browser behind it.
type sessionProvider interface {
	Open(ctx context.Context, cfg config.Interface, logger *zap.Logger) (schemas.SessionContext, func(), error)
}

type browserSessionProvider struct{}

func newBrowserSessionProvider() sessionProvider {
	return &browserSessionProvider{}
}

func (p *browserSessionProvider) Open(ctx context.Context, cfg config.Interface, logger *zap.Logger) (schemas.SessionContext, func(), error) {
	manager, err := browser.NewManager(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create browser manager: %w", err)
	}

	session, err := manager.NewSession(ctx)
	if err != nil {
		_ = manager.Shutdown(context.Background())
		return nil, nil, err
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = session.Close(shutdownCtx)
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown did not complete cleanly.", zap.Error(err))
		}
	}
	return session, cleanup, nil
}

// reportStore is the part of store.Store the commands use.
type reportStore interface {
	EnsureSchema(ctx context.Context) error
	SaveReport(ctx context.Context, report *schemas.Report) error
	GetReport(ctx context.Context, runID string) (*schemas.Report, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
}

// storeProvider defines an interface for components that can create a data
// store. Tests inject a fake instead of a live database connection.
type storeProvider interface {
	// Create returns the store and a cleanup function that releases the pool.
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (reportStore, func(), error)
}

// defaultStoreProvider connects to PostgreSQL.
type defaultStoreProvider struct{}

// NewStoreProvider is a factory function that creates a new defaultStoreProvider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (reportStore, func(), error) {
	pool, err := store.Connect(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return store.New(pool, logger), cleanup, nil
}

// preflighter checks that the target answers before a browser is started.
type preflighter interface {
	Preflight(ctx context.Context, baseURL string, logger *zap.Logger) (target.Info, error)
}

type httpPreflighter struct{}

func newHTTPPreflighter() preflighter {
	return httpPreflighter{}
}

func (httpPreflighter) Preflight(ctx context.Context, baseURL string, logger *zap.Logger) (target.Info, error) {
	return target.NewChecker(nil, logger).Preflight(ctx, baseURL)
}
