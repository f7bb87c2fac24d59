// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trackerprobe/internal/config"
)

// runActionsFunc executes chromedp actions. chromedp.Run in production, a recorder in tests.
type runActionsFunc func(ctx context.Context, actions ...chromedp.Action) error

// Manager owns the Chrome allocator and the tabs opened on it.
type Manager struct {
	logger      *zap.Logger
	browserCfg  config.BrowserConfig
	waitCfg     config.WaitConfig
	allocCtx    context.Context
	allocCancel context.CancelFunc
	run         runActionsFunc

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager prepares an exec allocator. Chrome itself is launched lazily by the
// first NewSession.
func NewManager(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger:     logger.Named("browser_manager"),
		browserCfg: cfg.Browser(),
		waitCfg:    cfg.Wait(),
		run:        chromedp.Run,
		sessions:   make(map[string]*Session),
	}

	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions()...)
	m.logger.Debug("Browser allocator prepared.",
		zap.Bool("headless", m.browserCfg.Headless),
		zap.String("exec_path", m.browserCfg.ExecPath),
	)
	return m, nil
}

// allocatorFlags returns the command line switches passed to Chrome.
func (m *Manager) allocatorFlags() map[string]interface{} {
	flags := map[string]interface{}{
		"headless":           m.browserCfg.Headless,
		"disable-gpu":        m.browserCfg.Headless,
		"disable-extensions": true,
		"hide-scrollbars":    true,
		"mute-audio":         true,
	}

	// Custom arguments from config, "--name=value" or "--name".
	for _, arg := range m.browserCfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}

	// Required inside containers.
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-setuid-sandbox"] = true
	}
	return flags
}

// buildAllocatorOptions assembles the chromedp options for the configured browser.
func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := m.allocatorFlags()
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}

	if m.browserCfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.browserCfg.ExecPath))
	}
	if m.browserCfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(m.browserCfg.UserDataDir))
	}
	if m.browserCfg.WindowWidth > 0 && m.browserCfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(m.browserCfg.WindowWidth, m.browserCfg.WindowHeight))
	}
	return opts
}

// NewSession opens a tab and applies the configured extra HTTP headers. The first
// call launches Chrome, so it runs on the tab context itself: a deadline here
// would tear the browser down when it expired.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("browser manager is shut down")
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tabOpts []chromedp.ContextOption
	if m.browserCfg.Debug {
		sugar := m.logger.Sugar()
		tabOpts = append(tabOpts, chromedp.WithLogf(sugar.Debugf), chromedp.WithErrorf(sugar.Errorf))
	}
	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx, tabOpts...)

	setup := []chromedp.Action{network.Enable()}
	if len(m.browserCfg.Headers) > 0 {
		headers := make(network.Headers, len(m.browserCfg.Headers))
		for k, v := range m.browserCfg.Headers {
			headers[k] = v
		}
		setup = append(setup, network.SetExtraHTTPHeaders(headers))
	}
	if err := m.run(tabCtx, setup...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	s := newSession(uuid.NewString(), tabCtx, tabCancel, m.waitCfg, m.browserCfg, m.logger, m.run)
	s.onClose = m.forget

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Info("Browser session opened.", zap.String("session_id", s.ID()))
	return s, nil
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Shutdown closes every open session and stops the browser. Safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		if err := s.Close(ctx); err != nil {
			m.logger.Warn("Failed to close session during shutdown.", zap.String("session_id", s.ID()), zap.Error(err))
		}
	}

	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.logger.Info("Browser manager shut down.")
	return nil
}
