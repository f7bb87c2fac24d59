// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
	"github.com/xkilldash9x/trackerprobe/internal/config"
)

// Session is one browser tab. It implements schemas.SessionContext.
type Session struct {
	id          string
	ctx         context.Context // tab context, carries the CDP target
	cancel      context.CancelFunc
	logger      *zap.Logger
	waitTimeout time.Duration
	navTimeout  time.Duration
	run         runActionsFunc
	onClose     func(id string)

	closeOnce sync.Once
}

var _ schemas.SessionContext = (*Session)(nil)

func newSession(id string, ctx context.Context, cancel context.CancelFunc, waitCfg config.WaitConfig, browserCfg config.BrowserConfig, logger *zap.Logger, run runActionsFunc) *Session {
	return &Session{
		id:          id,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.Named("session").With(zap.String("session_id", id)),
		waitTimeout: waitCfg.Timeout,
		navTimeout:  browserCfg.NavigationTimeout,
		run:         run,
	}
}

func (s *Session) ID() string { return s.id }

// runActions runs actions on the tab, bounded by both the tab's lifetime and ctx.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("session %s is closed: %w", s.id, err)
	}
	combined, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return s.run(combined, actions...)
}

// bounded runs actions under timeout and reports a timeout with the selector that caused it.
func (s *Session) bounded(ctx context.Context, timeout time.Duration, what string, sel schemas.Selector, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.runActions(opCtx, actions...)
	if err == nil {
		return nil
	}
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		s.logger.Debug("Browser action timed out.", zap.String("action", what), zap.String("selector", sel.Value), zap.Duration("timeout", timeout))
		return fmt.Errorf("%s %q timed out after %s: %w", what, sel.Value, timeout, context.DeadlineExceeded)
	}
	return fmt.Errorf("%s %q: %w", what, sel.Value, err)
}

// queryOption maps a selector strategy to chromedp's.
func queryOption(sel schemas.Selector) chromedp.QueryOption {
	if sel.IsXPath() {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// Navigate loads url and waits for the body, bounded by the navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))
	opCtx, cancel := context.WithTimeout(ctx, s.navTimeout)
	defer cancel()

	err := s.runActions(opCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("navigation to %s timed out after %s: %w", url, s.navTimeout, context.DeadlineExceeded)
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (s *Session) WaitVisible(ctx context.Context, sel schemas.Selector) error {
	return s.bounded(ctx, s.waitTimeout, "wait visible", sel, chromedp.WaitVisible(sel.Value, queryOption(sel)))
}

func (s *Session) WaitPresent(ctx context.Context, sel schemas.Selector) error {
	return s.bounded(ctx, s.waitTimeout, "wait present", sel, chromedp.WaitReady(sel.Value, queryOption(sel)))
}

// Click waits for the first match to be visible, then clicks it.
func (s *Session) Click(ctx context.Context, sel schemas.Selector) error {
	s.logger.Debug("Clicking.", zap.String("selector", sel.Value))
	return s.bounded(ctx, s.waitTimeout, "click", sel, chromedp.Click(sel.Value, queryOption(sel)))
}

// Fill clears the field, then types text into it.
func (s *Session) Fill(ctx context.Context, sel schemas.Selector, text string) error {
	actions := []chromedp.Action{chromedp.Clear(sel.Value, queryOption(sel))}
	if text != "" {
		actions = append(actions, chromedp.SendKeys(sel.Value, text, queryOption(sel)))
	}
	return s.bounded(ctx, s.waitTimeout, "fill", sel, actions...)
}

func (s *Session) SetFiles(ctx context.Context, sel schemas.Selector, paths []string) error {
	s.logger.Debug("Attaching files.", zap.String("selector", sel.Value), zap.Strings("paths", paths))
	return s.bounded(ctx, s.waitTimeout, "set files", sel, chromedp.SetUploadFiles(sel.Value, paths, queryOption(sel)))
}

// Count returns the current number of matches without waiting for any to appear.
func (s *Session) Count(ctx context.Context, sel schemas.Selector) (int, error) {
	by := chromedp.ByQueryAll
	if sel.IsXPath() {
		by = chromedp.BySearch
	}
	var nodes []*cdp.Node
	if err := s.bounded(ctx, s.waitTimeout, "count", sel, chromedp.Nodes(sel.Value, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (s *Session) Evaluate(ctx context.Context, expression string, res interface{}) error {
	opCtx, cancel := context.WithTimeout(ctx, s.waitTimeout)
	defer cancel()
	if err := s.runActions(opCtx, chromedp.Evaluate(expression, res)); err != nil {
		return fmt.Errorf("evaluate script: %w", err)
	}
	return nil
}

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	opCtx, cancel := context.WithTimeout(ctx, s.waitTimeout)
	defer cancel()
	if err := s.runActions(opCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// Close closes the tab. Later calls are no-ops.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.onClose != nil {
			s.onClose(s.id)
		}
		s.logger.Debug("Session closed.")
	})
	return nil
}
