package cmd

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
	"github.com/xkilldash9x/trackerprobe/internal/config"
	"github.com/xkilldash9x/trackerprobe/internal/observability"
	"github.com/xkilldash9x/trackerprobe/internal/store"
	"github.com/xkilldash9x/trackerprobe/internal/target"
)

var errNoBrowser = errors.New("no browser attached")

// deadSession fails every browser interaction immediately.
type deadSession struct {
	mu     sync.Mutex
	closed bool
	calls  int
}

var _ schemas.SessionContext = (*deadSession)(nil)

func (d *deadSession) record() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return errNoBrowser
}

func (d *deadSession) ID() string { return "dead" }

func (d *deadSession) Navigate(context.Context, string) error              { return d.record() }
func (d *deadSession) WaitVisible(context.Context, schemas.Selector) error { return d.record() }
func (d *deadSession) WaitPresent(context.Context, schemas.Selector) error { return d.record() }
func (d *deadSession) Click(context.Context, schemas.Selector) error       { return d.record() }

func (d *deadSession) Fill(context.Context, schemas.Selector, string) error       { return d.record() }
func (d *deadSession) SetFiles(context.Context, schemas.Selector, []string) error { return d.record() }

func (d *deadSession) Count(context.Context, schemas.Selector) (int, error) { return 0, d.record() }
func (d *deadSession) Evaluate(context.Context, string, interface{}) error  { return d.record() }
func (d *deadSession) Screenshot(context.Context) ([]byte, error)           { return nil, d.record() }

func (d *deadSession) Close(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type fakeSessionProvider struct {
	session *deadSession
	err     error
	opened  int
	cleaned int
}

func (p *fakeSessionProvider) Open(ctx context.Context, cfg config.Interface, logger *zap.Logger) (schemas.SessionContext, func(), error) {
	p.opened++
	if p.err != nil {
		return nil, nil, p.err
	}
	if p.session == nil {
		p.session = &deadSession{}
	}
	return p.session, func() { p.cleaned++ }, nil
}

type fakePreflighter struct {
	info   target.Info
	err    error
	called string
}

func (f *fakePreflighter) Preflight(ctx context.Context, baseURL string, logger *zap.Logger) (target.Info, error) {
	f.called = baseURL
	return f.info, f.err
}

// fakeStore keeps reports in memory.
type fakeStore struct {
	saved    []*schemas.Report
	schemaOK bool
	saveErr  error
	runs     []store.RunSummary
}

func (s *fakeStore) EnsureSchema(context.Context) error { s.schemaOK = true; return nil }

func (s *fakeStore) SaveReport(_ context.Context, r *schemas.Report) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, r)
	return nil
}

func (s *fakeStore) GetReport(_ context.Context, runID string) (*schemas.Report, error) {
	for _, r := range s.saved {
		if r.RunID == runID {
			return r, nil
		}
	}
	return nil, store.ErrRunNotFound
}

func (s *fakeStore) ListRuns(_ context.Context, limit int) ([]store.RunSummary, error) {
	return s.runs, nil
}

type fakeStoreProvider struct {
	store   *fakeStore
	err     error
	cleaned int
}

func (p *fakeStoreProvider) Create(context.Context, config.Interface, *zap.Logger) (reportStore, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.store, func() { p.cleaned++ }, nil
}

type testDeps struct {
	sessions *fakeSessionProvider
	stores   *fakeStoreProvider
	checker  *fakePreflighter
}

func newTestDeps() testDeps {
	return testDeps{
		sessions: &fakeSessionProvider{},
		stores:   &fakeStoreProvider{store: &fakeStore{}},
		checker:  &fakePreflighter{info: target.Info{StatusCode: 200, Title: "Assignment Tracker", HasRoot: true}},
	}
}

func (d testDeps) deps() dependencies {
	return dependencies{sessions: d.sessions, stores: d.stores, checker: d.checker}
}

// resetForTest isolates the global logger and the environment between tests.
func resetForTest(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	t.Setenv("TRACKERPROBE_LOGGER_LEVEL", "fatal")
	t.Cleanup(observability.ResetForTest)
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, deps dependencies, args ...string) (string, error) {
	t.Helper()
	resetForTest(t)

	root := newRootCmd(deps)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func newCommandWithConfig(cfg config.Interface) *cobra.Command {
	c := newRunCmd(dependencies{})
	c.SetContext(context.WithValue(context.Background(), configKey, cfg))
	return c
}
