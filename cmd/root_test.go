package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
	"github.com/JakeFAU/dealfeed-collector/internal/config"
	"github.com/JakeFAU/dealfeed-collector/internal/ops"
	"github.com/JakeFAU/dealfeed-collector/internal/pipeline"
)

type mockApp struct {
	mock.Mock
	cfg config.Config
	ops *ops.Server
}

func (m *mockApp) Close()                 { m.Called() }
func (m *mockApp) Logger() *zap.Logger    { return zap.NewNop() }
func (m *mockApp) Config() config.Config  { return m.cfg }
func (m *mockApp) Clock() collector.Clock { return fixedClock{} }
func (m *mockApp) Ops() *ops.Server       { return m.ops }

func (m *mockApp) NewRunID() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockApp) Run(ctx context.Context, runID string) (pipeline.Summary, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).(pipeline.Summary), args.Error(1)
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collector.yaml")
	body := `
proxy:
  server: http://proxy.example.com:8080
storage:
  backend: memory
records:
  backend: memory
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func withApp(t *testing.T, m *mockApp) {
	t.Helper()
	prev := newApp
	newApp = func(_ context.Context, cfg config.Config, _ *zap.Logger) (App, error) {
		m.cfg = cfg
		return m, nil
	}
	t.Cleanup(func() { newApp = prev })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCollectRunsOnceAndPrintsSummary(t *testing.T) {
	m := &mockApp{ops: ops.NewServer(nil)}
	m.On("NewRunID").Return("run-123", nil).Once()
	m.On("Run", mock.Anything, "run-123").Return(pipeline.Summary{RunID: "run-123", Scanned: 5, Produced: 2, Captchas: 1}, nil).Once()
	m.On("Close").Return().Once()
	withApp(t, m)

	out, err := execute(t, "collect", "--config", writeConfig(t), "--env-file", filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-123")
	assert.Contains(t, out, "Records produced")
	assert.Equal(t, "haregakaniti", m.cfg.Feed.Channel)
	m.AssertExpectations(t)
}

func TestCollectPropagatesRunError(t *testing.T) {
	m := &mockApp{ops: ops.NewServer(nil)}
	m.On("NewRunID").Return("run-9", nil).Once()
	m.On("Run", mock.Anything, "run-9").Return(pipeline.Summary{RunID: "run-9"}, errors.New("fetch feed: 502")).Once()
	m.On("Close").Return().Once()
	withApp(t, m)

	_, err := execute(t, "collect", "--no-table", "--config", writeConfig(t), "--env-file", filepath.Join(t.TempDir(), "none.env"))
	require.ErrorContains(t, err, "fetch feed: 502")
	m.AssertExpectations(t)
}

func TestCollectFailsOnBadConfig(t *testing.T) {
	m := &mockApp{ops: ops.NewServer(nil)}
	withApp(t, m)

	_, err := execute(t, "collect", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "load config")
	m.AssertNotCalled(t, "NewRunID")
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, pipeline.Summary{RunID: "r", Scanned: 3, StoreFailures: 1})
	assert.Contains(t, buf.String(), "Store write failures")
	assert.Contains(t, buf.String(), "Messages scanned")
}
