package plugin

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/backfill/pkg/config"
	"github.com/cuemby/backfill/pkg/events"
	"github.com/cuemby/backfill/pkg/metrics"
	"github.com/cuemby/backfill/pkg/priority"
	"github.com/cuemby/backfill/pkg/scheduler"
	"github.com/cuemby/backfill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const delayModel = `package predict_func_v1

import "strings"

func priority(scriptPath string) int {
	if strings.HasSuffix(scriptPath, "a.sh") {
		return 1
	}
	return 0
}
`

// countingBackfiller counts passes and reconfigurations
type countingBackfiller struct {
	passes   atomic.Int64
	reconfig atomic.Int64
}

func (b *countingBackfiller) RunPass(ctx context.Context) error {
	b.passes.Add(1)
	return nil
}

func (b *countingBackfiller) Reconfigure() error {
	b.reconfig.Add(1)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, config.DefaultModule)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.go"), []byte(delayModel), 0644))

	cfg := config.Default()
	cfg.Backfill.Interval = 5 * time.Millisecond
	cfg.Predictor.SearchPaths = []string{root}
	return cfg
}

func newPlugin(t *testing.T, cfg *config.Config, b scheduler.Backfiller) *Plugin {
	t.Helper()
	p, err := New(cfg, b, priority.Identity)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.Fini()
		p.Close()
	})
	return p
}

func TestPluginLifecycle(t *testing.T) {
	b := &countingBackfiller{}
	p := newPlugin(t, testConfig(t), b)

	require.NoError(t, p.Init())
	assert.True(t, p.Running())

	require.Eventually(t, func() bool {
		return b.passes.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	delayed := p.InitialPriority(1000, &types.Job{ID: 42, ScriptPath: "/jobs/a.sh"})
	assert.Equal(t, types.Priority(500), delayed)

	kept := p.InitialPriority(1000, &types.Job{ID: 43})
	assert.Equal(t, types.Priority(1000), kept)

	argvOnly := p.InitialPriority(1000, &types.Job{ID: 43, Argv: []string{"/jobs/a.sh"}})
	assert.Equal(t, types.Priority(1000), argvOnly)

	notDelayed := p.InitialPriority(1000, &types.Job{ID: 44, ScriptPath: "/jobs/b.sh"})
	assert.Equal(t, types.Priority(1000), notDelayed)

	require.NoError(t, p.Reconfig())
	require.Eventually(t, func() bool {
		return b.reconfig.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.Fini())
	assert.False(t, p.Running())

	stopped := p.Passes()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, p.Passes(), "backfill passes continued after Fini")

	// The runtime is shut down: priorities fall back to the formula
	assert.Equal(t, types.Priority(1000), p.InitialPriority(1000, &types.Job{ID: 45, ScriptPath: "/jobs/a.sh"}))
}

func TestPluginSchedulingDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.SchedulingDisabled = true
	b := &countingBackfiller{}
	p := newPlugin(t, cfg, b)

	require.NoError(t, p.Init())
	assert.False(t, p.Running())

	// Nothing initialized the predictor, so no delay is applied
	assert.Equal(t, types.Priority(1000), p.InitialPriority(1000, &types.Job{ID: 42, ScriptPath: "/jobs/a.sh"}))

	require.NoError(t, p.Fini())
	assert.Zero(t, b.passes.Load())
}

func TestPluginDoubleInit(t *testing.T) {
	p := newPlugin(t, testConfig(t), &countingBackfiller{})

	require.NoError(t, p.Init())
	runID := p.agent.RunID()

	err := p.Init()
	assert.ErrorIs(t, err, scheduler.ErrAlreadyRunning)
	assert.Equal(t, runID, p.agent.RunID(), "second Init replaced the worker")

	// Priorities still resolve through the predictor
	assert.Equal(t, types.Priority(500), p.InitialPriority(1000, &types.Job{ID: 42, ScriptPath: "/jobs/a.sh"}))
}

func TestPluginFiniWithoutInit(t *testing.T) {
	p := newPlugin(t, testConfig(t), &countingBackfiller{})

	assert.NoError(t, p.Fini())
	assert.NoError(t, p.Fini())
	assert.NoError(t, p.Reconfig())
}

func TestPluginMissingPredictor(t *testing.T) {
	cfg := testConfig(t)
	cfg.Predictor.Module = "absent_model"
	p := newPlugin(t, cfg, &countingBackfiller{})

	require.NoError(t, p.Init())

	assert.Equal(t, types.Priority(1000), p.InitialPriority(1000, &types.Job{ID: 42, ScriptPath: "/jobs/a.sh"}))
	assert.Equal(t, types.Priority(7), p.InitialPriority(7, &types.Job{ID: 43, Argv: []string{"/jobs/a.sh"}}))
}

func TestPluginFormulaAppliedLast(t *testing.T) {
	plusOne := func(baseline types.Priority, _ *types.Job) types.Priority { return baseline + 1 }
	p, err := New(testConfig(t), &countingBackfiller{}, plusOne)
	require.NoError(t, err)
	defer p.Close()
	defer func() { _ = p.Fini() }()

	require.NoError(t, p.Init())

	assert.Equal(t, types.Priority(501), p.InitialPriority(1000, &types.Job{ID: 42, ScriptPath: "/jobs/a.sh"}))
	assert.Equal(t, types.Priority(1001), p.InitialPriority(1000, &types.Job{ID: 43}))
}

func TestPluginEvents(t *testing.T) {
	p := newPlugin(t, testConfig(t), &countingBackfiller{})
	sub := p.Events().Subscribe()
	defer p.Events().Unsubscribe(sub)

	require.NoError(t, p.Init())
	p.InitialPriority(1000, &types.Job{ID: 42, ScriptPath: "/jobs/a.sh"})
	require.NoError(t, p.Reconfig())
	require.NoError(t, p.Fini())

	expected := []events.EventType{
		events.EventAgentStarted,
		events.EventPredictorReady,
		events.EventPriorityDelayed,
		events.EventAgentReconfigured,
		events.EventAgentStopped,
		events.EventPredictorShutdown,
	}

	var got []*events.Event
	timeout := time.After(2 * time.Second)
	for len(got) < len(expected) {
		select {
		case e := <-sub:
			got = append(got, e)
		case <-timeout:
			t.Fatalf("received %d of %d events", len(got), len(expected))
		}
	}

	for i, e := range got {
		assert.Equal(t, expected[i], e.Type)
		assert.NotEmpty(t, e.ID)
	}
	assert.Equal(t, "42", got[2].Metadata["job_id"])
	assert.Equal(t, "500", got[2].Metadata["priority"])
}

func TestPluginPredictorProbe(t *testing.T) {
	cfg := testConfig(t)
	cfg.Predictor.Module = "absent_model"
	cfg.Predictor.Probe.Interval = 5 * time.Millisecond
	cfg.Predictor.Probe.Retries = 2
	p := newPlugin(t, cfg, &countingBackfiller{})

	require.NoError(t, p.Init())

	require.Eventually(t, func() bool {
		return metrics.GetReadiness().Status == "not_ready"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, metrics.GetHealth().Components[metrics.ComponentPredictor], "unhealthy")

	require.NoError(t, p.Fini())
}

func TestPluginReadyAfterInit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Predictor.Probe.Interval = 5 * time.Millisecond
	p := newPlugin(t, cfg, &countingBackfiller{})

	require.NoError(t, p.Init())
	require.Eventually(t, func() bool {
		return metrics.GetReadiness().Status == "ready"
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.Fini())
	assert.Equal(t, "not_ready", metrics.GetReadiness().Status)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Backfill.Interval = 0

	_, err := New(cfg, &countingBackfiller{}, priority.Identity)
	assert.Error(t, err)
}
