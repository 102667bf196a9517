package predictor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/backfill/pkg/embedded"
	"github.com/cuemby/backfill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRuntime returns canned results and records calls
type fakeRuntime struct {
	score    embedded.Score
	err      error
	calls    int
	args     []string
	deadline bool
}

func (f *fakeRuntime) Invoke(ctx context.Context, module, function, arg string) (embedded.Score, error) {
	f.calls++
	f.args = append(f.args, module+"."+function+"("+arg+")")
	_, f.deadline = ctx.Deadline()
	return f.score, f.err
}

func TestScriptPredictorOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		score    embedded.Score
		err      error
		expected types.OutcomeKind
	}{
		{name: "delay sentinel", score: 1, expected: types.OutcomeDelay},
		{name: "zero", score: 0, expected: types.OutcomeNoDelay},
		{name: "other score", score: 2, expected: types.OutcomeNoDelay},
		{name: "negative score", score: -1, expected: types.OutcomeNoDelay},
		{
			name:     "runtime error",
			err:      &embedded.RuntimeError{Kind: embedded.KindModuleNotFound, Module: "m", Function: "f"},
			expected: types.OutcomeUnavailable,
		},
		{name: "foreign error", err: errors.New("boom"), expected: types.OutcomeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &fakeRuntime{score: tt.score, err: tt.err}
			p := NewScriptPredictor(rt, "predict_func_v1", "priority", 0)

			outcome := p.Predict(context.Background(), "/jobs/a.sh")
			assert.Equal(t, tt.expected, outcome.Kind)
			assert.Equal(t, []string{"predict_func_v1.Priority(/jobs/a.sh)"}, rt.args)
			if tt.err != nil {
				assert.Equal(t, tt.err, outcome.Err)
			} else {
				assert.EqualValues(t, tt.score, outcome.Score)
			}
		})
	}
}

func TestScriptPredictorTimeout(t *testing.T) {
	rt := &fakeRuntime{}

	NewScriptPredictor(rt, "m", "f", 0).Predict(context.Background(), "x")
	assert.False(t, rt.deadline)

	NewScriptPredictor(rt, "m", "f", time.Second).Predict(context.Background(), "x")
	assert.True(t, rt.deadline)
}

func TestScriptPredictorWithInterpreter(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "predict_func_v1")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "predict.go"), []byte(`package predict_func_v1

import "strings"

func priority(scriptPath string) bool {
	return strings.HasPrefix(scriptPath, "/jobs/a")
}
`), 0644))

	in := embedded.NewInterpreter(embedded.Options{})
	p := NewScriptPredictor(in, "predict_func_v1", "priority", time.Second)
	assert.Equal(t, "predict_func_v1", p.Module())
	assert.Equal(t, "priority", p.Function())

	// Before initialization the runtime is unavailable
	outcome := p.Predict(context.Background(), "/jobs/a.sh")
	assert.Equal(t, types.OutcomeUnavailable, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, embedded.ErrNotInitialized)

	require.NoError(t, in.Initialize([]string{root}))
	defer func() { _ = in.Shutdown() }()

	assert.Equal(t, types.OutcomeDelay, p.Predict(context.Background(), "/jobs/a.sh").Kind)
	assert.Equal(t, types.OutcomeNoDelay, p.Predict(context.Background(), "/jobs/b.sh").Kind)
}

func TestFunc(t *testing.T) {
	var p Predictor = Func(func(ctx context.Context, feature string) types.Outcome {
		return types.Delay(types.DelayScore)
	})
	assert.Equal(t, types.OutcomeDelay, p.Predict(context.Background(), "x").Kind)
}
