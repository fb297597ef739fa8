package performance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanngoc/lookapi/internal/scenario"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events map[string][]interface{}
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{events: make(map[string][]interface{})}
}

func (r *recordingEmitter) Emit(event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event] = append(r.events[event], payload)
}

func (r *recordingEmitter) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events[event])
}

func perfScenario(t *testing.T) (*scenario.Scenario, []scenario.Step) {
	t.Helper()
	sc := &scenario.Scenario{
		ID:        "sc-1",
		Name:      "load target",
		Variables: map[string]interface{}{"who": "vu"},
	}

	requestCfg, err := json.Marshal(scenario.RequestConfig{
		Method: "GET",
		URL:    "/ping",
		Extract: []scenario.Extractor{
			{Name: "last", Source: "body", Path: "n"},
		},
	})
	require.NoError(t, err)
	delayCfg, err := json.Marshal(scenario.DelayConfig{DurationMs: 500})
	require.NoError(t, err)

	steps := []scenario.Step{
		{ID: "st-req", ScenarioID: sc.ID, StepOrder: 0, StepType: scenario.StepRequest, Name: "ping", Config: requestCfg, Enabled: true},
		// Non-request steps are skipped in load mode.
		{ID: "st-delay", ScenarioID: sc.ID, StepOrder: 1, StepType: scenario.StepDelay, Name: "pause", Config: delayCfg, Enabled: true},
	}
	return sc, steps
}

// jumpStages starts the run at target immediately: a zero-length first
// stage lifts the ramp origin, then the second stage holds the target.
func jumpStages(target int, durationSecs int64) []Stage {
	return []Stage{
		{DurationSecs: 0, TargetVUs: target},
		{DurationSecs: durationSecs, TargetVUs: target},
	}
}

func fastOptions(serverURL string) []ExecutorOption {
	return []ExecutorOption{
		WithBaseURL(serverURL),
		withIntervals(5*time.Millisecond, 20*time.Millisecond, time.Millisecond),
	}
}

func TestRunCollectsMetricsAndPasses(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"n":1}`))
	}))
	defer server.Close()

	sc, steps := perfScenario(t)
	config := Config{
		ID:         "cfg-1",
		ScenarioID: sc.ID,
		TestType:   TestSmoke,
		Stages:     jumpStages(3, 1),
		Thresholds: []Threshold{
			{Metric: "http_req_failed", Condition: "rate<0.5"},
		},
	}

	emitter := newRecordingEmitter()
	run := NewExecutor(sc, steps, config, fastOptions(server.URL)...).Run(context.Background(), emitter)

	assert.Equal(t, RunPassed, run.Status)
	require.NotNil(t, run.Metrics)
	assert.Positive(t, run.Metrics.TotalRequests)
	assert.Equal(t, run.Metrics.TotalRequests, hits.Load())
	assert.Zero(t, run.Metrics.FailedRequests)
	assert.Positive(t, run.MaxVUsReached)
	assert.LessOrEqual(t, run.MaxVUsReached, 3)
	assert.Positive(t, run.Metrics.IterationsCompleted)

	// Delay steps never reach the pool: the run finishes in ~1s, which a
	// 500ms-per-iteration delay would have made impossible at this volume.
	require.Contains(t, run.Metrics.StepMetrics, "st-req")
	assert.NotContains(t, run.Metrics.StepMetrics, "st-delay")

	assert.Equal(t, 1, emitter.count(EventPerfStarted))
	assert.Equal(t, 1, emitter.count(EventPerfCompleted))
	assert.Positive(t, emitter.count(EventPerfRequestCompleted))
	assert.Positive(t, emitter.count(EventPerfProgress))
}

func TestRunIterationCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	sc, steps := perfScenario(t)
	config := Config{
		ID:         "cfg-2",
		ScenarioID: sc.ID,
		// Long stage: only the iteration cap can end this quickly.
		Stages:     jumpStages(2, 3600),
		Iterations: 5,
	}

	start := time.Now()
	run := NewExecutor(sc, steps, config, fastOptions(server.URL)...).Run(context.Background(), nil)

	assert.Less(t, time.Since(start), 10*time.Second)
	require.NotNil(t, run.Metrics)
	assert.GreaterOrEqual(t, run.Metrics.IterationsCompleted, int64(5))
	assert.Equal(t, RunPassed, run.Status)
}

func TestRunThresholdFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sc, steps := perfScenario(t)
	config := Config{
		ID:         "cfg-3",
		ScenarioID: sc.ID,
		Stages:     jumpStages(2, 1),
		Thresholds: []Threshold{
			{Metric: "http_req_failed", Condition: "rate<0.05"},
		},
	}

	run := NewExecutor(sc, steps, config, fastOptions(server.URL)...).Run(context.Background(), nil)

	assert.Equal(t, RunFailed, run.Status)
	require.Len(t, run.ThresholdResults, 1)
	assert.False(t, run.ThresholdResults[0].Passed)
	assert.InDelta(t, 1.0, run.ThresholdResults[0].ActualValue, 1e-9)
	assert.NotEmpty(t, run.ThresholdResults[0].Message)
}

func TestRunTransportFailuresRecordedAsStatusZero(t *testing.T) {
	sc, steps := perfScenario(t)
	config := Config{
		ID:         "cfg-4",
		ScenarioID: sc.ID,
		Stages:     jumpStages(1, 1),
	}

	run := NewExecutor(sc, steps, config,
		WithBaseURL("http://127.0.0.1:1"),
		withIntervals(5*time.Millisecond, 20*time.Millisecond, time.Millisecond),
	).Run(context.Background(), nil)

	require.NotNil(t, run.Metrics)
	assert.Positive(t, run.Metrics.TotalRequests)
	assert.Equal(t, run.Metrics.TotalRequests, run.Metrics.FailedRequests)
	assert.InDelta(t, 1.0, run.Metrics.ErrorRate, 1e-9)
}

func TestRunCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	sc, steps := perfScenario(t)
	config := Config{
		ID:         "cfg-5",
		ScenarioID: sc.ID,
		Stages:     jumpStages(2, 3600),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	run := NewExecutor(sc, steps, config, fastOptions(server.URL)...).Run(ctx, nil)

	assert.Less(t, time.Since(start), 10*time.Second)
	require.NotNil(t, run.Metrics)
	assert.Positive(t, run.Metrics.TotalRequests)
}

// Extractor updates stay VU-local: one VU's token never leaks into the
// shared base variables.
func TestRunVariableIsolation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"n":42}`))
	}))
	defer server.Close()

	sc, steps := perfScenario(t)
	config := Config{
		ID:         "cfg-6",
		ScenarioID: sc.ID,
		Stages:     jumpStages(2, 1),
	}

	executor := NewExecutor(sc, steps, config, fastOptions(server.URL)...)
	run := executor.Run(context.Background(), nil)

	require.NotNil(t, run.Metrics)
	assert.Positive(t, run.Metrics.TotalRequests)
	assert.NotContains(t, sc.Variables, "last")
	assert.NotContains(t, executor.baseVariables(), "last")
}
