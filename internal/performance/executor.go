package performance

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phanngoc/lookapi/internal/httpclient"
	"github.com/phanngoc/lookapi/internal/scenario"
)

// Timing knobs. Overridable in tests, fixed in production use.
const (
	defaultManagerInterval = 100 * time.Millisecond
	defaultReportInterval  = time.Second
	defaultIterationPause  = 10 * time.Millisecond
	defaultShutdownTimeout = 10 * time.Second
)

// Executor runs one scenario under load: a pool of virtual users tracks
// the stage scheduler's target, feeding a shared metrics collector.
//
// Each VU holds a private copy of the scenario variables; extractor
// updates are VU-local, so a VU's later iterations observe its own earlier
// extractions and nothing from other VUs. Workers are never retired while
// their stage shrinks; they exit on stop, on schedule end, or when the
// global iteration cap is reached.
type Executor struct {
	scenario *scenario.Scenario
	steps    []scenario.Step
	config   Config
	baseURL  string
	client   *httpclient.Client
	logger   *zap.Logger

	managerInterval time.Duration
	reportInterval  time.Duration
	iterationPause  time.Duration
	shutdownTimeout time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithBaseURL sets the project base URL for relative request URLs.
func WithBaseURL(baseURL string) ExecutorOption {
	return func(e *Executor) { e.baseURL = baseURL }
}

// WithClient overrides the shared HTTP client.
func WithClient(client *httpclient.Client) ExecutorOption {
	return func(e *Executor) { e.client = client }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// withIntervals compresses the internal cadences; test-only.
func withIntervals(manager, report, pause time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.managerInterval = manager
		e.reportInterval = report
		e.iterationPause = pause
	}
}

// NewExecutor creates a performance executor for one scenario and config.
func NewExecutor(sc *scenario.Scenario, steps []scenario.Step, config Config, options ...ExecutorOption) *Executor {
	e := &Executor{
		scenario:        sc,
		steps:           steps,
		config:          config,
		client:          httpclient.NewClient(httpclient.WithInsecureSkipVerify(true)),
		logger:          zap.NewNop(),
		managerInterval: defaultManagerInterval,
		reportInterval:  defaultReportInterval,
		iterationPause:  defaultIterationPause,
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Run executes the load test and blocks until completion or cancellation.
// The run passes iff every threshold evaluates to pass.
func (e *Executor) Run(ctx context.Context, emitter scenario.Emitter) *Run {
	if emitter == nil {
		emitter = scenario.NopEmitter{}
	}

	runID := uuid.NewString()
	startedAt := time.Now().Unix()
	start := time.Now()

	e.logger.Info("starting performance test",
		zap.String("scenario", e.scenario.Name),
		zap.String("configId", e.config.ID),
		zap.String("runId", runID))

	emitter.Emit(EventPerfStarted, PerfStartedEvent{
		RunID:      runID,
		ConfigID:   e.config.ID,
		ScenarioID: e.scenario.ID,
		StartedAt:  startedAt,
	})

	collector := NewCollector()
	scheduler := e.buildScheduler()

	var (
		stop       atomic.Bool
		currentVUs atomic.Int32
		maxVUs     atomic.Int32
		iterations atomic.Int64
		nextVUID   atomic.Int32
		vuWg       sync.WaitGroup
	)

	requestSteps := e.requestSteps()
	baseVars := e.baseVariables()

	worker := func(vuID int) {
		defer func() {
			currentVUs.Add(-1)
			vuWg.Done()
		}()

		localVars := make(map[string]interface{}, len(baseVars))
		for k, v := range baseVars {
			localVars[k] = v
		}
		resolver := scenario.NewResolver(localVars, e.logger)

		e.logger.Debug("VU started", zap.Int("vu", vuID))
		var localIteration int64
		for {
			if stop.Load() || scheduler.IsCompleted() {
				break
			}
			if e.config.Iterations > 0 && iterations.Load() >= e.config.Iterations {
				break
			}

			localIteration++
			for _, step := range requestSteps {
				if stop.Load() {
					break
				}
				metric := e.executeRequestStep(ctx, step, resolver, localVars, vuID, localIteration)
				collector.Record(metric)
				emitter.Emit(EventPerfRequestCompleted, PerfRequestCompletedEvent{
					RunID:      runID,
					VUID:       vuID,
					StepName:   metric.StepName,
					DurationMs: metric.DurationMs,
					Success:    metric.Success,
					Status:     metric.Status,
				})
			}
			iterations.Add(1)

			select {
			case <-ctx.Done():
				return
			case <-time.After(e.iterationPause):
			}
		}
		e.logger.Debug("VU stopped", zap.Int("vu", vuID), zap.Int64("iterations", localIteration))
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// Manager: poll the scheduler and grow the pool toward the target.
	// Shrinking targets are honored only at run completion.
	group.Go(func() error {
		ticker := time.NewTicker(e.managerInterval)
		defer ticker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				stop.Store(true)
				e.awaitWorkers(&vuWg)
				return nil
			case <-ticker.C:
			}

			if stop.Load() || scheduler.IsCompleted() {
				break
			}
			if e.config.Iterations > 0 && iterations.Load() >= e.config.Iterations {
				break
			}

			target := scheduler.TargetVUs()
			active := int(currentVUs.Load())
			if active > int(maxVUs.Load()) {
				maxVUs.Store(int32(active))
			}

			for i := active; i < target; i++ {
				vuID := int(nextVUID.Add(1))
				currentVUs.Add(1)
				vuWg.Add(1)
				go worker(vuID)
			}
		}

		stop.Store(true)
		e.awaitWorkers(&vuWg)
		return nil
	})

	// Reporter: stream progress and stage transitions once per tick.
	group.Go(func() error {
		ticker := time.NewTicker(e.reportInterval)
		defer ticker.Stop()
		lastStage := -1

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
			}

			if stop.Load() || scheduler.IsCompleted() {
				return nil
			}

			if index, changed := scheduler.DetectTransition(lastStage); changed {
				lastStage = index
				if stage, ok := scheduler.StageAt(index); ok {
					emitter.Emit(EventPerfStageChanged, PerfStageChangedEvent{
						RunID:        runID,
						StageIndex:   index,
						TargetVUs:    stage.TargetVUs,
						DurationSecs: stage.DurationSecs,
					})
				}
			}

			progress := collector.Snapshot()
			emitter.Emit(EventPerfProgress, PerfProgressEvent{
				RunID:               runID,
				ElapsedSecs:         int64(scheduler.Elapsed().Seconds()),
				CurrentVUs:          int(currentVUs.Load()),
				TotalRequests:       progress.TotalRequests,
				FailedRequests:      progress.FailedRequests,
				RPS:                 progress.RPS,
				ErrorRate:           progress.ErrorRate,
				P95Duration:         progress.P95DurationMs,
				IterationsCompleted: progress.IterationsCompleted,
			})
		}
	})

	_ = group.Wait()

	aggregate := collector.Aggregate()
	thresholdResults := make([]ThresholdResult, 0, len(e.config.Thresholds))
	for _, threshold := range e.config.Thresholds {
		thresholdResults = append(thresholdResults, EvaluateThreshold(threshold, &aggregate))
	}

	status := RunPassed
	for _, result := range thresholdResults {
		if !result.Passed {
			status = RunFailed
			break
		}
	}

	run := &Run{
		ID:               runID,
		ConfigID:         e.config.ID,
		ScenarioID:       e.scenario.ID,
		Status:           status,
		StartedAt:        startedAt,
		CompletedAt:      time.Now().Unix(),
		DurationMs:       time.Since(start).Milliseconds(),
		MaxVUsReached:    int(maxVUs.Load()),
		Metrics:          &aggregate,
		ThresholdResults: thresholdResults,
	}

	e.logger.Info("performance test completed",
		zap.String("runId", runID),
		zap.String("status", string(status)),
		zap.Int64("requests", aggregate.TotalRequests),
		zap.Float64("rps", aggregate.RequestsPerSecond),
		zap.Int64("p95", aggregate.DurationP95))

	emitter.Emit(EventPerfCompleted, PerfCompletedEvent{RunID: runID, Run: *run})
	return run
}

// awaitWorkers blocks until every VU exits or the shutdown timeout lapses.
func (e *Executor) awaitWorkers(vuWg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		vuWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(e.shutdownTimeout):
		e.logger.Warn("shutdown timeout elapsed before all VUs stopped")
	}
}

func (e *Executor) buildScheduler() *Scheduler {
	if len(e.config.Stages) > 0 {
		return NewScheduler(e.config.Stages)
	}
	vus := e.config.VUs
	if vus == 0 {
		vus = 1
	}
	duration := e.config.DurationSecs
	if duration == 0 {
		duration = 30
	}
	return FixedScheduler(vus, duration)
}

// requestSteps filters the enabled request steps; other step types are
// scenario-mode concerns and are skipped under load.
func (e *Executor) requestSteps() []scenario.Step {
	steps := make([]scenario.Step, 0, len(e.steps))
	for _, step := range e.steps {
		if step.Enabled && step.StepType == scenario.StepRequest {
			steps = append(steps, step)
		}
	}
	return steps
}

func (e *Executor) baseVariables() map[string]interface{} {
	vars := make(map[string]interface{}, len(e.scenario.Variables)+1)
	for k, v := range e.scenario.Variables {
		vars[k] = v
	}
	baseURL := e.baseURL
	if baseURL == "" {
		baseURL = scenario.DefaultBaseURL
	}
	vars["baseUrl"] = baseURL
	return vars
}

// executeRequestStep issues one request for one VU and produces its
// metric. Transport failures record status 0; the VU carries on.
func (e *Executor) executeRequestStep(
	ctx context.Context,
	step scenario.Step,
	resolver *scenario.Resolver,
	localVars map[string]interface{},
	vuID int,
	iteration int64,
) RequestMetric {
	start := time.Now()
	metric := RequestMetric{
		StepID:    step.ID,
		StepName:  step.Name,
		VUID:      vuID,
		Iteration: iteration,
		Timestamp: time.Now().Unix(),
	}

	var cfg scenario.RequestConfig
	if err := json.Unmarshal(step.Config, &cfg); err != nil {
		metric.Method = "UNKNOWN"
		metric.DurationMs = time.Since(start).Milliseconds()
		return metric
	}

	method := strings.ToUpper(cfg.Method)
	url := e.resolveURL(resolver.ResolveString(cfg.URL))
	metric.Method = method
	metric.URL = url

	headers := make(map[string]string, len(cfg.Headers))
	for key, value := range cfg.Headers {
		headers[key] = resolver.ResolveString(value)
	}

	var body interface{}
	if method != http.MethodGet {
		if cfg.Body != nil {
			body = resolver.ResolveValue(cfg.Body)
		} else if cfg.Params != nil {
			body = resolver.ResolveValue(cfg.Params)
		}
	}

	resp, err := e.client.Do(ctx, httpclient.Request{Method: method, URL: url, Headers: headers, Body: body})
	metric.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		e.logger.Debug("request failed", zap.Int("vu", vuID), zap.String("url", url), zap.Error(err))
		return metric
	}

	metric.Status = resp.Status
	metric.Success = resp.IsSuccess()
	metric.DurationMs = resp.DurationMs

	stepResp := &scenario.StepResponse{
		Status:  resp.Status,
		Headers: resp.Headers,
		Body:    resp.Body,
	}
	for _, extractor := range cfg.Extract {
		localVars[extractor.Name] = scenario.ExtractValue(extractor, stepResp)
	}

	return metric
}

// resolveURL mirrors scenario-mode base-URL resolution.
func (e *Executor) resolveURL(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	if strings.HasPrefix(url, "/") {
		base := e.baseURL
		if base == "" {
			base = scenario.DefaultBaseURL
		}
		return strings.TrimRight(base, "/") + url
	}
	return url
}
