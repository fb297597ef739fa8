package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phanngoc/lookapi/internal/httpclient"
)

// DefaultBaseURL is used when the owning project declares no base URL.
const DefaultBaseURL = "http://localhost:8080"

// Executor runs scenarios sequentially. One executor drives one run at a
// time; concurrent runs each get their own executor and never share state.
type Executor struct {
	client    *httpclient.Client
	variables map[string]interface{}
	resolver  *Resolver
	baseURL   string
	logger    *zap.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithBaseURL sets the project base URL used for relative request URLs.
func WithBaseURL(baseURL string) ExecutorOption {
	return func(e *Executor) { e.baseURL = baseURL }
}

// WithClient overrides the HTTP client.
func WithClient(client *httpclient.Client) ExecutorOption {
	return func(e *Executor) { e.client = client }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor creates a scenario executor.
func NewExecutor(options ...ExecutorOption) *Executor {
	e := &Executor{
		client:    httpclient.NewClient(httpclient.WithInsecureSkipVerify(true)),
		variables: make(map[string]interface{}),
		logger:    zap.NewNop(),
	}
	for _, option := range options {
		option(e)
	}
	e.resolver = NewResolver(e.variables, e.logger)
	return e
}

// Execute runs the enabled steps of a scenario in step order and returns
// the run record. Events stream through the emitter as steps progress.
func (e *Executor) Execute(ctx context.Context, sc *Scenario, steps []Step, emitter Emitter) *Run {
	if emitter == nil {
		emitter = NopEmitter{}
	}

	runID := uuid.NewString()
	startedAt := time.Now().Unix()
	start := time.Now()

	e.logger.Info("starting scenario run",
		zap.String("scenario", sc.Name),
		zap.String("scenarioId", sc.ID),
		zap.String("runId", runID))

	for k, v := range sc.Variables {
		e.variables[k] = v
	}

	baseURL := e.baseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	e.variables["baseUrl"] = baseURL

	enabled := make([]Step, 0, len(steps))
	for _, step := range steps {
		if step.Enabled {
			enabled = append(enabled, step)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool { return enabled[i].StepOrder < enabled[j].StepOrder })
	totalSteps := len(enabled)

	emitter.Emit(EventScenarioStarted, ScenarioStartedEvent{
		RunID:      runID,
		ScenarioID: sc.ID,
		TotalSteps: totalSteps,
		StartedAt:  startedAt,
	})

	var (
		results      []StepResult
		passedSteps  int
		failedSteps  int
		skippedSteps int
		errorMessage string
	)

	recordResult := func(result StepResult) {
		switch result.Status {
		case StepPassed:
			passedSteps++
		case StepFailed, StepErrorStatus:
			failedSteps++
			if errorMessage == "" && result.Error != "" {
				errorMessage = result.Error
			}
		case StepSkipped:
			skippedSteps++
		}
		for k, v := range result.ExtractedVariables {
			e.variables[k] = v
		}
		results = append(results, result)
	}

	for index, step := range enabled {
		records, csvErr := e.csvRecordsForStep(step)
		if csvErr != nil {
			if errorMessage == "" {
				errorMessage = csvErr.Error()
			}
			e.logger.Error("CSV expansion failed", zap.String("step", step.Name), zap.Error(csvErr))
		}

		if records != nil {
			for csvIndex, record := range records {
				item := make(map[string]interface{}, len(record))
				for key, value := range record {
					item[key] = value
				}
				e.variables["item"] = item
				e.variables["index"] = float64(csvIndex)

				rowStepID := fmt.Sprintf("%s-%d", step.ID, csvIndex)
				emitter.Emit(EventStepStarted, StepStartedEvent{
					RunID:     runID,
					StepID:    rowStepID,
					StepIndex: index,
					StepName:  fmt.Sprintf("%s (row %d)", step.Name, csvIndex),
					StepType:  string(step.StepType),
				})

				result := e.executeStep(ctx, step)
				recordResult(result)

				emitter.Emit(EventStepCompleted, StepCompletedEvent{
					RunID:              runID,
					StepID:             rowStepID,
					StepIndex:          index,
					Status:             string(result.Status),
					Result:             result,
					ProgressPercentage: float64(len(results)) / float64(totalSteps) * 100,
				})
			}

			delete(e.variables, "item")
			delete(e.variables, "index")
			continue
		}

		emitter.Emit(EventStepStarted, StepStartedEvent{
			RunID:     runID,
			StepID:    step.ID,
			StepIndex: index,
			StepName:  step.Name,
			StepType:  string(step.StepType),
		})

		result := e.executeStep(ctx, step)
		recordResult(result)

		emitter.Emit(EventStepCompleted, StepCompletedEvent{
			RunID:              runID,
			StepID:             step.ID,
			StepIndex:          index,
			Status:             string(result.Status),
			Result:             result,
			ProgressPercentage: float64(index+1) / float64(totalSteps) * 100,
		})
	}

	status := RunPassed
	if failedSteps > 0 {
		status = RunFailed
	}

	run := &Run{
		ID:           runID,
		ScenarioID:   sc.ID,
		Status:       status,
		TotalSteps:   totalSteps,
		PassedSteps:  passedSteps,
		FailedSteps:  failedSteps,
		SkippedSteps: skippedSteps,
		DurationMs:   time.Since(start).Milliseconds(),
		StartedAt:    startedAt,
		CompletedAt:  time.Now().Unix(),
		ErrorMessage: errorMessage,
		Results:      results,
		Variables:    snapshotVariables(e.variables),
	}

	e.logger.Info("scenario run completed",
		zap.String("runId", runID),
		zap.String("status", string(status)),
		zap.Int("passed", passedSteps),
		zap.Int("failed", failedSteps))

	emitter.Emit(EventScenarioCompleted, ScenarioCompletedEvent{RunID: runID, Run: *run})
	return run
}

// csvRecordsForStep loads CSV rows when the step declares expansion.
// Returns (nil, nil) for steps without a CSV descriptor.
func (e *Executor) csvRecordsForStep(step Step) ([]map[string]string, error) {
	if step.StepType != StepRequest {
		return nil, nil
	}
	var cfg RequestConfig
	if err := json.Unmarshal(step.Config, &cfg); err != nil {
		return nil, nil
	}
	if cfg.CSVItems == nil {
		return nil, nil
	}

	records, err := ReadCSVRecords(cfg.CSVItems.FileName, cfg.CSVItems)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	e.logger.Info("loaded CSV records", zap.String("step", step.Name), zap.Int("rows", len(records)))
	return records, nil
}

// executeStep dispatches one step by type and stamps the wall-time
// duration on the result.
func (e *Executor) executeStep(ctx context.Context, step Step) StepResult {
	start := time.Now()

	var result StepResult
	switch step.StepType {
	case StepRequest:
		result = e.executeRequestStep(ctx, step)
	case StepDelay:
		result = e.executeDelayStep(ctx, step)
	case StepScript:
		result = e.executeScriptStep(step)
	case StepCondition, StepLoop:
		result = e.executePassThroughStep(step)
	default:
		result = StepResult{
			Status: StepErrorStatus,
			Error:  fmt.Sprintf("unknown step type: %s", step.StepType),
		}
	}

	result.StepID = step.ID
	result.Name = step.Name
	result.StepType = step.StepType
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

func (e *Executor) executeRequestStep(ctx context.Context, step Step) StepResult {
	var cfg RequestConfig
	if err := json.Unmarshal(step.Config, &cfg); err != nil {
		return StepResult{Status: StepErrorStatus, Error: fmt.Sprintf("invalid step config: %v", err)}
	}

	url := e.resolveURL(e.resolver.ResolveString(cfg.URL))
	method := strings.ToUpper(cfg.Method)

	headers := make(map[string]string, len(cfg.Headers))
	for key, value := range cfg.Headers {
		headers[key] = e.resolver.ResolveString(value)
	}

	var body interface{}
	if method != http.MethodGet {
		if cfg.Body != nil {
			body = e.resolver.ResolveValue(cfg.Body)
		} else if cfg.Params != nil {
			body = e.resolver.ResolveValue(cfg.Params)
		}
	}

	request := &StepRequestRecord{Method: method, URL: url, Headers: headers, Body: body}

	e.logger.Info("sending request", zap.String("method", method), zap.String("url", url))
	resp, err := e.client.Do(ctx, httpclient.Request{Method: method, URL: url, Headers: headers, Body: body})
	if err != nil {
		e.logger.Error("request failed", zap.String("url", url), zap.Error(err))
		return StepResult{
			Status:  StepErrorStatus,
			Request: request,
			Error:   fmt.Sprintf("request failed: %v", err),
		}
	}

	response := &StepResponse{
		Status:     resp.Status,
		StatusText: resp.StatusText,
		Headers:    resp.Headers,
		Body:       resp.Body,
		DurationMs: resp.DurationMs,
	}

	extracted := make(map[string]interface{}, len(cfg.Extract))
	for _, extractor := range cfg.Extract {
		extracted[extractor.Name] = ExtractValue(extractor, response)
	}

	assertions := make([]Assertion, 0, len(cfg.Assertions))
	allPassed := true
	for _, assertion := range cfg.Assertions {
		evaluated := EvaluateAssertion(assertion, response, resp.DurationMs)
		if evaluated.Passed == nil || !*evaluated.Passed {
			allPassed = false
		}
		assertions = append(assertions, evaluated)
	}

	status := StepPassed
	if !allPassed {
		status = StepFailed
	}

	return StepResult{
		Status:             status,
		Request:            request,
		Response:           response,
		Assertions:         assertions,
		ExtractedVariables: extracted,
	}
}

func (e *Executor) executeDelayStep(ctx context.Context, step Step) StepResult {
	var cfg DelayConfig
	if err := json.Unmarshal(step.Config, &cfg); err != nil {
		return StepResult{Status: StepErrorStatus, Error: fmt.Sprintf("invalid delay config: %v", err)}
	}

	select {
	case <-time.After(time.Duration(cfg.DurationMs) * time.Millisecond):
	case <-ctx.Done():
	}
	return StepResult{Status: StepPassed}
}

func (e *Executor) executeScriptStep(step Step) StepResult {
	var cfg ScriptConfig
	if err := json.Unmarshal(step.Config, &cfg); err != nil {
		return StepResult{Status: StepErrorStatus, Error: fmt.Sprintf("invalid script config: %v", err)}
	}

	// Scripts are recorded, never evaluated.
	e.logger.Info("script step recorded", zap.String("step", step.Name), zap.String("code", cfg.Code))
	return StepResult{Status: StepPassed}
}

// executePassThroughStep covers condition and loop steps: the configs are
// preserved but carry no behavior yet.
func (e *Executor) executePassThroughStep(Step) StepResult {
	return StepResult{Status: StepPassed}
}

// resolveURL applies base-URL resolution: absolute URLs pass through,
// URLs starting with "/" join the base URL, anything else is used verbatim.
func (e *Executor) resolveURL(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	if strings.HasPrefix(url, "/") {
		base := e.baseURL
		if base == "" {
			base = DefaultBaseURL
		}
		return strings.TrimRight(base, "/") + url
	}
	return url
}

func snapshotVariables(vars map[string]interface{}) map[string]interface{} {
	snapshot := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		snapshot[k] = v
	}
	return snapshot
}
