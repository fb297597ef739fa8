// Package commands exposes the engine as named JSON-in/JSON-out
// operations. The desktop shell dispatches user actions here; long-running
// operations stream events through the emitter and return a terminal
// record.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phanngoc/lookapi/internal/httpclient"
	"github.com/phanngoc/lookapi/internal/performance"
	"github.com/phanngoc/lookapi/internal/scanner"
	"github.com/phanngoc/lookapi/internal/scenario"
	"github.com/phanngoc/lookapi/internal/store"
	"github.com/phanngoc/lookapi/internal/yamlio"
)

// Handler is one named operation.
type Handler func(ctx context.Context, input json.RawMessage) (interface{}, error)

// Service owns the dependencies shared by all operations.
type Service struct {
	repo    store.Repository
	emitter scenario.Emitter
	client  *httpclient.Client
	logger  *zap.Logger

	handlers map[string]Handler
}

// Option configures a Service.
type Option func(*Service)

// WithEmitter sets the event sink for run operations.
func WithEmitter(emitter scenario.Emitter) Option {
	return func(s *Service) { s.emitter = emitter }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClient overrides the HTTP client used by run operations.
func WithClient(client *httpclient.Client) Option {
	return func(s *Service) { s.client = client }
}

// NewService creates the command surface over a repository.
func NewService(repo store.Repository, options ...Option) *Service {
	s := &Service{
		repo:    repo,
		emitter: scenario.NopEmitter{},
		client:  httpclient.NewClient(httpclient.WithInsecureSkipVerify(true)),
		logger:  zap.NewNop(),
	}
	for _, option := range options {
		option(s)
	}

	s.handlers = map[string]Handler{
		"project.create":             s.projectCreate,
		"project.list":               s.projectList,
		"project.delete":             s.projectDelete,
		"project.scan":               s.projectScan,
		"endpoint.listByProject":     s.endpointList,
		"scenario.create":            s.scenarioCreate,
		"scenario.update":            s.scenarioUpdate,
		"scenario.delete":            s.scenarioDelete,
		"scenario.list":              s.scenarioList,
		"scenario.run":               s.scenarioRun,
		"step.create":                s.stepCreate,
		"step.update":                s.stepUpdate,
		"step.delete":                s.stepDelete,
		"step.reorder":               s.stepReorder,
		"perf.createConfig":          s.perfCreateConfig,
		"perf.run":                   s.perfRun,
		"csv.preview":                s.csvPreview,
		"yaml.export":                s.yamlExport,
		"yaml.exportProject":         s.yamlExportProject,
		"yaml.import":                s.yamlImport,
		"yaml.preview":               s.yamlPreview,
		"yaml.generateFromEndpoints": s.yamlGenerate,
		"http.execute":               s.httpExecute,
		"http.curl":                  s.httpCurl,
	}
	return s
}

// Operations lists the registered operation names.
func (s *Service) Operations() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke dispatches one operation and serializes its result.
func (s *Service) Invoke(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	handler, ok := s.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown operation: %s", name)
	}

	result, err := handler(ctx, input)
	if err != nil {
		s.logger.Warn("operation failed", zap.String("operation", name), zap.Error(err))
		return nil, err
	}
	if result == nil {
		return json.RawMessage(`null`), nil
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding %s result: %w", name, err)
	}
	return encoded, nil
}

func decode[T any](input json.RawMessage) (T, error) {
	var value T
	if len(input) == 0 {
		return value, nil
	}
	if err := json.Unmarshal(input, &value); err != nil {
		return value, fmt.Errorf("invalid input: %w", err)
	}
	return value, nil
}

// Project operations.

func (s *Service) projectCreate(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		Path    string `json:"path"`
		Name    string `json:"name"`
		BaseURL string `json:"baseUrl"`
	}](input)
	if err != nil {
		return nil, err
	}
	if req.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	name := req.Name
	if name == "" {
		name = filepath.Base(req.Path)
	}

	project := store.Project{
		ID:        uuid.NewString(),
		Name:      name,
		Path:      req.Path,
		BaseURL:   req.BaseURL,
		CreatedAt: time.Now().Unix(),
	}
	if err := s.repo.SaveProject(project); err != nil {
		return nil, fmt.Errorf("saving project: %w", err)
	}
	return project, nil
}

func (s *Service) projectList(context.Context, json.RawMessage) (interface{}, error) {
	return s.repo.ListProjects()
}

func (s *Service) projectDelete(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ID string `json:"id"`
	}](input)
	if err != nil {
		return nil, err
	}
	return nil, s.repo.DeleteProject(req.ID)
}

func (s *Service) projectScan(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ProjectID string `json:"projectId"`
	}](input)
	if err != nil {
		return nil, err
	}

	project, err := s.repo.GetProject(req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}

	if err := s.repo.ClearProjectEndpoints(project.ID); err != nil {
		return nil, fmt.Errorf("clearing old endpoints: %w", err)
	}

	result, err := scanner.New(project.Path, s.logger).Scan()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	endpoints := make([]store.Endpoint, 0, len(result.Endpoints))
	for _, scanned := range result.Endpoints {
		endpoint := toStoredEndpoint(project.ID, scanned)
		if err := s.repo.SaveEndpoint(endpoint); err != nil {
			return nil, fmt.Errorf("saving endpoint: %w", err)
		}
		endpoints = append(endpoints, endpoint)
	}

	project.LastScanned = time.Now().Unix()
	if err := s.repo.SaveProject(project); err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}

	return endpoints, nil
}

// toStoredEndpoint flattens a scanned endpoint into its persisted form.
func toStoredEndpoint(projectID string, scanned scanner.Endpoint) store.Endpoint {
	id := fmt.Sprintf("%s-%s-%s",
		projectID,
		strings.ToUpper(scanned.Method),
		strings.NewReplacer("/", "-", "{", "", "}", "").Replace(scanned.Path))

	parameters := make([]store.Parameter, 0, len(scanned.Parameters))
	for _, param := range scanned.Parameters {
		parameters = append(parameters, store.Parameter{
			Name:         param.Name,
			ParamType:    param.ParamType,
			Required:     param.Required,
			Example:      param.Example,
			DefaultValue: param.DefaultValue,
		})
	}

	return store.Endpoint{
		ID:          id,
		ProjectID:   projectID,
		Name:        fmt.Sprintf("%s %s", scanned.Method, scanned.Path),
		Method:      scanned.Method,
		Path:        scanned.Path,
		Service:     scanner.ServiceFromPath(scanned.FilePath),
		Description: scanned.BusinessLogic.Description,
		Parameters:  parameters,
		Category:    scanner.CategoryFromPath(scanned.Path),
		Explanation: scanned.BusinessLogic.Summary,
	}
}

func (s *Service) endpointList(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ProjectID string `json:"projectId"`
	}](input)
	if err != nil {
		return nil, err
	}
	return s.repo.ListEndpointsByProject(req.ProjectID)
}

// Scenario operations.

func (s *Service) scenarioCreate(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ProjectID   string `json:"projectId"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
	}](input)
	if err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	priority := req.Priority
	if priority == "" {
		priority = scenario.PriorityMedium
	}

	now := time.Now().Unix()
	sc := scenario.Scenario{
		ID:          uuid.NewString(),
		ProjectID:   req.ProjectID,
		Name:        req.Name,
		Description: req.Description,
		Priority:    priority,
		Variables:   map[string]interface{}{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.SaveScenario(sc); err != nil {
		return nil, fmt.Errorf("saving scenario: %w", err)
	}
	return sc, nil
}

func (s *Service) scenarioUpdate(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ID          string                  `json:"id"`
		Name        *string                 `json:"name"`
		Description *string                 `json:"description"`
		Priority    *string                 `json:"priority"`
		Variables   *map[string]interface{} `json:"variables"`
		PreScript   *string                 `json:"preScript"`
		PostScript  *string                 `json:"postScript"`
	}](input)
	if err != nil {
		return nil, err
	}

	sc, err := s.repo.GetScenario(req.ID)
	if err != nil {
		return nil, fmt.Errorf("loading scenario: %w", err)
	}

	if req.Name != nil {
		sc.Name = *req.Name
	}
	if req.Description != nil {
		sc.Description = *req.Description
	}
	if req.Priority != nil {
		sc.Priority = *req.Priority
	}
	if req.Variables != nil {
		sc.Variables = *req.Variables
	}
	if req.PreScript != nil {
		sc.PreScript = *req.PreScript
	}
	if req.PostScript != nil {
		sc.PostScript = *req.PostScript
	}
	sc.UpdatedAt = time.Now().Unix()

	if err := s.repo.SaveScenario(sc); err != nil {
		return nil, fmt.Errorf("saving scenario: %w", err)
	}
	return sc, nil
}

func (s *Service) scenarioDelete(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ID string `json:"id"`
	}](input)
	if err != nil {
		return nil, err
	}
	return nil, s.repo.DeleteScenario(req.ID)
}

func (s *Service) scenarioList(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ProjectID string `json:"projectId"`
	}](input)
	if err != nil {
		return nil, err
	}
	return s.repo.ListScenariosByProject(req.ProjectID)
}

func (s *Service) scenarioRun(ctx context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ScenarioID string `json:"scenarioId"`
	}](input)
	if err != nil {
		return nil, err
	}

	sc, err := s.repo.GetScenario(req.ScenarioID)
	if err != nil {
		return nil, fmt.Errorf("loading scenario: %w", err)
	}
	steps, err := s.repo.ListStepsByScenario(sc.ID)
	if err != nil {
		return nil, fmt.Errorf("loading steps: %w", err)
	}

	executor := scenario.NewExecutor(
		scenario.WithBaseURL(s.projectBaseURL(sc.ProjectID)),
		scenario.WithClient(s.client),
		scenario.WithLogger(s.logger),
	)
	run := executor.Execute(ctx, &sc, steps, s.emitter)

	if err := s.repo.SaveScenarioRun(*run); err != nil {
		return nil, fmt.Errorf("saving run: %w", err)
	}
	return run, nil
}

func (s *Service) projectBaseURL(projectID string) string {
	if projectID == "" {
		return ""
	}
	project, err := s.repo.GetProject(projectID)
	if err != nil {
		return ""
	}
	return project.BaseURL
}

// Step operations.

func (s *Service) stepCreate(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ScenarioID string          `json:"scenarioId"`
		StepType   string          `json:"stepType"`
		Name       string          `json:"name"`
		Config     json.RawMessage `json:"config"`
	}](input)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetScenario(req.ScenarioID); err != nil {
		return nil, fmt.Errorf("loading scenario: %w", err)
	}
	existing, err := s.repo.ListStepsByScenario(req.ScenarioID)
	if err != nil {
		return nil, fmt.Errorf("loading steps: %w", err)
	}

	step := scenario.Step{
		ID:         uuid.NewString(),
		ScenarioID: req.ScenarioID,
		StepOrder:  len(existing),
		StepType:   scenario.ParseStepType(req.StepType),
		Name:       req.Name,
		Config:     req.Config,
		Enabled:    true,
	}
	if err := s.repo.SaveStep(step); err != nil {
		return nil, fmt.Errorf("saving step: %w", err)
	}
	return step, nil
}

func (s *Service) stepUpdate(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ID      string          `json:"id"`
		Name    *string         `json:"name"`
		Config  json.RawMessage `json:"config"`
		Enabled *bool           `json:"enabled"`
	}](input)
	if err != nil {
		return nil, err
	}

	step, err := s.repo.GetStep(req.ID)
	if err != nil {
		return nil, fmt.Errorf("loading step: %w", err)
	}

	if req.Name != nil {
		step.Name = *req.Name
	}
	if len(req.Config) > 0 {
		step.Config = req.Config
	}
	if req.Enabled != nil {
		step.Enabled = *req.Enabled
	}

	if err := s.repo.SaveStep(step); err != nil {
		return nil, fmt.Errorf("saving step: %w", err)
	}
	return step, nil
}

func (s *Service) stepDelete(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ID string `json:"id"`
	}](input)
	if err != nil {
		return nil, err
	}
	return nil, s.repo.DeleteStep(req.ID)
}

// stepReorder assigns dense step_order values following the supplied ID
// list; steps not named keep their relative order after the named ones.
func (s *Service) stepReorder(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ScenarioID string   `json:"scenarioId"`
		StepIDs    []string `json:"stepIds"`
	}](input)
	if err != nil {
		return nil, err
	}

	steps, err := s.repo.ListStepsByScenario(req.ScenarioID)
	if err != nil {
		return nil, fmt.Errorf("loading steps: %w", err)
	}

	byID := make(map[string]scenario.Step, len(steps))
	for _, step := range steps {
		byID[step.ID] = step
	}

	order := 0
	assign := func(step scenario.Step) error {
		step.StepOrder = order
		order++
		return s.repo.SaveStep(step)
	}

	named := make(map[string]bool, len(req.StepIDs))
	for _, id := range req.StepIDs {
		step, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("step %s not in scenario %s", id, req.ScenarioID)
		}
		named[id] = true
		if err := assign(step); err != nil {
			return nil, fmt.Errorf("saving step: %w", err)
		}
	}
	for _, step := range steps {
		if named[step.ID] {
			continue
		}
		if err := assign(step); err != nil {
			return nil, fmt.Errorf("saving step: %w", err)
		}
	}

	return s.repo.ListStepsByScenario(req.ScenarioID)
}

// Performance operations.

func (s *Service) perfCreateConfig(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ScenarioID   string                  `json:"scenarioId"`
		Name         string                  `json:"name"`
		TestType     string                  `json:"testType"`
		VUs          int                     `json:"vus"`
		DurationSecs int64                   `json:"durationSecs"`
		Iterations   int64                   `json:"iterations"`
		Stages       []performance.Stage     `json:"stages"`
		Thresholds   []performance.Threshold `json:"thresholds"`
	}](input)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetScenario(req.ScenarioID); err != nil {
		return nil, fmt.Errorf("loading scenario: %w", err)
	}

	now := time.Now().Unix()
	config := performance.Config{
		ID:           uuid.NewString(),
		ScenarioID:   req.ScenarioID,
		Name:         req.Name,
		TestType:     performance.ParseTestType(req.TestType),
		VUs:          req.VUs,
		DurationSecs: req.DurationSecs,
		Iterations:   req.Iterations,
		Stages:       req.Stages,
		Thresholds:   req.Thresholds,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.SavePerformanceConfig(config); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}
	return config, nil
}

func (s *Service) perfRun(ctx context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ConfigID string `json:"configId"`
	}](input)
	if err != nil {
		return nil, err
	}

	config, err := s.repo.GetPerformanceConfig(req.ConfigID)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	sc, err := s.repo.GetScenario(config.ScenarioID)
	if err != nil {
		return nil, fmt.Errorf("loading scenario: %w", err)
	}
	steps, err := s.repo.ListStepsByScenario(sc.ID)
	if err != nil {
		return nil, fmt.Errorf("loading steps: %w", err)
	}

	executor := performance.NewExecutor(&sc, steps, config,
		performance.WithBaseURL(s.projectBaseURL(sc.ProjectID)),
		performance.WithClient(s.client),
		performance.WithLogger(s.logger),
	)
	run := executor.Run(ctx, s.emitter)

	if err := s.repo.SavePerformanceRun(*run); err != nil {
		return nil, fmt.Errorf("saving run: %w", err)
	}
	return run, nil
}

// CSV operations.

func (s *Service) csvPreview(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		File      string `json:"file"`
		Delimiter string `json:"delimiter"`
		Quote     string `json:"quote"`
		MaxRows   int    `json:"maxRows"`
	}](input)
	if err != nil {
		return nil, err
	}

	maxRows := req.MaxRows
	if maxRows <= 0 {
		maxRows = 10
	}
	return scenario.PreviewCSV(req.File, &scenario.CSVConfig{
		FileName:  req.File,
		Delimiter: req.Delimiter,
		QuoteChar: req.Quote,
	}, maxRows)
}

// YAML operations.

func (s *Service) yamlExport(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ScenarioID string `json:"scenarioId"`
	}](input)
	if err != nil {
		return nil, err
	}

	sc, err := s.repo.GetScenario(req.ScenarioID)
	if err != nil {
		return nil, fmt.Errorf("loading scenario: %w", err)
	}
	steps, err := s.repo.ListStepsByScenario(sc.ID)
	if err != nil {
		return nil, fmt.Errorf("loading steps: %w", err)
	}

	doc, err := yamlio.FromScenario(&sc, steps, s.projectBaseURL(sc.ProjectID))
	if err != nil {
		return nil, fmt.Errorf("converting scenario: %w", err)
	}
	data, err := yamlio.MarshalScenario(doc)
	if err != nil {
		return nil, fmt.Errorf("serializing scenario: %w", err)
	}
	return map[string]string{"yaml": string(data)}, nil
}

func (s *Service) yamlExportProject(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ProjectID string `json:"projectId"`
	}](input)
	if err != nil {
		return nil, err
	}

	project, err := s.repo.GetProject(req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	scenarios, err := s.repo.ListScenariosByProject(project.ID)
	if err != nil {
		return nil, fmt.Errorf("loading scenarios: %w", err)
	}

	docs := make([]yamlio.ScenarioDoc, 0, len(scenarios))
	for _, sc := range scenarios {
		steps, err := s.repo.ListStepsByScenario(sc.ID)
		if err != nil {
			return nil, fmt.Errorf("loading steps: %w", err)
		}
		doc, err := yamlio.FromScenario(&sc, steps, "")
		if err != nil {
			return nil, fmt.Errorf("converting scenario %q: %w", sc.Name, err)
		}
		docs = append(docs, *doc)
	}

	data, err := yamlio.MarshalProject(project.Name, project.BaseURL, docs)
	if err != nil {
		return nil, fmt.Errorf("serializing project: %w", err)
	}
	return map[string]string{"yaml": string(data)}, nil
}

func (s *Service) yamlImport(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ProjectID string `json:"projectId"`
		YAML      string `json:"yaml"`
	}](input)
	if err != nil {
		return nil, err
	}

	doc, err := yamlio.ParseScenario([]byte(req.YAML))
	if err != nil {
		return nil, err
	}
	sc, steps, err := yamlio.ToScenario(doc, req.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveScenario(*sc); err != nil {
		return nil, fmt.Errorf("saving scenario: %w", err)
	}
	for _, step := range steps {
		if err := s.repo.SaveStep(step); err != nil {
			return nil, fmt.Errorf("saving step: %w", err)
		}
	}
	if err := s.repo.SaveYamlFile(store.YamlFile{
		ID:         uuid.NewString(),
		ProjectID:  req.ProjectID,
		ScenarioID: sc.ID,
		Content:    req.YAML,
		CreatedAt:  time.Now().Unix(),
	}); err != nil {
		return nil, fmt.Errorf("saving YAML file: %w", err)
	}

	return map[string]interface{}{"scenario": sc, "steps": steps}, nil
}

func (s *Service) yamlPreview(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		YAML string `json:"yaml"`
	}](input)
	if err != nil {
		return nil, err
	}
	return yamlio.ParseScenario([]byte(req.YAML))
}

func (s *Service) yamlGenerate(ctx context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		ProjectID string `json:"projectId"`
		Tool      string `json:"tool"`
	}](input)
	if err != nil {
		return nil, err
	}
	if req.Tool == "" {
		return nil, fmt.Errorf("tool is required")
	}

	project, err := s.repo.GetProject(req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}

	result, err := scanner.New(project.Path, s.logger).Scan()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	prompt := yamlio.BuildScenarioPrompt(project.Name, result.Endpoints)
	output, err := yamlio.RunAssistant(ctx, req.Tool, project.Path, prompt)
	if err != nil {
		return nil, err
	}

	document, ok := yamlio.ExtractYAML(output)
	if !ok {
		return nil, fmt.Errorf("assistant output contained no usable YAML")
	}
	return map[string]string{"yaml": document}, nil
}

// HTTP operations.

func (s *Service) httpExecute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		URL     string            `json:"url"`
		Method  string            `json:"method"`
		Headers map[string]string `json:"headers"`
		Body    interface{}       `json:"body"`
	}](input)
	if err != nil {
		return nil, err
	}
	return httpclient.Execute(ctx, s.client, strings.ToUpper(req.Method), req.URL, req.Headers, req.Body)
}

func (s *Service) httpCurl(_ context.Context, input json.RawMessage) (interface{}, error) {
	req, err := decode[struct {
		URL    string      `json:"url"`
		Method string      `json:"method"`
		Body   interface{} `json:"body"`
	}](input)
	if err != nil {
		return nil, err
	}
	return map[string]string{"curl": httpclient.GenerateCurl(req.URL, strings.ToUpper(req.Method), req.Body)}, nil
}
