package store

import (
	"sort"
	"sync"

	"github.com/phanngoc/lookapi/internal/performance"
	"github.com/phanngoc/lookapi/internal/scenario"
)

// Memory is an in-process Repository. Safe for concurrent use.
type Memory struct {
	mu sync.RWMutex

	projects    map[string]Project
	endpoints   map[string]Endpoint
	scenarios   map[string]scenario.Scenario
	steps       map[string]scenario.Step
	runs        map[string][]scenario.Run
	perfConfigs map[string]performance.Config
	perfRuns    map[string][]performance.Run
	yamlFiles   map[string][]YamlFile
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		projects:    make(map[string]Project),
		endpoints:   make(map[string]Endpoint),
		scenarios:   make(map[string]scenario.Scenario),
		steps:       make(map[string]scenario.Step),
		runs:        make(map[string][]scenario.Run),
		perfConfigs: make(map[string]performance.Config),
		perfRuns:    make(map[string][]performance.Run),
		yamlFiles:   make(map[string][]YamlFile),
	}
}

// SaveProject inserts or replaces a project.
func (m *Memory) SaveProject(project Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[project.ID] = project
	return nil
}

// GetProject fetches a project by id.
func (m *Memory) GetProject(id string) (Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	project, ok := m.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	return project, nil
}

// ListProjects returns all projects sorted by creation time.
func (m *Memory) ListProjects() ([]Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	projects := make([]Project, 0, len(m.projects))
	for _, project := range m.projects {
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt < projects[j].CreatedAt })
	return projects, nil
}

// DeleteProject removes a project and cascades to its endpoints,
// scenarios and YAML files.
func (m *Memory) DeleteProject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return ErrNotFound
	}
	delete(m.projects, id)

	for endpointID, endpoint := range m.endpoints {
		if endpoint.ProjectID == id {
			delete(m.endpoints, endpointID)
		}
	}
	for scenarioID, sc := range m.scenarios {
		if sc.ProjectID == id {
			m.deleteScenarioLocked(scenarioID)
		}
	}
	delete(m.yamlFiles, id)
	return nil
}

// SaveEndpoint inserts or replaces an endpoint.
func (m *Memory) SaveEndpoint(endpoint Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoints[endpoint.ID] = endpoint
	return nil
}

// ListEndpointsByProject returns a project's endpoints sorted by path.
func (m *Memory) ListEndpointsByProject(projectID string) ([]Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var endpoints []Endpoint
	for _, endpoint := range m.endpoints {
		if endpoint.ProjectID == projectID {
			endpoints = append(endpoints, endpoint)
		}
	}
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Path == endpoints[j].Path {
			return endpoints[i].Method < endpoints[j].Method
		}
		return endpoints[i].Path < endpoints[j].Path
	})
	return endpoints, nil
}

// ClearProjectEndpoints drops all endpoints of a project.
func (m *Memory) ClearProjectEndpoints(projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, endpoint := range m.endpoints {
		if endpoint.ProjectID == projectID {
			delete(m.endpoints, id)
		}
	}
	return nil
}

// SaveScenario inserts or replaces a scenario.
func (m *Memory) SaveScenario(sc scenario.Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[sc.ID] = sc
	return nil
}

// GetScenario fetches a scenario by id.
func (m *Memory) GetScenario(id string) (scenario.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.scenarios[id]
	if !ok {
		return scenario.Scenario{}, ErrNotFound
	}
	return sc, nil
}

// ListScenariosByProject returns a project's scenarios sorted by creation
// time.
func (m *Memory) ListScenariosByProject(projectID string) ([]scenario.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var scenarios []scenario.Scenario
	for _, sc := range m.scenarios {
		if sc.ProjectID == projectID {
			scenarios = append(scenarios, sc)
		}
	}
	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].CreatedAt < scenarios[j].CreatedAt })
	return scenarios, nil
}

// DeleteScenario removes a scenario and cascades to steps, runs and
// performance configs.
func (m *Memory) DeleteScenario(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenarios[id]; !ok {
		return ErrNotFound
	}
	m.deleteScenarioLocked(id)
	return nil
}

func (m *Memory) deleteScenarioLocked(id string) {
	delete(m.scenarios, id)
	for stepID, step := range m.steps {
		if step.ScenarioID == id {
			delete(m.steps, stepID)
		}
	}
	delete(m.runs, id)
	for configID, config := range m.perfConfigs {
		if config.ScenarioID == id {
			delete(m.perfConfigs, configID)
			delete(m.perfRuns, configID)
		}
	}
}

// SaveStep inserts or replaces a step.
func (m *Memory) SaveStep(step scenario.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[step.ID] = step
	return nil
}

// GetStep fetches a step by id.
func (m *Memory) GetStep(id string) (scenario.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	step, ok := m.steps[id]
	if !ok {
		return scenario.Step{}, ErrNotFound
	}
	return step, nil
}

// ListStepsByScenario returns a scenario's steps sorted by step order.
func (m *Memory) ListStepsByScenario(scenarioID string) ([]scenario.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var steps []scenario.Step
	for _, step := range m.steps {
		if step.ScenarioID == scenarioID {
			steps = append(steps, step)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })
	return steps, nil
}

// DeleteStep removes a step.
func (m *Memory) DeleteStep(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.steps[id]; !ok {
		return ErrNotFound
	}
	delete(m.steps, id)
	return nil
}

// SaveScenarioRun appends a run record.
func (m *Memory) SaveScenarioRun(run scenario.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ScenarioID] = append(m.runs[run.ScenarioID], run)
	return nil
}

// ListScenarioRuns returns a scenario's run history.
func (m *Memory) ListScenarioRuns(scenarioID string) ([]scenario.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]scenario.Run, len(m.runs[scenarioID]))
	copy(runs, m.runs[scenarioID])
	return runs, nil
}

// SavePerformanceConfig inserts or replaces a performance config.
func (m *Memory) SavePerformanceConfig(config performance.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perfConfigs[config.ID] = config
	return nil
}

// GetPerformanceConfig fetches a performance config by id.
func (m *Memory) GetPerformanceConfig(id string) (performance.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	config, ok := m.perfConfigs[id]
	if !ok {
		return performance.Config{}, ErrNotFound
	}
	return config, nil
}

// ListPerformanceConfigs returns a scenario's performance configs.
func (m *Memory) ListPerformanceConfigs(scenarioID string) ([]performance.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var configs []performance.Config
	for _, config := range m.perfConfigs {
		if config.ScenarioID == scenarioID {
			configs = append(configs, config)
		}
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].CreatedAt < configs[j].CreatedAt })
	return configs, nil
}

// DeletePerformanceConfig removes a config and its run history.
func (m *Memory) DeletePerformanceConfig(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.perfConfigs[id]; !ok {
		return ErrNotFound
	}
	delete(m.perfConfigs, id)
	delete(m.perfRuns, id)
	return nil
}

// SavePerformanceRun appends a load-run record.
func (m *Memory) SavePerformanceRun(run performance.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perfRuns[run.ConfigID] = append(m.perfRuns[run.ConfigID], run)
	return nil
}

// ListPerformanceRuns returns a config's run history.
func (m *Memory) ListPerformanceRuns(configID string) ([]performance.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]performance.Run, len(m.perfRuns[configID]))
	copy(runs, m.perfRuns[configID])
	return runs, nil
}

// SaveYamlFile appends a stored YAML document.
func (m *Memory) SaveYamlFile(file YamlFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.yamlFiles[file.ProjectID] = append(m.yamlFiles[file.ProjectID], file)
	return nil
}

// ListYamlFiles returns a project's stored YAML documents.
func (m *Memory) ListYamlFiles(projectID string) ([]YamlFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files := make([]YamlFile, len(m.yamlFiles[projectID]))
	copy(files, m.yamlFiles[projectID])
	return files, nil
}

var _ Repository = (*Memory)(nil)
