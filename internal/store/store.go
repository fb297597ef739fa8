// Package store defines the thin repository facade the engine persists
// through. The desktop shell binds it to its SQLite store; Memory is a
// complete in-process implementation used by tests.
package store

import (
	"errors"

	"github.com/phanngoc/lookapi/internal/performance"
	"github.com/phanngoc/lookapi/internal/scenario"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Project is a scanned source tree with its API surface.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	BaseURL     string `json:"baseUrl,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
	LastScanned int64  `json:"lastScanned,omitempty"`
}

// Endpoint is the persisted form of a scanned endpoint.
type Endpoint struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"projectId"`
	Name        string      `json:"name"`
	Method      string      `json:"method"`
	Path        string      `json:"path"`
	Service     string      `json:"service"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Category    string      `json:"category"`
	Explanation string      `json:"explanation,omitempty"`
}

// Parameter is the persisted form of an endpoint parameter.
type Parameter struct {
	Name         string      `json:"name"`
	ParamType    string      `json:"type"`
	Required     bool        `json:"required"`
	Description  string      `json:"description"`
	Example      interface{} `json:"example,omitempty"`
	DefaultValue interface{} `json:"defaultValue,omitempty"`
}

// YamlFile is a stored YAML document tied to a project and optionally a
// scenario.
type YamlFile struct {
	ID         string `json:"id"`
	ProjectID  string `json:"projectId"`
	ScenarioID string `json:"scenarioId,omitempty"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"createdAt"`
}

// Repository is the persistence contract. Deletes cascade: removing a
// project removes its endpoints and scenarios; removing a scenario removes
// its steps, runs and performance configs.
type Repository interface {
	SaveProject(project Project) error
	GetProject(id string) (Project, error)
	ListProjects() ([]Project, error)
	DeleteProject(id string) error

	SaveEndpoint(endpoint Endpoint) error
	ListEndpointsByProject(projectID string) ([]Endpoint, error)
	ClearProjectEndpoints(projectID string) error

	SaveScenario(sc scenario.Scenario) error
	GetScenario(id string) (scenario.Scenario, error)
	ListScenariosByProject(projectID string) ([]scenario.Scenario, error)
	DeleteScenario(id string) error

	SaveStep(step scenario.Step) error
	GetStep(id string) (scenario.Step, error)
	ListStepsByScenario(scenarioID string) ([]scenario.Step, error)
	DeleteStep(id string) error

	SaveScenarioRun(run scenario.Run) error
	ListScenarioRuns(scenarioID string) ([]scenario.Run, error)

	SavePerformanceConfig(config performance.Config) error
	GetPerformanceConfig(id string) (performance.Config, error)
	ListPerformanceConfigs(scenarioID string) ([]performance.Config, error)
	DeletePerformanceConfig(id string) error

	SavePerformanceRun(run performance.Run) error
	ListPerformanceRuns(configID string) ([]performance.Run, error)

	SaveYamlFile(file YamlFile) error
	ListYamlFiles(projectID string) ([]YamlFile, error)
}
