package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanngoc/lookapi/internal/performance"
	"github.com/phanngoc/lookapi/internal/scenario"
)

func TestProjectLifecycle(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.SaveProject(Project{ID: "p1", Name: "shop", Path: "/src/shop", CreatedAt: 1}))
	require.NoError(t, m.SaveProject(Project{ID: "p2", Name: "blog", Path: "/src/blog", CreatedAt: 2}))

	project, err := m.GetProject("p1")
	require.NoError(t, err)
	assert.Equal(t, "shop", project.Name)

	projects, err := m.ListProjects()
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "p1", projects[0].ID)

	require.NoError(t, m.DeleteProject("p1"))
	_, err = m.GetProject("p1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, m.DeleteProject("p1"), ErrNotFound)
}

func TestEndpointStorage(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.SaveEndpoint(Endpoint{ID: "e1", ProjectID: "p1", Method: "GET", Path: "/b"}))
	require.NoError(t, m.SaveEndpoint(Endpoint{ID: "e2", ProjectID: "p1", Method: "GET", Path: "/a"}))
	require.NoError(t, m.SaveEndpoint(Endpoint{ID: "e3", ProjectID: "p2", Method: "GET", Path: "/c"}))

	endpoints, err := m.ListEndpointsByProject("p1")
	require.NoError(t, err)
	require.Len(t, endpoints, 2)
	assert.Equal(t, "/a", endpoints[0].Path)

	require.NoError(t, m.ClearProjectEndpoints("p1"))
	endpoints, err = m.ListEndpointsByProject("p1")
	require.NoError(t, err)
	assert.Empty(t, endpoints)

	others, err := m.ListEndpointsByProject("p2")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestScenarioCascadeDelete(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.SaveScenario(scenario.Scenario{ID: "s1", ProjectID: "p1"}))
	require.NoError(t, m.SaveStep(scenario.Step{ID: "st1", ScenarioID: "s1", StepOrder: 0}))
	require.NoError(t, m.SaveStep(scenario.Step{ID: "st2", ScenarioID: "s1", StepOrder: 1}))
	require.NoError(t, m.SaveScenarioRun(scenario.Run{ID: "r1", ScenarioID: "s1"}))
	require.NoError(t, m.SavePerformanceConfig(performance.Config{ID: "c1", ScenarioID: "s1"}))
	require.NoError(t, m.SavePerformanceRun(performance.Run{ID: "pr1", ConfigID: "c1"}))

	require.NoError(t, m.DeleteScenario("s1"))

	_, err := m.GetStep("st1")
	assert.ErrorIs(t, err, ErrNotFound)
	runs, err := m.ListScenarioRuns("s1")
	require.NoError(t, err)
	assert.Empty(t, runs)
	_, err = m.GetPerformanceConfig("c1")
	assert.ErrorIs(t, err, ErrNotFound)
	perfRuns, err := m.ListPerformanceRuns("c1")
	require.NoError(t, err)
	assert.Empty(t, perfRuns)
}

func TestProjectCascadeDelete(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.SaveProject(Project{ID: "p1", CreatedAt: 1}))
	require.NoError(t, m.SaveEndpoint(Endpoint{ID: "e1", ProjectID: "p1"}))
	require.NoError(t, m.SaveScenario(scenario.Scenario{ID: "s1", ProjectID: "p1"}))
	require.NoError(t, m.SaveStep(scenario.Step{ID: "st1", ScenarioID: "s1"}))
	require.NoError(t, m.SaveYamlFile(YamlFile{ID: "y1", ProjectID: "p1", Content: "name: x"}))

	require.NoError(t, m.DeleteProject("p1"))

	endpoints, err := m.ListEndpointsByProject("p1")
	require.NoError(t, err)
	assert.Empty(t, endpoints)
	_, err = m.GetScenario("s1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetStep("st1")
	assert.ErrorIs(t, err, ErrNotFound)
	files, err := m.ListYamlFiles("p1")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestStepOrdering(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.SaveStep(scenario.Step{ID: "st2", ScenarioID: "s1", StepOrder: 1}))
	require.NoError(t, m.SaveStep(scenario.Step{ID: "st1", ScenarioID: "s1", StepOrder: 0}))
	require.NoError(t, m.SaveStep(scenario.Step{ID: "st3", ScenarioID: "s1", StepOrder: 2}))

	steps, err := m.ListStepsByScenario("s1")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, []string{"st1", "st2", "st3"}, []string{steps[0].ID, steps[1].ID, steps[2].ID})
}

func TestRunHistoryAppends(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.SaveScenarioRun(scenario.Run{ID: "r1", ScenarioID: "s1"}))
	require.NoError(t, m.SaveScenarioRun(scenario.Run{ID: "r2", ScenarioID: "s1"}))

	runs, err := m.ListScenarioRuns("s1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r1", runs[0].ID)
}
