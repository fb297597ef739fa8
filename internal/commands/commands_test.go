package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanngoc/lookapi/internal/performance"
	"github.com/phanngoc/lookapi/internal/scenario"
	"github.com/phanngoc/lookapi/internal/store"
)

func newService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	repo := store.NewMemory()
	return NewService(repo), repo
}

func invoke[T any](t *testing.T, s *Service, name string, input interface{}) T {
	t.Helper()
	var raw json.RawMessage
	if input != nil {
		encoded, err := json.Marshal(input)
		require.NoError(t, err)
		raw = encoded
	}
	result, err := s.Invoke(context.Background(), name, raw)
	require.NoError(t, err)

	var value T
	require.NoError(t, json.Unmarshal(result, &value))
	return value
}

func TestUnknownOperation(t *testing.T) {
	s, _ := newService(t)
	_, err := s.Invoke(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operation")
}

func TestProjectCRUD(t *testing.T) {
	s, _ := newService(t)

	project := invoke[store.Project](t, s, "project.create", map[string]string{
		"path":    "/src/shop",
		"baseUrl": "http://localhost:3000",
	})
	assert.Equal(t, "shop", project.Name)
	assert.NotEmpty(t, project.ID)

	projects := invoke[[]store.Project](t, s, "project.list", nil)
	require.Len(t, projects, 1)

	invoke[interface{}](t, s, "project.delete", map[string]string{"id": project.ID})
	projects = invoke[[]store.Project](t, s, "project.list", nil)
	assert.Empty(t, projects)
}

func TestProjectScanPersistsEndpoints(t *testing.T) {
	root := t.TempDir()
	writeLaravelFixture(t, root)

	s, _ := newService(t)
	project := invoke[store.Project](t, s, "project.create", map[string]string{"path": root})

	endpoints := invoke[[]store.Endpoint](t, s, "project.scan", map[string]string{"projectId": project.ID})
	require.NotEmpty(t, endpoints)

	listed := invoke[[]store.Endpoint](t, s, "endpoint.listByProject", map[string]string{"projectId": project.ID})
	assert.Len(t, listed, len(endpoints))
	assert.Equal(t, "users", listed[0].Category)

	projects := invoke[[]store.Project](t, s, "project.list", nil)
	assert.Positive(t, projects[0].LastScanned)
}

func writeLaravelFixture(t *testing.T, root string) {
	t.Helper()
	files := map[string]string{
		"composer.json": `{"require": {"laravel/framework": "^11.0"}}`,
		"routes/api.php": `<?php
Route::get('users/{id}', [UserController::class, 'show']);
`,
		"app/Http/Controllers/UserController.php": `<?php
namespace App\Http\Controllers;
class UserController extends Controller
{
    public function show(Request $request, int $id)
    {
        return User::findOrFail($id);
    }
}
`,
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestScenarioAndStepCRUD(t *testing.T) {
	s, _ := newService(t)

	sc := invoke[scenario.Scenario](t, s, "scenario.create", map[string]string{
		"projectId": "p1",
		"name":      "checkout",
	})
	assert.Equal(t, scenario.PriorityMedium, sc.Priority)

	newName := "checkout flow"
	updated := invoke[scenario.Scenario](t, s, "scenario.update", map[string]interface{}{
		"id":       sc.ID,
		"name":     newName,
		"priority": "high",
	})
	assert.Equal(t, newName, updated.Name)
	assert.Equal(t, "high", updated.Priority)

	first := invoke[scenario.Step](t, s, "step.create", map[string]interface{}{
		"scenarioId": sc.ID,
		"stepType":   "request",
		"name":       "login",
		"config":     scenario.RequestConfig{Method: "POST", URL: "/login"},
	})
	assert.Equal(t, 0, first.StepOrder)
	assert.True(t, first.Enabled)

	second := invoke[scenario.Step](t, s, "step.create", map[string]interface{}{
		"scenarioId": sc.ID,
		"stepType":   "delay",
		"name":       "pause",
		"config":     scenario.DelayConfig{DurationMs: 10},
	})
	assert.Equal(t, 1, second.StepOrder)

	// Reorder: delay first, and orders become dense again.
	reordered := invoke[[]scenario.Step](t, s, "step.reorder", map[string]interface{}{
		"scenarioId": sc.ID,
		"stepIds":    []string{second.ID, first.ID},
	})
	require.Len(t, reordered, 2)
	assert.Equal(t, second.ID, reordered[0].ID)
	assert.Equal(t, 0, reordered[0].StepOrder)
	assert.Equal(t, 1, reordered[1].StepOrder)

	disabled := false
	toggled := invoke[scenario.Step](t, s, "step.update", map[string]interface{}{
		"id":      first.ID,
		"enabled": disabled,
	})
	assert.False(t, toggled.Enabled)

	invoke[interface{}](t, s, "step.delete", map[string]string{"id": second.ID})
	invoke[interface{}](t, s, "scenario.delete", map[string]string{"id": sc.ID})

	_, err := s.Invoke(context.Background(), "scenario.run", mustJSON(t, map[string]string{"scenarioId": sc.ID}))
	require.Error(t, err)
}

func mustJSON(t *testing.T, value interface{}) json.RawMessage {
	t.Helper()
	encoded, err := json.Marshal(value)
	require.NoError(t, err)
	return encoded
}

func TestScenarioRunEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	s, repo := newService(t)
	require.NoError(t, repo.SaveProject(store.Project{ID: "p1", Name: "shop", BaseURL: server.URL, CreatedAt: 1}))

	sc := invoke[scenario.Scenario](t, s, "scenario.create", map[string]string{
		"projectId": "p1",
		"name":      "smoke",
	})
	invoke[scenario.Step](t, s, "step.create", map[string]interface{}{
		"scenarioId": sc.ID,
		"stepType":   "request",
		"name":       "ping",
		"config": scenario.RequestConfig{
			Method: "GET",
			URL:    "/ping",
			Assertions: []scenario.Assertion{
				{Name: "ok", Source: "status", Operator: scenario.OpEquals, Expected: 200},
			},
		},
	})

	run := invoke[scenario.Run](t, s, "scenario.run", map[string]string{"scenarioId": sc.ID})
	assert.Equal(t, scenario.RunPassed, run.Status)
	require.Len(t, run.Results, 1)

	history, err := repo.ListScenarioRuns(sc.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestPerfConfigAndRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	s, repo := newService(t)
	require.NoError(t, repo.SaveProject(store.Project{ID: "p1", Name: "shop", BaseURL: server.URL, CreatedAt: 1}))

	sc := invoke[scenario.Scenario](t, s, "scenario.create", map[string]string{
		"projectId": "p1",
		"name":      "load",
	})
	invoke[scenario.Step](t, s, "step.create", map[string]interface{}{
		"scenarioId": sc.ID,
		"stepType":   "request",
		"name":       "ping",
		"config":     scenario.RequestConfig{Method: "GET", URL: "/ping"},
	})

	config := invoke[performance.Config](t, s, "perf.createConfig", map[string]interface{}{
		"scenarioId": sc.ID,
		"name":       "smoke",
		"testType":   "smoke",
		"stages":     []performance.Stage{{DurationSecs: 1, TargetVUs: 2}},
		"thresholds": []performance.Threshold{{Metric: "http_req_failed", Condition: "rate<0.5"}},
	})
	assert.Equal(t, performance.TestSmoke, config.TestType)

	run := invoke[performance.Run](t, s, "perf.run", map[string]string{"configId": config.ID})
	assert.Equal(t, performance.RunPassed, run.Status)
	require.NotNil(t, run.Metrics)
	assert.Positive(t, run.Metrics.TotalRequests)

	history, err := repo.ListPerformanceRuns(config.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCSVPreviewOperation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("n\nA\nB\nC\n"), 0o644))

	s, _ := newService(t)
	preview := invoke[scenario.CSVPreview](t, s, "csv.preview", map[string]interface{}{
		"file":    path,
		"maxRows": 2,
	})
	assert.Equal(t, []string{"n"}, preview.Headers)
	assert.Len(t, preview.Rows, 2)
	assert.Equal(t, 3, preview.TotalRows)
}

func TestYAMLImportExportRoundTrip(t *testing.T) {
	s, repo := newService(t)
	require.NoError(t, repo.SaveProject(store.Project{ID: "p1", Name: "shop", CreatedAt: 1}))

	doc := "name: imported\npriority: low\nsteps:\n  - name: first\n    request:\n      method: GET\n      url: /x\n"
	imported := invoke[map[string]json.RawMessage](t, s, "yaml.import", map[string]string{
		"projectId": "p1",
		"yaml":      doc,
	})

	var sc scenario.Scenario
	require.NoError(t, json.Unmarshal(imported["scenario"], &sc))
	assert.Equal(t, "imported", sc.Name)
	assert.Equal(t, "low", sc.Priority)

	files, err := repo.ListYamlFiles("p1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, sc.ID, files[0].ScenarioID)

	exported := invoke[map[string]string](t, s, "yaml.export", map[string]string{"scenarioId": sc.ID})
	assert.Contains(t, exported["yaml"], "name: imported")
	assert.Contains(t, exported["yaml"], "url: /x")

	bundle := invoke[map[string]string](t, s, "yaml.exportProject", map[string]string{"projectId": "p1"})
	assert.Contains(t, bundle["yaml"], "projectName: shop")
	assert.Contains(t, bundle["yaml"], "exportedAt:")
}

func TestYAMLPreviewRejectsInvalid(t *testing.T) {
	s, _ := newService(t)
	_, err := s.Invoke(context.Background(), "yaml.preview", mustJSON(t, map[string]string{"yaml": "steps: []"}))
	require.Error(t, err)
}

func TestHTTPExecuteAndCurl(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pong":true}`)
	}))
	defer server.Close()

	s, _ := newService(t)
	result := invoke[map[string]interface{}](t, s, "http.execute", map[string]interface{}{
		"url":    server.URL,
		"method": "get",
	})
	assert.Equal(t, float64(200), result["status"])

	curl := invoke[map[string]string](t, s, "http.curl", map[string]interface{}{
		"url":    "http://h/x",
		"method": "post",
		"body":   map[string]interface{}{"a": 1},
	})
	assert.Contains(t, curl["curl"], "curl -X POST")
}

func TestOperationsListing(t *testing.T) {
	s, _ := newService(t)
	operations := s.Operations()
	assert.Contains(t, operations, "scenario.run")
	assert.Contains(t, operations, "perf.run")
	assert.Contains(t, operations, "yaml.import")
}
