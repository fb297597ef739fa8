package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Detector sniffs the framework of a project tree from its manifest files.
type Detector struct {
	projectPath string
}

// NewDetector creates a detector rooted at projectPath.
func NewDetector(projectPath string) *Detector {
	return &Detector{projectPath: projectPath}
}

// Detect inspects manifests in priority order: package.json, composer.json,
// Gemfile, go.mod. Unknown trees get a default record, never an error.
func (d *Detector) Detect() FrameworkInfo {
	if info, ok := d.fromPackageJSON(); ok {
		return info
	}
	if info, ok := d.fromComposerJSON(); ok {
		return info
	}
	if info, ok := d.fromGemfile(); ok {
		return info
	}
	if _, err := os.Stat(filepath.Join(d.projectPath, "go.mod")); err == nil {
		return FrameworkInfo{
			FrameworkType: "go",
			Framework:     "custom",
			Patterns:      FrameworkPatterns{Controllers: []string{"*_controller.go"}},
		}
	}
	return FrameworkInfo{FrameworkType: "unknown", Framework: "unknown"}
}

func (d *Detector) fromPackageJSON() (FrameworkInfo, bool) {
	raw, err := os.ReadFile(filepath.Join(d.projectPath, "package.json"))
	if err != nil {
		return FrameworkInfo{}, false
	}

	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return FrameworkInfo{}, false
	}

	lookup := func(name string) (string, bool) {
		if version, ok := manifest.Dependencies[name]; ok {
			return version, true
		}
		version, ok := manifest.DevDependencies[name]
		return version, ok
	}

	if version, ok := lookup("@nestjs/core"); ok {
		return FrameworkInfo{
			FrameworkType: "node",
			Framework:     "nestjs",
			Version:       version,
			Patterns: FrameworkPatterns{
				Routing:     []string{"@Controller", "@Get", "@Post", "@Put", "@Delete", "@Patch"},
				Controllers: []string{"**/*.controller.ts"},
				Decorators:  []string{"@Injectable", "@UseGuards", "@UseInterceptors"},
				Middleware:  []string{"@UseInterceptors", "@UseFilters"},
			},
			Structure: FrameworkStructure{
				ControllersPath: []string{"src", "apps"},
				RoutesPath:      []string{"src/app.module.ts"},
				ModelsPath:      []string{"src/entities", "src/models"},
			},
		}, true
	}

	if version, ok := lookup("express"); ok {
		return FrameworkInfo{
			FrameworkType: "node",
			Framework:     "express",
			Version:       version,
			Patterns: FrameworkPatterns{
				Routing:     []string{"app.get", "app.post", "router.get", "router.post"},
				Controllers: []string{"**/*.js", "**/*.ts"},
				Middleware:  []string{"app.use"},
			},
			Structure: FrameworkStructure{
				ControllersPath: []string{"src", "routes", "controllers"},
				RoutesPath:      []string{"src", "routes"},
				ModelsPath:      []string{"src/models", "models"},
			},
		}, true
	}

	return FrameworkInfo{}, false
}

func (d *Detector) fromComposerJSON() (FrameworkInfo, bool) {
	raw, err := os.ReadFile(filepath.Join(d.projectPath, "composer.json"))
	if err != nil {
		return FrameworkInfo{}, false
	}

	var manifest struct {
		Require    map[string]string `json:"require"`
		RequireDev map[string]string `json:"require-dev"`
	}
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return FrameworkInfo{}, false
	}

	var version string
	found := false
	for _, name := range []string{"laravel/framework", "laravel/laravel"} {
		if v, ok := manifest.Require[name]; ok {
			version, found = v, true
			break
		}
		if v, ok := manifest.RequireDev[name]; ok {
			version, found = v, true
			break
		}
	}
	if !found {
		return FrameworkInfo{}, false
	}

	return FrameworkInfo{
		FrameworkType: "php",
		Framework:     "laravel",
		Version:       version,
		Patterns: FrameworkPatterns{
			Routing:     []string{"Route::get", "Route::post", "Route::put", "Route::delete"},
			Controllers: []string{"**/app/Http/Controllers/*.php"},
			Middleware:  []string{"middleware"},
		},
		Structure: FrameworkStructure{
			ControllersPath: []string{"app/Http/Controllers"},
			RoutesPath:      []string{"routes"},
			ModelsPath:      []string{"app/Models"},
		},
	}, true
}

var railsGemRe = regexp.MustCompile(`gem\s+["']rails["'](?:,\s*["']([^"']+)["'])?`)

func (d *Detector) fromGemfile() (FrameworkInfo, bool) {
	raw, err := os.ReadFile(filepath.Join(d.projectPath, "Gemfile"))
	if err != nil {
		return FrameworkInfo{}, false
	}
	content := string(raw)
	if !strings.Contains(content, "gem 'rails'") && !strings.Contains(content, `gem "rails"`) {
		return FrameworkInfo{}, false
	}

	var version string
	if caps := railsGemRe.FindStringSubmatch(content); caps != nil {
		version = caps[1]
	}

	return FrameworkInfo{
		FrameworkType: "ruby",
		Framework:     "rails",
		Version:       version,
		Patterns: FrameworkPatterns{
			Routing:     []string{"get", "post", "put", "delete", "patch"},
			Controllers: []string{"**/app/controllers/*.rb"},
			Middleware:  []string{"before_action", "after_action"},
		},
		Structure: FrameworkStructure{
			ControllersPath: []string{"app/controllers"},
			RoutesPath:      []string{"config/routes.rb"},
			ModelsPath:      []string{"app/models"},
		},
	}, true
}

// ServiceFromPath derives a service name from the handler file location:
// the parent directory of the source file, which in both dialects groups
// handlers by feature.
func ServiceFromPath(filePath string) string {
	dir := filepath.Base(filepath.Dir(filePath))
	if dir == "." || dir == "/" || dir == "" {
		return "api"
	}
	return dir
}

// CategoryFromPath is the first non-empty path segment of a route.
func CategoryFromPath(routePath string) string {
	for _, segment := range strings.Split(routePath, "/") {
		if segment != "" {
			return segment
		}
	}
	return "api"
}

// endpointSummary is the conventional display summary for an endpoint.
func endpointSummary(method, path string) string {
	return fmt.Sprintf("%s %s", method, path)
}
