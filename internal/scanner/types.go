// Package scanner extracts HTTP endpoints from source trees without
// executing any project code. Two dialects are supported: annotation-driven
// controllers (NestJS) and route tables with form requests (Laravel).
//
// The extraction is regex-driven and deliberately conservative: a pattern
// miss yields no record for that route or parameter. Silent gaps beat
// noisy false positives.
package scanner

// FrameworkInfo describes the detected stack of a project tree.
type FrameworkInfo struct {
	FrameworkType string             `json:"frameworkType"` // go, node, ruby, php, unknown
	Framework     string             `json:"framework"`     // nestjs, express, rails, laravel, custom, unknown
	Version       string             `json:"version,omitempty"`
	Patterns      FrameworkPatterns  `json:"patterns"`
	Structure     FrameworkStructure `json:"structure"`
}

// FrameworkPatterns lists the syntactic markers of the detected framework.
type FrameworkPatterns struct {
	Routing     []string `json:"routing"`
	Controllers []string `json:"controllers"`
	Decorators  []string `json:"decorators"`
	Middleware  []string `json:"middleware"`
}

// FrameworkStructure lists the conventional directories of the framework.
type FrameworkStructure struct {
	ControllersPath []string `json:"controllersPath"`
	RoutesPath      []string `json:"routesPath"`
	ModelsPath      []string `json:"modelsPath"`
}

// Endpoint is one scanned route -> handler binding.
type Endpoint struct {
	Path           string         `json:"path"`
	Method         string         `json:"method"`
	Controller     string         `json:"controller"`
	Action         string         `json:"action"`
	FilePath       string         `json:"filePath"`
	LineNumber     int            `json:"lineNumber"`
	Parameters     []Parameter    `json:"parameters"`
	Responses      []Response     `json:"responses"`
	BusinessLogic  BusinessLogic  `json:"businessLogic"`
	Authentication Authentication `json:"authentication"`
	Authorization  Authorization  `json:"authorization"`
}

// Parameter is one handler input.
type Parameter struct {
	Name         string      `json:"name"`
	ParamType    string      `json:"paramType"`
	Source       string      `json:"source"` // path, query, body, header
	Required     bool        `json:"required"`
	Validation   []string    `json:"validation,omitempty"`
	Example      interface{} `json:"example,omitempty"`
	DefaultValue interface{} `json:"defaultValue,omitempty"`
}

// Response is one documented or inferred handler response.
type Response struct {
	StatusCode  int         `json:"statusCode"`
	Description string      `json:"description,omitempty"`
	ContentType string      `json:"contentType,omitempty"`
	Schema      *SchemaNode `json:"schema,omitempty"`
	Example     interface{} `json:"example,omitempty"`
}

// SchemaNode is a minimal response-shape tree.
type SchemaNode struct {
	Type       string                 `json:"type"`
	Properties map[string]*SchemaNode `json:"properties,omitempty"`
	Items      *SchemaNode            `json:"items,omitempty"`
	Example    interface{}            `json:"example,omitempty"`
}

// BusinessLogic is a lightweight summary of what the handler does.
type BusinessLogic struct {
	Summary      string   `json:"summary"`
	Description  string   `json:"description"`
	Purpose      string   `json:"purpose"`
	Dependencies []string `json:"dependencies"`
}

// Authentication describes whether the endpoint requires auth.
type Authentication struct {
	Required bool   `json:"required"`
	AuthType string `json:"authType,omitempty"`
}

// Authorization lists required roles and permissions.
type Authorization struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// ScanResult bundles the detected framework with its endpoints.
type ScanResult struct {
	FrameworkInfo FrameworkInfo `json:"frameworkInfo"`
	Endpoints     []Endpoint    `json:"endpoints"`
	ScanMethod    string        `json:"scanMethod"`
}

// dedupeEndpoints keeps one record per (method, path); the last write wins
// for a canonical path.
func dedupeEndpoints(endpoints []Endpoint) []Endpoint {
	seen := make(map[string]int)
	result := make([]Endpoint, 0, len(endpoints))
	for _, endpoint := range endpoints {
		key := endpoint.Method + ":" + endpoint.Path
		if index, ok := seen[key]; ok {
			result[index] = endpoint
			continue
		}
		seen[key] = len(result)
		result = append(result, endpoint)
	}
	return result
}
