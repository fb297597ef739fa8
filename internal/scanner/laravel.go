package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// LaravelParser extracts endpoints from route tables plus controllers:
// Route:: tuples and resource expansions, form-request validation rules,
// inline validate() arrays, and request->filled() usage inference.
type LaravelParser struct {
	projectPath     string
	controllerFiles map[string]string // fully-qualified class -> file path
	formRequests    map[string]string // class name -> file path
	metadata        map[string]laravelRouteMeta
	logger          *zap.Logger
}

type laravelRouteMeta struct {
	controllerClass string
	methodName      string
}

// NewLaravelParser creates a parser rooted at projectPath.
func NewLaravelParser(projectPath string, logger *zap.Logger) *LaravelParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LaravelParser{
		projectPath:     projectPath,
		controllerFiles: make(map[string]string),
		formRequests:    make(map[string]string),
		metadata:        make(map[string]laravelRouteMeta),
		logger:          logger,
	}
}

var (
	laravelNamespaceRe   = regexp.MustCompile(`namespace\s+([\w\\]+);`)
	laravelControllerRe  = regexp.MustCompile(`class\s+(\w+Controller)\s+extends`)
	laravelFormRequestRe = regexp.MustCompile(`class\s+(\w+Request)\s+extends`)
	laravelResourceRe    = regexp.MustCompile(`Route::resource\s*\(\s*['"]([^'"]+)['"]\s*,\s*([\w\\]+)::class\s*\)`)
	laravelAPIResourceRe = regexp.MustCompile(`Route::apiResource\s*\(\s*['"]([^'"]+)['"]\s*,\s*([\w\\]+)::class\s*\)`)
	laravelPathParamRe   = regexp.MustCompile(`\{(\w+)(\?)?(?::([^}]+))?\}`)
	laravelSigParamRe    = regexp.MustCompile(`([\w\\]+)\s+\$(\w+)`)
	laravelRuleLineRe    = regexp.MustCompile(`['"]([\w.*]+)['"]\s*=>\s*(?:['"]([^'"]+)['"]|\[([^\]]*)\])`)
	laravelFilledRe      = regexp.MustCompile(`request->filled\s*\(\s*['"](\w+)['"]\s*\)`)
	laravelValidateRe    = regexp.MustCompile(`(?s)request->validate\s*\(\s*\[(.*?)\]\s*\)`)
)

func laravelRouteTupleRe(method string) *regexp.Regexp {
	return regexp.MustCompile(
		`Route::` + method + `\s*\(\s*['"]([^'"]+)['"]\s*,\s*\[\s*([\w\\]+)::class\s*,\s*['"]([^'"]+)['"]\s*\]\s*\)`)
}

var laravelRoutePatterns = []struct {
	pattern *regexp.Regexp
	method  string
}{
	{laravelRouteTupleRe("get"), "GET"},
	{laravelRouteTupleRe("post"), "POST"},
	{laravelRouteTupleRe("put"), "PUT"},
	{laravelRouteTupleRe("patch"), "PATCH"},
	{laravelRouteTupleRe("delete"), "DELETE"},
}

// Parse walks routes, controllers and form requests, and extracts all
// endpoints.
func (p *LaravelParser) Parse() ([]Endpoint, error) {
	if err := p.buildCaches(); err != nil {
		return nil, err
	}

	endpoints, err := p.parseRouteFiles()
	if err != nil {
		return nil, err
	}

	for i := range endpoints {
		p.enhanceEndpoint(&endpoints[i])
	}

	p.logger.Info("Laravel scan complete",
		zap.Int("controllers", len(p.controllerFiles)),
		zap.Int("formRequests", len(p.formRequests)),
		zap.Int("endpoints", len(endpoints)))
	return dedupeEndpoints(endpoints), nil
}

func (p *LaravelParser) buildCaches() error {
	controllers, err := doublestar.FilepathGlob(filepath.Join(p.projectPath, "**", "app", "Http", "Controllers", "**", "*.php"))
	if err != nil {
		return fmt.Errorf("globbing controller files: %w", err)
	}
	for _, path := range controllers {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if class, ok := qualifiedClass(string(content), laravelControllerRe); ok {
			p.controllerFiles[class] = path
			// Also key by bare class name for unqualified route tuples.
			if bare := bareClass(class); bare != class {
				p.controllerFiles[bare] = path
			}
		}
	}

	requests, err := doublestar.FilepathGlob(filepath.Join(p.projectPath, "**", "app", "Http", "Requests", "**", "*.php"))
	if err != nil {
		return fmt.Errorf("globbing form request files: %w", err)
	}
	for _, path := range requests {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if caps := laravelFormRequestRe.FindStringSubmatch(string(content)); caps != nil {
			p.formRequests[caps[1]] = path
		}
	}

	return nil
}

func qualifiedClass(content string, classRe *regexp.Regexp) (string, bool) {
	classCaps := classRe.FindStringSubmatch(content)
	if classCaps == nil {
		return "", false
	}
	if nsCaps := laravelNamespaceRe.FindStringSubmatch(content); nsCaps != nil {
		return nsCaps[1] + `\` + classCaps[1], true
	}
	return classCaps[1], true
}

func bareClass(class string) string {
	parts := strings.Split(class, `\`)
	return parts[len(parts)-1]
}

func (p *LaravelParser) parseRouteFiles() ([]Endpoint, error) {
	routeFiles, err := doublestar.FilepathGlob(filepath.Join(p.projectPath, "routes", "*.php"))
	if err != nil {
		return nil, fmt.Errorf("globbing route files: %w", err)
	}

	var endpoints []Endpoint
	for _, path := range routeFiles {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		endpoints = append(endpoints, p.parseRoutesContent(string(content), path)...)
	}
	return endpoints, nil
}

func (p *LaravelParser) parseRoutesContent(content, filePath string) []Endpoint {
	var endpoints []Endpoint

	for _, route := range laravelRoutePatterns {
		for _, caps := range route.pattern.FindAllStringSubmatch(content, -1) {
			routePath, controllerClass, action := caps[1], caps[2], caps[3]
			endpoint := p.newEndpoint(routePath, route.method, controllerClass, action, filePath)
			p.metadata[route.method+":"+endpoint.Path] = laravelRouteMeta{
				controllerClass: controllerClass,
				methodName:      action,
			}
			endpoints = append(endpoints, endpoint)
		}
	}

	for _, caps := range laravelResourceRe.FindAllStringSubmatch(content, -1) {
		endpoints = append(endpoints, p.resourceEndpoints(caps[1], caps[2], false, filePath)...)
	}
	for _, caps := range laravelAPIResourceRe.FindAllStringSubmatch(content, -1) {
		endpoints = append(endpoints, p.resourceEndpoints(caps[1], caps[2], true, filePath)...)
	}

	return endpoints
}

// resourceEndpoints expands Route::resource / Route::apiResource into the
// canonical action set.
func (p *LaravelParser) resourceEndpoints(resourcePath, controllerClass string, isAPI bool, filePath string) []Endpoint {
	base := "/" + strings.TrimPrefix(resourcePath, "/")

	type resourceAction struct {
		method string
		action string
		path   string
	}
	var actions []resourceAction
	if isAPI {
		actions = []resourceAction{
			{"GET", "index", base},
			{"POST", "store", base},
			{"GET", "show", base + "/{id}"},
			{"PUT", "update", base + "/{id}"},
			{"PATCH", "update", base + "/{id}"},
			{"DELETE", "destroy", base + "/{id}"},
		}
	} else {
		actions = []resourceAction{
			{"GET", "index", base},
			{"GET", "create", base + "/create"},
			{"POST", "store", base},
			{"GET", "show", base + "/{id}"},
			{"GET", "edit", base + "/{id}/edit"},
			{"PUT", "update", base + "/{id}"},
			{"PATCH", "update", base + "/{id}"},
			{"DELETE", "destroy", base + "/{id}"},
		}
	}

	endpoints := make([]Endpoint, 0, len(actions))
	for _, a := range actions {
		endpoint := p.newEndpoint(a.path, a.method, controllerClass, a.action, filePath)
		p.metadata[a.method+":"+endpoint.Path] = laravelRouteMeta{
			controllerClass: controllerClass,
			methodName:      a.action,
		}
		endpoints = append(endpoints, endpoint)
	}
	return endpoints
}

func (p *LaravelParser) newEndpoint(routePath, method, controllerClass, action, filePath string) Endpoint {
	controllerName := bareClass(controllerClass)
	path := "/" + strings.TrimPrefix(routePath, "/")

	return Endpoint{
		Path:       path,
		Method:     method,
		Controller: controllerName,
		Action:     action,
		FilePath:   filePath,
		BusinessLogic: BusinessLogic{
			Summary:     endpointSummary(method, path),
			Description: fmt.Sprintf("%s@%s", controllerName, action),
		},
	}
}

// enhanceEndpoint adds path parameters plus whatever the controller method
// reveals: form-request rules, inline validate arrays and filled() usage.
func (p *LaravelParser) enhanceEndpoint(endpoint *Endpoint) {
	endpoint.Parameters = append(endpoint.Parameters, p.pathParameters(endpoint.Path)...)

	meta, ok := p.metadata[endpoint.Method+":"+endpoint.Path]
	if !ok {
		return
	}
	controllerPath, ok := p.controllerFiles[meta.controllerClass]
	if !ok {
		return
	}
	content, err := os.ReadFile(controllerPath)
	if err != nil {
		return
	}

	signature, body, ok := extractMethod(string(content), meta.methodName)
	if !ok {
		return
	}

	pathNames := make(map[string]bool)
	for _, param := range endpoint.Parameters {
		if param.Source == "path" {
			pathNames[param.Name] = true
		}
	}

	var discovered []Parameter
	discovered = append(discovered, p.signatureParameters(signature)...)
	discovered = append(discovered, p.inlineValidateParameters(body)...)
	discovered = append(discovered, p.filledParameters(body)...)

	for _, param := range discovered {
		// Route-bound scalars reappear in signatures; the path record wins.
		if pathNames[param.Name] {
			continue
		}
		endpoint.Parameters = append(endpoint.Parameters, param)
	}
	endpoint.Parameters = foldDottedParameters(endpoint.Parameters)
}

// extractMethod returns the signature and body of a public controller
// method. The body extent is approximated by brace counting.
func extractMethod(content, methodName string) (string, string, bool) {
	sigRe, err := regexp.Compile(`public\s+function\s+` + regexp.QuoteMeta(methodName) + `\s*\(([^)]*)\)`)
	if err != nil {
		return "", "", false
	}
	match := sigRe.FindStringSubmatchIndex(content)
	if match == nil {
		return "", "", false
	}
	signature := content[match[2]:match[3]]

	bodyStart := strings.Index(content[match[1]:], "{")
	if bodyStart == -1 {
		return signature, "", true
	}
	bodyStart += match[1]

	depth := 0
	for i := bodyStart; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return signature, content[bodyStart : i+1], true
			}
		}
	}
	return signature, content[bodyStart:], true
}

// signatureParameters maps typed signature parameters: form-request types
// expand into their rules; scalars degrade to typed body guesses.
func (p *LaravelParser) signatureParameters(signature string) []Parameter {
	var params []Parameter
	for _, caps := range laravelSigParamRe.FindAllStringSubmatch(signature, -1) {
		typeName, varName := bareClass(caps[1]), caps[2]

		if formPath, ok := p.formRequests[typeName]; ok {
			params = append(params, p.formRequestParameters(formPath)...)
			continue
		}

		switch {
		case strings.Contains(typeName, "Request"):
			// The base Request object itself carries no declared fields.
		case strings.Contains(typeName, "int"), strings.Contains(typeName, "float"):
			params = append(params, Parameter{
				Name: varName, ParamType: "number", Source: "body", Required: true,
				Example: GenerateExample("number", varName, nil), DefaultValue: GenerateDefault("number"),
			})
		case strings.Contains(typeName, "bool"):
			params = append(params, Parameter{
				Name: varName, ParamType: "boolean", Source: "body", Required: true,
				Example: GenerateExample("boolean", varName, nil), DefaultValue: GenerateDefault("boolean"),
			})
		case typeName == "string":
			params = append(params, Parameter{
				Name: varName, ParamType: "string", Source: "body", Required: true,
				Example: GenerateExample("string", varName, nil), DefaultValue: GenerateDefault("string"),
			})
		}
	}
	return params
}

// formRequestParameters parses a form-request class's rules() body.
func (p *LaravelParser) formRequestParameters(filePath string) []Parameter {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil
	}
	_, body, ok := extractMethod(string(content), "rules")
	if !ok {
		return nil
	}
	return parseValidationRules(body)
}

// inlineValidateParameters treats request->validate([...]) arrays exactly
// like a form-request rules() body.
func (p *LaravelParser) inlineValidateParameters(body string) []Parameter {
	var params []Parameter
	for _, caps := range laravelValidateRe.FindAllStringSubmatch(body, -1) {
		params = append(params, parseValidationRules(caps[1])...)
	}
	return params
}

// parseValidationRules maps 'field' => 'required|string|max:255' pairs
// (string or array rule form) to typed body parameters.
func parseValidationRules(rulesBody string) []Parameter {
	var params []Parameter
	for _, caps := range laravelRuleLineRe.FindAllStringSubmatch(rulesBody, -1) {
		field := caps[1]
		if strings.Contains(field, "*") {
			// Wildcard nested rules (items.*.id) have no stable shape here.
			continue
		}

		var rules []string
		if caps[2] != "" {
			rules = strings.Split(caps[2], "|")
		} else {
			for _, piece := range strings.Split(caps[3], ",") {
				piece = strings.Trim(strings.TrimSpace(piece), `'"`)
				if piece != "" {
					rules = append(rules, piece)
				}
			}
		}
		if len(rules) == 0 {
			continue
		}

		params = append(params, parameterFromRules(field, rules))
	}
	return params
}

func parameterFromRules(field string, rules []string) Parameter {
	paramType := "string"
	required := false
	var validation []string

	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		switch {
		case rule == "required":
			required = true
		case rule == "integer", rule == "numeric":
			paramType = "number"
		case rule == "boolean":
			paramType = "boolean"
		case rule == "array":
			paramType = "array"
		case rule == "string", rule == "email", rule == "date", rule == "url":
			paramType = "string"
		}
		if rule != "" && rule != "required" {
			validation = append(validation, rule)
		}
	}

	return Parameter{
		Name:         field,
		ParamType:    paramType,
		Source:       "body",
		Required:     required,
		Validation:   validation,
		Example:      GenerateExample(paramType, field, validation),
		DefaultValue: GenerateDefault(paramType),
	}
}

// filledParameters scans request->filled('name') blocks and infers the
// parameter type from nearby usage.
func (p *LaravelParser) filledParameters(body string) []Parameter {
	var params []Parameter
	for _, match := range laravelFilledRe.FindAllStringSubmatchIndex(body, -1) {
		name := body[match[2]:match[3]]

		// The inference window is the code shortly after the filled() check.
		windowEnd := match[1] + 400
		if windowEnd > len(body) {
			windowEnd = len(body)
		}
		window := body[match[0]:windowEnd]

		paramType, validation := inferFilledType(name, window)
		params = append(params, Parameter{
			Name:         name,
			ParamType:    paramType,
			Source:       "query",
			Required:     false,
			Validation:   validation,
			Example:      GenerateExample(paramType, name, validation),
			DefaultValue: GenerateDefault(paramType),
		})
	}
	return params
}

var (
	laravelEnumUsageRe  = regexp.MustCompile(`enum\s*\(\s*['"](\w+)['"]\s*,\s*(\w+)::class`)
	laravelNumericCmpRe = regexp.MustCompile(`['"]?[<>]=?['"]?\s*,\s*\d`)
)

// inferFilledType applies the usage heuristics in fixed order; the first
// match wins, anything else degrades to a plain string.
func inferFilledType(name, window string) (string, []string) {
	quoted := regexp.QuoteMeta(name)

	whereInRe := regexp.MustCompile(`whereIn\s*\([^)]*input\s*\(\s*['"]` + quoted + `['"]`)
	if whereInRe.MatchString(window) {
		return "array", nil
	}
	if caps := laravelEnumUsageRe.FindStringSubmatch(window); caps != nil && caps[1] == name {
		return "string", []string{"enum:" + caps[2]}
	}
	dateRe := regexp.MustCompile(`date\s*\(\s*['"]` + quoted + `['"]`)
	if dateRe.MatchString(window) || strings.Contains(window, "endOfDay") {
		return "string", []string{"date"}
	}
	if laravelNumericCmpRe.MatchString(window) {
		return "number", nil
	}
	if strings.Contains(strings.ToUpper(window), "LIKE") {
		return "string", []string{"like"}
	}
	return "string", nil
}

// pathParameters parses {name}, {name?} and {name:pattern} from the route
// template. The ? marks optional; numeric-looking constraints map to
// number.
func (p *LaravelParser) pathParameters(path string) []Parameter {
	var params []Parameter
	for _, caps := range laravelPathParamRe.FindAllStringSubmatch(path, -1) {
		name := caps[1]
		optional := caps[2] == "?"
		constraint := caps[3]

		paramType := "string"
		var validation []string
		if constraint != "" {
			if strings.Contains(constraint, `\d+`) || strings.Contains(constraint, "int") {
				paramType = "number"
			}
			validation = []string{constraint}
		}

		params = append(params, Parameter{
			Name:         name,
			ParamType:    paramType,
			Source:       "path",
			Required:     !optional,
			Validation:   validation,
			Example:      GenerateExample(paramType, name, validation),
			DefaultValue: GenerateDefault(paramType),
		})
	}
	return params
}

// foldDottedParameters assembles user.name style validation fields into a
// nested object parameter under the parent.
func foldDottedParameters(params []Parameter) []Parameter {
	var result []Parameter
	children := make(map[string][]Parameter)
	order := []string{}

	for _, param := range params {
		parent, child, found := strings.Cut(param.Name, ".")
		if !found || param.Source != "body" {
			result = append(result, param)
			continue
		}
		if _, seen := children[parent]; !seen {
			order = append(order, parent)
		}
		childParam := param
		childParam.Name = child
		children[parent] = append(children[parent], childParam)
	}

	for _, parent := range order {
		kids := children[parent]
		example := make(map[string]interface{}, len(kids))
		required := false
		for _, kid := range kids {
			example[kid.Name] = kid.Example
			if kid.Required {
				required = true
			}
		}
		result = append(result, Parameter{
			Name:         parent,
			ParamType:    "object",
			Source:       "body",
			Required:     required,
			Example:      example,
			DefaultValue: GenerateDefault("object"),
		})
	}

	return result
}
