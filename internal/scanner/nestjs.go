package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// NestJSParser extracts endpoints from annotation-driven controllers:
// @Controller base paths, method decorators, DTO-based parameters and
// guard-based authentication.
type NestJSParser struct {
	projectPath     string
	controllerFiles map[string]string // class name -> file path
	dtoFiles        map[string]string // class name -> file path
	globalPrefix    string
	successWrapper  bool
	logger          *zap.Logger
}

// NewNestJSParser creates a parser rooted at projectPath.
func NewNestJSParser(projectPath string, logger *zap.Logger) *NestJSParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NestJSParser{
		projectPath:     projectPath,
		controllerFiles: make(map[string]string),
		dtoFiles:        make(map[string]string),
		logger:          logger,
	}
}

var (
	nestControllerClassRe = regexp.MustCompile(`export\s+class\s+(\w+Controller)\s*(?:extends|implements|\{)`)
	nestDtoClassRe        = regexp.MustCompile(`export\s+class\s+(\w+Dto)\s*(?:extends|implements|\{)`)
	nestControllerPathRe  = regexp.MustCompile(`@Controller\s*\(\s*(?:'([^']+)'|"([^"]+)")\s*\)`)
	nestGuardRe           = regexp.MustCompile(`@UseGuards\s*\(\s*(\w+AuthGuard)\s*\)`)
	nestMethodDefRe       = regexp.MustCompile(`(?:async\s+)?(\w+)\s*\(([^)]*)\)`)
	nestHTTPCodeRe        = regexp.MustCompile(`@HttpCode\s*\(\s*(\d+)\s*\)`)
	nestBodyParamRe       = regexp.MustCompile(`@Body\s*(?:\(\))?\s+(\w+):\s*(\w+)`)
	nestParamRe           = regexp.MustCompile(`@Param\s*\(\s*(?:'([^']+)'|"([^"]+)")\s*(?:,\s*[^)]+)?\)\s+(\w+):\s*(\w+)`)
	nestQueryRe           = regexp.MustCompile(`@Query\s*(?:\(\s*(?:'([^']+)'|"([^"]+)")\s*\))?\s+(?:(\w+):\s*)?(\w+)`)
	nestPathParamRe       = regexp.MustCompile(`:(\w+)`)
	bracePathParamRe      = regexp.MustCompile(`\{(\w+)\}`)
	nestPropertyRe        = regexp.MustCompile(`(\w+)\??\s*:\s*(\w+)(?:\s*[=;])?`)
	nestGlobalPrefixRe    = regexp.MustCompile(`setGlobalPrefix\s*\(\s*(?:'([^']+)'|"([^"]+)")`)
	nestExampleRe         = regexp.MustCompile(`example\s*:\s*([^,}]+)`)
)

var nestMethodDecorators = []struct {
	pattern *regexp.Regexp
	method  string
}{
	{regexp.MustCompile(`@Get\s*(?:\(\s*(?:'([^']*)'|"([^"]*)")\s*\))?`), "GET"},
	{regexp.MustCompile(`@Post\s*(?:\(\s*(?:'([^']*)'|"([^"]*)")\s*\))?`), "POST"},
	{regexp.MustCompile(`@Put\s*(?:\(\s*(?:'([^']*)'|"([^"]*)")\s*\))?`), "PUT"},
	{regexp.MustCompile(`@Patch\s*(?:\(\s*(?:'([^']*)'|"([^"]*)")\s*\))?`), "PATCH"},
	{regexp.MustCompile(`@Delete\s*(?:\(\s*(?:'([^']*)'|"([^"]*)")\s*\))?`), "DELETE"},
}

// Parse walks the tree and extracts all endpoints.
func (p *NestJSParser) Parse() ([]Endpoint, error) {
	p.detectAppEntry()

	if err := p.buildCaches(); err != nil {
		return nil, err
	}

	var endpoints []Endpoint
	for _, filePath := range p.controllerFiles {
		content, err := os.ReadFile(filePath)
		if err != nil {
			continue
		}
		endpoints = append(endpoints, p.parseController(string(content), filePath)...)
	}

	p.logger.Info("NestJS scan complete",
		zap.Int("controllers", len(p.controllerFiles)),
		zap.Int("endpoints", len(endpoints)))
	return dedupeEndpoints(endpoints), nil
}

// detectAppEntry reads the app bootstrap file for a global route prefix and
// a global success-wrapper interceptor.
func (p *NestJSParser) detectAppEntry() {
	matches, err := doublestar.FilepathGlob(filepath.Join(p.projectPath, "src", "main.ts"))
	if err != nil || len(matches) == 0 {
		return
	}
	raw, err := os.ReadFile(matches[0])
	if err != nil {
		return
	}
	content := string(raw)

	if caps := nestGlobalPrefixRe.FindStringSubmatch(content); caps != nil {
		prefix := firstGroup(caps[1], caps[2])
		p.globalPrefix = "/" + strings.Trim(prefix, "/")
	}
	if strings.Contains(content, "useGlobalInterceptors") {
		p.successWrapper = true
	}
}

func (p *NestJSParser) buildCaches() error {
	controllers, err := doublestar.FilepathGlob(filepath.Join(p.projectPath, "**", "*.controller.ts"))
	if err != nil {
		return fmt.Errorf("globbing controller files: %w", err)
	}
	for _, path := range controllers {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if caps := nestControllerClassRe.FindStringSubmatch(string(content)); caps != nil {
			p.controllerFiles[caps[1]] = path
		}
	}

	dtos, err := doublestar.FilepathGlob(filepath.Join(p.projectPath, "**", "dto", "*.dto.ts"))
	if err != nil {
		return fmt.Errorf("globbing dto files: %w", err)
	}
	for _, path := range dtos {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if caps := nestDtoClassRe.FindStringSubmatch(string(content)); caps != nil {
			p.dtoFiles[caps[1]] = path
		}
	}

	return nil
}

func (p *NestJSParser) parseController(content, filePath string) []Endpoint {
	basePath := p.controllerBasePath(content)
	controllerAuth := detectNestAuthentication(content)

	var endpoints []Endpoint
	for _, decorator := range nestMethodDecorators {
		for _, match := range decorator.pattern.FindAllStringSubmatchIndex(content, -1) {
			methodPath := submatchString(content, match, 1)
			if methodPath == "" {
				methodPath = submatchString(content, match, 2)
			}
			decoratorStart := match[0]

			info, ok := p.findMethodAfterDecorator(content, decoratorStart)
			if !ok {
				continue
			}

			fullPath := joinRoutePaths(basePath, methodPath)
			if p.globalPrefix != "" {
				fullPath = p.globalPrefix + fullPath
				if fullPath == "" {
					fullPath = "/"
				}
			}

			auth := controllerAuth
			if info.auth.Required {
				auth = info.auth
			}

			endpoint := Endpoint{
				Path:       normalizeRoutePath(fullPath),
				Method:     decorator.method,
				Action:     info.name,
				FilePath:   filePath,
				LineNumber: strings.Count(content[:decoratorStart], "\n") + 1,
				BusinessLogic: BusinessLogic{
					Summary:     endpointSummary(decorator.method, normalizeRoutePath(fullPath)),
					Description: fmt.Sprintf("Controller@%s", info.name),
				},
				Authentication: auth,
			}

			endpoint.Parameters = append(p.pathParameters(endpoint.Path), p.signatureParameters(info.params)...)
			endpoint.Responses = p.buildResponses(&endpoint, info.statusOverride)

			endpoints = append(endpoints, endpoint)
		}
	}
	return endpoints
}

type nestMethodInfo struct {
	name           string
	params         string
	auth           Authentication
	statusOverride int
}

// findMethodAfterDecorator locates the nearest method definition after a
// route decorator, skipping other decorators in between. The search window
// is bounded so a miss cannot bind a decorator to an unrelated method.
// Parameter extents are found by paren counting, since decorator arguments
// inside the signature contain their own parens.
func (p *NestJSParser) findMethodAfterDecorator(content string, decoratorStart int) (nestMethodInfo, bool) {
	searchEnd := decoratorStart + 500
	if searchEnd > len(content) {
		searchEnd = len(content)
	}
	window := content[decoratorStart:searchEnd]

	for _, match := range nestMethodDefRe.FindAllStringSubmatchIndex(window, -1) {
		methodPos := match[0]
		before := strings.TrimRight(window[:methodPos], " \t\r\n")
		if strings.HasSuffix(before, "@") {
			// Another decorator's invocation, not the handler.
			continue
		}

		name := window[match[2]:match[3]]
		if isNestDecoratorName(name) {
			continue
		}

		params, ok := balancedParens(window, match[3])
		if !ok {
			continue
		}

		between := window[:methodPos]
		info := nestMethodInfo{
			name:   name,
			params: params,
			auth:   detectNestAuthentication(between),
		}
		if caps := nestHTTPCodeRe.FindStringSubmatch(between); caps != nil {
			info.statusOverride, _ = strconv.Atoi(caps[1])
		}
		return info, true
	}

	return nestMethodInfo{}, false
}

// balancedParens returns the text inside the parenthesized group starting
// at or after `from`, honoring nesting.
func balancedParens(text string, from int) (string, bool) {
	open := strings.Index(text[from:], "(")
	if open == -1 {
		return "", false
	}
	open += from

	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return text[open+1 : i], true
			}
		}
	}
	return "", false
}

// isNestDecoratorName filters out decorator invocations that the method
// regex would otherwise match.
func isNestDecoratorName(name string) bool {
	switch name {
	case "Get", "Post", "Put", "Patch", "Delete", "Controller",
		"UseGuards", "UseInterceptors", "HttpCode", "ApiBearerAuth",
		"ApiOperation", "ApiResponse", "ApiTags":
		return true
	}
	return false
}

func (p *NestJSParser) controllerBasePath(content string) string {
	caps := nestControllerPathRe.FindStringSubmatch(content)
	if caps == nil {
		return ""
	}
	path := firstGroup(caps[1], caps[2])
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// signatureParameters parses @Body/@Param/@Query bindings out of a method
// signature.
func (p *NestJSParser) signatureParameters(params string) []Parameter {
	var result []Parameter

	for _, caps := range nestBodyParamRe.FindAllStringSubmatch(params, -1) {
		result = append(result, p.dtoParameters(caps[2], "body", true)...)
	}

	for _, caps := range nestParamRe.FindAllStringSubmatch(params, -1) {
		name := firstGroup(caps[1], caps[2])
		paramType := mapTypeScriptType(caps[4])
		result = append(result, Parameter{
			Name:         name,
			ParamType:    paramType,
			Source:       "path",
			Required:     true,
			Example:      GenerateExample(paramType, name, nil),
			DefaultValue: GenerateDefault(paramType),
		})
	}

	for _, caps := range nestQueryRe.FindAllStringSubmatch(params, -1) {
		name := firstGroup(caps[1], caps[2])
		if name != "" {
			paramType := mapTypeScriptType(caps[4])
			result = append(result, Parameter{
				Name:         name,
				ParamType:    paramType,
				Source:       "query",
				Required:     false,
				Example:      GenerateExample(paramType, name, nil),
				DefaultValue: GenerateDefault(paramType),
			})
			continue
		}
		// Whole-DTO query binding: every field becomes an optional query
		// parameter.
		for _, param := range p.dtoParameters(caps[4], "query", false) {
			param.Source = "query"
			param.Required = false
			result = append(result, param)
		}
	}

	return result
}

// dtoParameters parses a DTO class from the cache into typed parameters.
func (p *NestJSParser) dtoParameters(className, source string, required bool) []Parameter {
	filePath, ok := p.dtoFiles[className]
	if !ok {
		return nil
	}
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil
	}

	var params []Parameter
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.Contains(trimmed, ":") ||
			strings.HasPrefix(trimmed, "//") ||
			strings.HasPrefix(trimmed, "*") ||
			strings.HasPrefix(trimmed, "/**") ||
			strings.HasPrefix(trimmed, "@") ||
			strings.HasPrefix(trimmed, "import") ||
			strings.HasPrefix(trimmed, "export") {
			continue
		}

		decorators := decoratorsAbove(lines, i)
		if param, ok := parseDtoProperty(trimmed, decorators); ok {
			param.Source = source
			if !required && param.Required {
				param.Required = false
			}
			params = append(params, param)
		}
	}
	return params
}

// decoratorsAbove collects the contiguous decorator cluster directly above
// a property line.
func decoratorsAbove(lines []string, propertyIndex int) []string {
	var decorators []string
	for j := propertyIndex - 1; j >= 0; j-- {
		trimmed := strings.TrimSpace(lines[j])
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}
		if strings.HasPrefix(trimmed, "@") || strings.HasPrefix(trimmed, "}") && strings.Contains(trimmed, ")") {
			decorators = append([]string{trimmed}, decorators...)
			continue
		}
		break
	}
	return decorators
}

var (
	nestMinRe       = regexp.MustCompile(`@Min\s*\(\s*(\d+)\s*\)`)
	nestMaxRe       = regexp.MustCompile(`@Max\s*\(\s*(\d+)\s*\)`)
	nestMinLengthRe = regexp.MustCompile(`@MinLength\s*\(\s*(\d+)\s*\)`)
	nestMaxLengthRe = regexp.MustCompile(`@MaxLength\s*\(\s*(\d+)\s*\)`)
)

// parseDtoProperty maps one property line plus its annotation cluster to a
// typed parameter.
func parseDtoProperty(line string, decorators []string) (Parameter, bool) {
	caps := nestPropertyRe.FindStringSubmatch(line)
	if caps == nil {
		return Parameter{}, false
	}

	name := caps[1]
	param := Parameter{
		Name:      name,
		ParamType: mapTypeScriptType(caps[2]),
		Source:    "body",
		Required:  !strings.Contains(line, "?"),
	}

	var validation []string
	var example interface{}

	for _, decorator := range decorators {
		switch {
		case strings.Contains(decorator, "@IsOptional"):
			param.Required = false
		case strings.Contains(decorator, "@IsNotEmpty"):
			param.Required = true
			validation = append(validation, "required")
		case strings.Contains(decorator, "@IsInt"), strings.Contains(decorator, "@IsNumber"):
			param.ParamType = "number"
			validation = append(validation, "integer")
		case strings.Contains(decorator, "@IsString"):
			param.ParamType = "string"
			validation = append(validation, "string")
		case strings.Contains(decorator, "@IsBoolean"), strings.Contains(decorator, "@IsBool"):
			param.ParamType = "boolean"
			validation = append(validation, "boolean")
		case strings.Contains(decorator, "@IsArray"):
			param.ParamType = "array"
			validation = append(validation, "array")
		case strings.Contains(decorator, "@IsEmail"):
			param.ParamType = "string"
			validation = append(validation, "email")
		case strings.Contains(decorator, "@IsEnum"):
			param.ParamType = "string"
			validation = append(validation, "enum")
		case strings.Contains(decorator, "@MinLength("):
			if m := nestMinLengthRe.FindStringSubmatch(decorator); m != nil {
				validation = append(validation, "minLength:"+m[1])
			}
		case strings.Contains(decorator, "@MaxLength("):
			if m := nestMaxLengthRe.FindStringSubmatch(decorator); m != nil {
				validation = append(validation, "maxLength:"+m[1])
			}
		case strings.Contains(decorator, "@Min("):
			if m := nestMinRe.FindStringSubmatch(decorator); m != nil {
				validation = append(validation, "min:"+m[1])
			}
		case strings.Contains(decorator, "@Max("):
			if m := nestMaxRe.FindStringSubmatch(decorator); m != nil {
				validation = append(validation, "max:"+m[1])
			}
		}

		if strings.Contains(decorator, "@ApiProperty") {
			if m := nestExampleRe.FindStringSubmatch(decorator); m != nil {
				example = parseLiteral(strings.TrimSpace(m[1]))
			}
			if strings.Contains(decorator, "@ApiPropertyOptional") {
				param.Required = false
			}
		}
	}

	param.Validation = validation
	if example != nil {
		param.Example = example
	} else {
		param.Example = GenerateExample(param.ParamType, name, validation)
	}
	param.DefaultValue = GenerateDefault(param.ParamType)

	return param, true
}

func (p *NestJSParser) pathParameters(path string) []Parameter {
	var params []Parameter
	for _, caps := range bracePathParamRe.FindAllStringSubmatch(path, -1) {
		name := caps[1]
		params = append(params, Parameter{
			Name:         name,
			ParamType:    "string",
			Source:       "path",
			Required:     true,
			Example:      GenerateExample("string", name, nil),
			DefaultValue: GenerateDefault("string"),
		})
	}
	return params
}

// buildResponses assembles the response set: an explicit or defaulted
// success status (wrapped when the app uses a global success interceptor),
// a 400 for any endpoint, a 401 when authenticated, and a 404 when path
// parameters exist.
func (p *NestJSParser) buildResponses(endpoint *Endpoint, statusOverride int) []Response {
	successStatus := statusOverride
	if successStatus == 0 {
		successStatus = 200
		if endpoint.Method == "POST" {
			successStatus = 201
		}
	}

	successSchema := &SchemaNode{Type: "object"}
	if p.successWrapper {
		successSchema = &SchemaNode{
			Type: "object",
			Properties: map[string]*SchemaNode{
				"success": {Type: "boolean", Example: true},
				"data":    {Type: "object"},
			},
		}
	}

	responses := []Response{
		{
			StatusCode:  successStatus,
			Description: "Success",
			ContentType: "application/json",
			Schema:      successSchema,
		},
		{StatusCode: 400, Description: "Bad Request"},
	}

	if endpoint.Authentication.Required {
		responses = append(responses, Response{StatusCode: 401, Description: "Unauthorized"})
	}

	hasPathParam := false
	for _, param := range endpoint.Parameters {
		if param.Source == "path" {
			hasPathParam = true
			break
		}
	}
	if hasPathParam {
		responses = append(responses, Response{StatusCode: 404, Description: "Not Found"})
	}

	return responses
}

func detectNestAuthentication(content string) Authentication {
	if nestGuardRe.MatchString(content) || strings.Contains(content, "@ApiBearerAuth") {
		return Authentication{Required: true, AuthType: "JWT"}
	}
	return Authentication{}
}

func mapTypeScriptType(tsType string) string {
	switch tsType {
	case "number", "Number":
		return "number"
	case "string", "String", "Date":
		return "string"
	case "boolean", "Boolean":
		return "boolean"
	default:
		return "string"
	}
}

// joinRoutePaths combines a controller base path and a method path,
// ensuring exactly one separating slash.
func joinRoutePaths(base, method string) string {
	if method != "" && !strings.HasPrefix(method, "/") {
		method = "/" + method
	}
	switch {
	case base == "" && method == "":
		return "/"
	case base == "":
		return method
	case method == "":
		return base
	default:
		return base + method
	}
}

// normalizeRoutePath guarantees a leading slash and rewrites :name
// parameters to {name}.
func normalizeRoutePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return nestPathParamRe.ReplaceAllString(path, "{$1}")
}

// parseLiteral interprets an annotation literal as a JSON-ish value.
func parseLiteral(value string) interface{} {
	cleaned := strings.Trim(value, `'"`)
	if n, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
		return float64(n)
	}
	if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return f
	}
	if cleaned == "true" {
		return true
	}
	if cleaned == "false" {
		return false
	}
	return cleaned
}

func firstGroup(groups ...string) string {
	for _, group := range groups {
		if group != "" {
			return group
		}
	}
	return ""
}

func submatchString(content string, match []int, group int) string {
	start, end := match[2*group], match[2*group+1]
	if start < 0 || end < 0 {
		return ""
	}
	return content[start:end]
}
