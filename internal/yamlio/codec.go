// Package yamlio maps scenarios to and from their stable YAML document
// shape. Parsing is tolerant: documents that fail the typed decode are
// normalized through a generic round-trip and retried once, which absorbs
// the whitespace and indent drift of hand- or AI-authored YAML.
package yamlio

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/phanngoc/lookapi/internal/scenario"
)

// ScenarioDoc is the YAML document shape of one scenario.
type ScenarioDoc struct {
	Name        string                 `yaml:"name" json:"name"`
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Priority    string                 `yaml:"priority,omitempty" json:"priority,omitempty"`
	BaseURL     string                 `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
	Variables   map[string]interface{} `yaml:"variables,omitempty" json:"variables,omitempty"`
	PreScript   string                 `yaml:"preScript,omitempty" json:"preScript,omitempty"`
	PostScript  string                 `yaml:"postScript,omitempty" json:"postScript,omitempty"`
	Steps       []StepDoc              `yaml:"steps" json:"steps,omitempty"`
}

// ProjectDoc wraps several scenarios for a project-level export.
type ProjectDoc struct {
	ProjectName string        `yaml:"projectName" json:"projectName"`
	BaseURL     string        `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
	ExportedAt  string        `yaml:"exportedAt" json:"exportedAt"`
	Scenarios   []ScenarioDoc `yaml:"scenarios" json:"scenarios"`
}

// StepDoc is the YAML shape of one step: exactly one of the typed config
// blocks is present.
type StepDoc struct {
	Name       string               `yaml:"name" json:"name"`
	Enabled    *bool                `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Request    *RequestDoc          `yaml:"request,omitempty" json:"request,omitempty"`
	Delay      *DelayDoc            `yaml:"delay,omitempty" json:"delay,omitempty"`
	Script     *ScriptDoc           `yaml:"script,omitempty" json:"script,omitempty"`
	Condition  *ConditionDoc        `yaml:"condition,omitempty" json:"condition,omitempty"`
	Loop       *LoopDoc             `yaml:"loop,omitempty" json:"loop,omitempty"`
	Extract    []ExtractorDoc       `yaml:"extract,omitempty" json:"extract,omitempty"`
	Assertions []AssertionDoc       `yaml:"assertions,omitempty" json:"assertions,omitempty"`
	CSVItems   *CSVDoc              `yaml:"with_items_from_csv,omitempty" json:"with_items_from_csv,omitempty"`
}

// RequestDoc is the YAML shape of a request config.
type RequestDoc struct {
	Method  string            `yaml:"method" json:"method"`
	URL     string            `yaml:"url" json:"url"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Params  interface{}       `yaml:"params,omitempty" json:"params,omitempty"`
	Body    interface{}       `yaml:"body,omitempty" json:"body,omitempty"`
}

// DelayDoc is the YAML shape of a delay config; duration is milliseconds.
type DelayDoc struct {
	Duration int64 `yaml:"duration" json:"duration"`
}

// ScriptDoc is the YAML shape of a script config.
type ScriptDoc struct {
	Code string `yaml:"code" json:"code"`
}

// ConditionDoc is the YAML shape of a condition config.
type ConditionDoc struct {
	Condition  string   `yaml:"condition" json:"condition"`
	TrueSteps  []string `yaml:"trueSteps,omitempty" json:"trueSteps,omitempty"`
	FalseSteps []string `yaml:"falseSteps,omitempty" json:"falseSteps,omitempty"`
}

// LoopDoc is the YAML shape of a loop config.
type LoopDoc struct {
	Type             string   `yaml:"type" json:"type"`
	Count            int      `yaml:"count,omitempty" json:"count,omitempty"`
	IteratorVariable string   `yaml:"iteratorVariable,omitempty" json:"iteratorVariable,omitempty"`
	DataSource       string   `yaml:"dataSource,omitempty" json:"dataSource,omitempty"`
	Steps            []string `yaml:"steps,omitempty" json:"steps,omitempty"`
}

// ExtractorDoc is the YAML shape of a variable extractor.
type ExtractorDoc struct {
	Name         string      `yaml:"name" json:"name"`
	Source       string      `yaml:"source" json:"source"`
	Path         string      `yaml:"path,omitempty" json:"path,omitempty"`
	DefaultValue interface{} `yaml:"defaultValue,omitempty" json:"defaultValue,omitempty"`
}

// AssertionDoc is the YAML shape of an assertion.
type AssertionDoc struct {
	Name     string      `yaml:"name" json:"name"`
	Source   string      `yaml:"source" json:"source"`
	Path     string      `yaml:"path,omitempty" json:"path,omitempty"`
	Operator string      `yaml:"operator" json:"operator"`
	Expected interface{} `yaml:"expected" json:"expected"`
}

// CSVDoc is the YAML shape of a CSV expansion descriptor.
type CSVDoc struct {
	File      string `yaml:"file" json:"file"`
	Delimiter string `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`
	Quote     string `yaml:"quote,omitempty" json:"quote,omitempty"`
}

// ParseScenario decodes a scenario document, retrying once through a
// canonical re-emit when the typed decode fails. If the retry also fails,
// the original error is returned.
func ParseScenario(data []byte) (*ScenarioDoc, error) {
	doc, firstErr := decodeScenario(data)
	if firstErr == nil {
		return doc, nil
	}

	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", firstErr)
	}
	normalized, err := yaml.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", firstErr)
	}

	doc, retryErr := decodeScenario(normalized)
	if retryErr != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", firstErr)
	}
	return doc, nil
}

func decodeScenario(data []byte) (*ScenarioDoc, error) {
	var doc ScenarioDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if err := validateScenarioDoc(&doc); err != nil {
		return nil, err
	}
	if doc.Priority == "" {
		doc.Priority = scenario.PriorityMedium
	}
	if doc.Variables == nil {
		doc.Variables = map[string]interface{}{}
	}
	return &doc, nil
}

// MarshalScenario renders a scenario document; absent optional fields are
// omitted, so a parse/serialize/parse round-trip is structurally stable.
func MarshalScenario(doc *ScenarioDoc) ([]byte, error) {
	return yaml.Marshal(doc)
}

// ParseProject decodes a project bundle with the same tolerant retry.
func ParseProject(data []byte) (*ProjectDoc, error) {
	var doc ProjectDoc
	firstErr := yaml.Unmarshal(data, &doc)
	if firstErr == nil && doc.ProjectName != "" {
		return &doc, nil
	}

	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err == nil {
		if normalized, err := yaml.Marshal(generic); err == nil {
			var retry ProjectDoc
			if err := yaml.Unmarshal(normalized, &retry); err == nil && retry.ProjectName != "" {
				return &retry, nil
			}
		}
	}

	if firstErr != nil {
		return nil, fmt.Errorf("parsing project YAML: %w", firstErr)
	}
	return nil, fmt.Errorf("parsing project YAML: missing projectName")
}

// MarshalProject renders a project bundle stamped with an RFC 3339 export
// time.
func MarshalProject(projectName, baseURL string, scenarios []ScenarioDoc) ([]byte, error) {
	doc := ProjectDoc{
		ProjectName: projectName,
		BaseURL:     baseURL,
		ExportedAt:  time.Now().UTC().Format(time.RFC3339),
		Scenarios:   scenarios,
	}
	return yaml.Marshal(&doc)
}

// ToScenario converts a document into a scenario plus its steps, assigning
// fresh identities and dense step ordering.
func ToScenario(doc *ScenarioDoc, projectID string) (*scenario.Scenario, []scenario.Step, error) {
	now := time.Now().Unix()
	sc := &scenario.Scenario{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Name:        doc.Name,
		Description: doc.Description,
		Priority:    doc.Priority,
		Variables:   doc.Variables,
		PreScript:   doc.PreScript,
		PostScript:  doc.PostScript,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if sc.Priority == "" {
		sc.Priority = scenario.PriorityMedium
	}
	if sc.Variables == nil {
		sc.Variables = map[string]interface{}{}
	}

	steps := make([]scenario.Step, 0, len(doc.Steps))
	for order, stepDoc := range doc.Steps {
		step, err := toStep(stepDoc, sc.ID, order)
		if err != nil {
			return nil, nil, fmt.Errorf("step %q: %w", stepDoc.Name, err)
		}
		steps = append(steps, step)
	}

	return sc, steps, nil
}

func toStep(doc StepDoc, scenarioID string, order int) (scenario.Step, error) {
	var (
		stepType scenario.StepType
		config   interface{}
	)

	switch {
	case doc.Request != nil:
		stepType = scenario.StepRequest
		config = scenario.RequestConfig{
			Method:     doc.Request.Method,
			URL:        doc.Request.URL,
			Headers:    doc.Request.Headers,
			Params:     doc.Request.Params,
			Body:       doc.Request.Body,
			Extract:    toExtractors(doc.Extract),
			Assertions: toAssertions(doc.Assertions),
			CSVItems:   toCSVConfig(doc.CSVItems),
		}
	case doc.Delay != nil:
		stepType = scenario.StepDelay
		config = scenario.DelayConfig{DurationMs: doc.Delay.Duration}
	case doc.Script != nil:
		stepType = scenario.StepScript
		config = scenario.ScriptConfig{Code: doc.Script.Code}
	case doc.Condition != nil:
		stepType = scenario.StepCondition
		config = scenario.ConditionConfig{
			Condition:  doc.Condition.Condition,
			TrueSteps:  doc.Condition.TrueSteps,
			FalseSteps: doc.Condition.FalseSteps,
		}
	case doc.Loop != nil:
		stepType = scenario.StepLoop
		config = scenario.LoopConfig{
			LoopType:         doc.Loop.Type,
			Count:            doc.Loop.Count,
			IteratorVariable: doc.Loop.IteratorVariable,
			DataSource:       doc.Loop.DataSource,
			Steps:            doc.Loop.Steps,
		}
	default:
		return scenario.Step{}, fmt.Errorf("no step config block present")
	}

	raw, err := json.Marshal(config)
	if err != nil {
		return scenario.Step{}, fmt.Errorf("encoding step config: %w", err)
	}

	enabled := true
	if doc.Enabled != nil {
		enabled = *doc.Enabled
	}

	return scenario.Step{
		ID:         uuid.NewString(),
		ScenarioID: scenarioID,
		StepOrder:  order,
		StepType:   stepType,
		Name:       doc.Name,
		Config:     raw,
		Enabled:    enabled,
	}, nil
}

// FromScenario converts a scenario plus steps back into its document shape.
func FromScenario(sc *scenario.Scenario, steps []scenario.Step, baseURL string) (*ScenarioDoc, error) {
	doc := &ScenarioDoc{
		Name:        sc.Name,
		Description: sc.Description,
		Priority:    sc.Priority,
		BaseURL:     baseURL,
		Variables:   sc.Variables,
		PreScript:   sc.PreScript,
		PostScript:  sc.PostScript,
	}
	if len(doc.Variables) == 0 {
		doc.Variables = nil
	}

	for _, step := range steps {
		stepDoc, err := fromStep(step)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name, err)
		}
		doc.Steps = append(doc.Steps, stepDoc)
	}

	return doc, nil
}

func fromStep(step scenario.Step) (StepDoc, error) {
	doc := StepDoc{Name: step.Name}
	if !step.Enabled {
		enabled := false
		doc.Enabled = &enabled
	}

	switch step.StepType {
	case scenario.StepRequest:
		var cfg scenario.RequestConfig
		if err := json.Unmarshal(step.Config, &cfg); err != nil {
			return doc, fmt.Errorf("decoding request config: %w", err)
		}
		doc.Request = &RequestDoc{
			Method:  cfg.Method,
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Params:  cfg.Params,
			Body:    cfg.Body,
		}
		doc.Extract = fromExtractors(cfg.Extract)
		doc.Assertions = fromAssertions(cfg.Assertions)
		if cfg.CSVItems != nil {
			doc.CSVItems = &CSVDoc{
				File:      cfg.CSVItems.FileName,
				Delimiter: cfg.CSVItems.Delimiter,
				Quote:     cfg.CSVItems.QuoteChar,
			}
		}
	case scenario.StepDelay:
		var cfg scenario.DelayConfig
		if err := json.Unmarshal(step.Config, &cfg); err != nil {
			return doc, fmt.Errorf("decoding delay config: %w", err)
		}
		doc.Delay = &DelayDoc{Duration: cfg.DurationMs}
	case scenario.StepScript:
		var cfg scenario.ScriptConfig
		if err := json.Unmarshal(step.Config, &cfg); err != nil {
			return doc, fmt.Errorf("decoding script config: %w", err)
		}
		doc.Script = &ScriptDoc{Code: cfg.Code}
	case scenario.StepCondition:
		var cfg scenario.ConditionConfig
		if err := json.Unmarshal(step.Config, &cfg); err != nil {
			return doc, fmt.Errorf("decoding condition config: %w", err)
		}
		doc.Condition = &ConditionDoc{
			Condition:  cfg.Condition,
			TrueSteps:  cfg.TrueSteps,
			FalseSteps: cfg.FalseSteps,
		}
	case scenario.StepLoop:
		var cfg scenario.LoopConfig
		if err := json.Unmarshal(step.Config, &cfg); err != nil {
			return doc, fmt.Errorf("decoding loop config: %w", err)
		}
		doc.Loop = &LoopDoc{
			Type:             cfg.LoopType,
			Count:            cfg.Count,
			IteratorVariable: cfg.IteratorVariable,
			DataSource:       cfg.DataSource,
			Steps:            cfg.Steps,
		}
	default:
		return doc, fmt.Errorf("unknown step type: %s", step.StepType)
	}

	return doc, nil
}

func toExtractors(docs []ExtractorDoc) []scenario.Extractor {
	if len(docs) == 0 {
		return nil
	}
	extractors := make([]scenario.Extractor, len(docs))
	for i, doc := range docs {
		extractors[i] = scenario.Extractor{
			Name:         doc.Name,
			Source:       doc.Source,
			Path:         doc.Path,
			DefaultValue: doc.DefaultValue,
		}
	}
	return extractors
}

func fromExtractors(extractors []scenario.Extractor) []ExtractorDoc {
	if len(extractors) == 0 {
		return nil
	}
	docs := make([]ExtractorDoc, len(extractors))
	for i, e := range extractors {
		docs[i] = ExtractorDoc{Name: e.Name, Source: e.Source, Path: e.Path, DefaultValue: e.DefaultValue}
	}
	return docs
}

func toAssertions(docs []AssertionDoc) []scenario.Assertion {
	if len(docs) == 0 {
		return nil
	}
	assertions := make([]scenario.Assertion, len(docs))
	for i, doc := range docs {
		assertions[i] = scenario.Assertion{
			Name:     doc.Name,
			Source:   doc.Source,
			Path:     doc.Path,
			Operator: doc.Operator,
			Expected: doc.Expected,
		}
	}
	return assertions
}

func fromAssertions(assertions []scenario.Assertion) []AssertionDoc {
	if len(assertions) == 0 {
		return nil
	}
	docs := make([]AssertionDoc, len(assertions))
	for i, a := range assertions {
		docs[i] = AssertionDoc{Name: a.Name, Source: a.Source, Path: a.Path, Operator: a.Operator, Expected: a.Expected}
	}
	return docs
}

func toCSVConfig(doc *CSVDoc) *scenario.CSVConfig {
	if doc == nil {
		return nil
	}
	return &scenario.CSVConfig{FileName: doc.File, Delimiter: doc.Delimiter, QuoteChar: doc.Quote}
}
