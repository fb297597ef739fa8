package yamlio

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/phanngoc/lookapi/internal/scanner"
)

// Prompt assembly limits: endpoint summaries are capped so the prompt stays
// inside a tool-friendly size.
const (
	maxPromptEndpoints = 20
	maxPromptResponses = 3
)

// BuildScenarioPrompt assembles an assistant prompt from endpoint
// summaries. Success-status responses are preferred when trimming.
func BuildScenarioPrompt(projectName string, endpoints []scanner.Endpoint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate API test scenarios in YAML for project %q.\n", projectName)
	b.WriteString("Each scenario needs: name, priority, variables, steps (request steps with method, url, assertions).\n")
	b.WriteString("Use {{baseUrl}} as the URL prefix and extract/reuse auth tokens where endpoints require them.\n\n")
	b.WriteString("Endpoints:\n")

	listed := endpoints
	if len(listed) > maxPromptEndpoints {
		listed = listed[:maxPromptEndpoints]
	}

	for _, ep := range listed {
		fmt.Fprintf(&b, "- %s %s", ep.Method, ep.Path)
		if ep.Authentication.Required {
			b.WriteString(" (auth required)")
		}
		b.WriteString("\n")

		for _, param := range ep.Parameters {
			fmt.Fprintf(&b, "    param %s (%s, %s", param.Name, param.ParamType, param.Source)
			if param.Required {
				b.WriteString(", required")
			}
			b.WriteString(")\n")
		}

		for _, resp := range preferredResponses(ep.Responses) {
			fmt.Fprintf(&b, "    response %d", resp.StatusCode)
			if resp.Description != "" {
				fmt.Fprintf(&b, ": %s", resp.Description)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

// preferredResponses keeps at most maxPromptResponses per endpoint,
// success statuses first.
func preferredResponses(responses []scanner.Response) []scanner.Response {
	if len(responses) <= maxPromptResponses {
		return responses
	}

	picked := make([]scanner.Response, 0, maxPromptResponses)
	for _, resp := range responses {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			picked = append(picked, resp)
			if len(picked) == maxPromptResponses {
				return picked
			}
		}
	}
	for _, resp := range responses {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			picked = append(picked, resp)
			if len(picked) == maxPromptResponses {
				break
			}
		}
	}
	return picked
}

// RunAssistant invokes an external CLI tool in the project directory and
// returns its raw output. The tool itself is out of the engine's hands;
// this path is best-effort.
func RunAssistant(ctx context.Context, tool, projectDir, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, tool, "-p", prompt)
	cmd.Dir = projectDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("assistant tool failed: %w", err)
	}
	return string(output), nil
}

var (
	yamlFenceRe = regexp.MustCompile("(?s)```ya?ml\\s*\\n(.*?)```")
	anyFenceRe  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n(.*?)```")
)

// ExtractYAML pulls a YAML document out of assistant output using four
// strategies in order: a yaml-tagged fence, any fence containing "name:",
// the text from the first "name:" line until prose resumes, and finally
// the whole output when it already looks like a scenario. Returns false
// when none apply; nothing is fabricated.
func ExtractYAML(output string) (string, bool) {
	if match := yamlFenceRe.FindStringSubmatch(output); match != nil {
		return strings.TrimSpace(match[1]), true
	}

	for _, match := range anyFenceRe.FindAllStringSubmatch(output, -1) {
		if strings.Contains(match[1], "name:") {
			return strings.TrimSpace(match[1]), true
		}
	}

	if doc, ok := extractFromFirstNameLine(output); ok {
		return doc, true
	}

	if strings.Contains(output, "name:") && strings.Contains(output, "steps:") {
		return strings.TrimSpace(output), true
	}

	return "", false
}

// extractFromFirstNameLine collects lines starting at the first "name:"
// line and stops when a paragraph of prose (a blank line followed by an
// unindented line without a colon) begins.
func extractFromFirstNameLine(output string) (string, bool) {
	lines := strings.Split(output, "\n")
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "name:") {
			start = i
			break
		}
	}
	if start == -1 {
		return "", false
	}

	collected := []string{}
	blankPending := false
	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blankPending = true
			collected = append(collected, line)
			continue
		}
		isProse := blankPending && !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "-") && !strings.Contains(trimmed, ":")
		if isProse {
			break
		}
		blankPending = false
		collected = append(collected, line)
	}

	doc := strings.TrimSpace(strings.Join(collected, "\n"))
	if doc == "" {
		return "", false
	}
	return doc, true
}
