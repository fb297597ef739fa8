// Package output renders run results for the developer CLI.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/phanngoc/lookapi/internal/performance"
	"github.com/phanngoc/lookapi/internal/scanner"
	"github.com/phanngoc/lookapi/internal/scenario"
)

// Formatter writes human-readable results. Colors are disabled when the
// writer is not a terminal or when explicitly requested.
type Formatter struct {
	w       io.Writer
	pass    *color.Color
	fail    *color.Color
	heading *color.Color
}

// NewFormatter creates a formatter over w.
func NewFormatter(w io.Writer, noColor bool) *Formatter {
	pass := color.New(color.FgGreen)
	fail := color.New(color.FgRed, color.Bold)
	heading := color.New(color.Bold)

	if noColor || !writerIsTerminal(w) {
		pass.DisableColor()
		fail.DisableColor()
		heading.DisableColor()
	}

	return &Formatter{w: w, pass: pass, fail: fail, heading: heading}
}

func writerIsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd()))
}

func (f *Formatter) statusWord(passed bool, word string) string {
	if passed {
		return f.pass.Sprint(word)
	}
	return f.fail.Sprint(word)
}

// PrintScenarioRun renders a scenario run with per-step outcomes.
func (f *Formatter) PrintScenarioRun(run *scenario.Run) {
	f.heading.Fprintf(f.w, "Scenario run %s\n", run.ID)
	for _, result := range run.Results {
		marker := "✓"
		passed := result.Status == scenario.StepPassed
		if !passed {
			marker = "✗"
		}
		fmt.Fprintf(f.w, "  %s %s [%s] %dms\n",
			f.statusWord(passed, marker), result.Name, result.Status, result.DurationMs)

		for _, assertion := range result.Assertions {
			if assertion.Passed != nil && !*assertion.Passed {
				fmt.Fprintf(f.w, "      assertion %q: %s\n", assertion.Name, assertion.Error)
			}
		}
		if result.Error != "" {
			fmt.Fprintf(f.w, "      error: %s\n", result.Error)
		}
	}

	fmt.Fprintf(f.w, "\n%s: %d passed, %d failed, %d skipped (%dms)\n",
		f.statusWord(run.Status == scenario.RunPassed, strings.ToUpper(string(run.Status))),
		run.PassedSteps, run.FailedSteps, run.SkippedSteps, run.DurationMs)
}

// PrintPerformanceRun renders the aggregates and threshold results of a
// load run.
func (f *Formatter) PrintPerformanceRun(run *performance.Run) {
	f.heading.Fprintf(f.w, "Performance run %s\n", run.ID)

	if metrics := run.Metrics; metrics != nil {
		fmt.Fprintf(f.w, "  requests        %d (%d failed, %.2f%% errors)\n",
			metrics.TotalRequests, metrics.FailedRequests, metrics.ErrorRate*100)
		fmt.Fprintf(f.w, "  rps             %.2f\n", metrics.RequestsPerSecond)
		fmt.Fprintf(f.w, "  duration (ms)   min=%d avg=%.1f med=%d p90=%d p95=%d p99=%d max=%d\n",
			metrics.DurationMin, metrics.DurationAvg, metrics.DurationMed,
			metrics.DurationP90, metrics.DurationP95, metrics.DurationP99, metrics.DurationMax)
		fmt.Fprintf(f.w, "  iterations      %d\n", metrics.IterationsCompleted)
		fmt.Fprintf(f.w, "  max VUs         %d\n", run.MaxVUsReached)
	}

	for _, result := range run.ThresholdResults {
		fmt.Fprintf(f.w, "  %s %s: %s (%s)\n",
			f.statusWord(result.Passed, "✓"),
			result.Threshold.Metric, result.Threshold.Condition, result.Message)
	}

	fmt.Fprintf(f.w, "\n%s (%dms)\n",
		f.statusWord(run.Status == performance.RunPassed, strings.ToUpper(string(run.Status))),
		run.DurationMs)
}

// PrintEndpoints renders a scanned endpoint table.
func (f *Formatter) PrintEndpoints(result *scanner.ScanResult) {
	f.heading.Fprintf(f.w, "Framework: %s (%s)\n", result.FrameworkInfo.Framework, result.FrameworkInfo.FrameworkType)
	for _, endpoint := range result.Endpoints {
		auth := ""
		if endpoint.Authentication.Required {
			auth = " [auth]"
		}
		fmt.Fprintf(f.w, "  %-7s %s%s\n", endpoint.Method, endpoint.Path, auth)
		for _, param := range endpoint.Parameters {
			required := ""
			if param.Required {
				required = " required"
			}
			fmt.Fprintf(f.w, "          %s (%s, %s%s)\n", param.Name, param.ParamType, param.Source, required)
		}
	}
	fmt.Fprintf(f.w, "\n%d endpoints\n", len(result.Endpoints))
}
