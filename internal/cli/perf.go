package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/phanngoc/lookapi/internal/output"
	"github.com/phanngoc/lookapi/internal/performance"
	"github.com/phanngoc/lookapi/internal/yamlio"
)

var (
	perfBaseURL    string
	perfVUs        int
	perfDuration   int64
	perfIterations int64
	perfType       string
	perfThresholds []string
)

var perfCmd = &cobra.Command{
	Use:   "perf <scenario.yaml>",
	Short: "Run a scenario under load",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading scenario file: %w", err)
		}
		doc, err := yamlio.ParseScenario(data)
		if err != nil {
			return err
		}
		sc, steps, err := yamlio.ToScenario(doc, "")
		if err != nil {
			return err
		}

		thresholds, err := parseThresholdFlags(perfThresholds)
		if err != nil {
			return err
		}

		config := performance.Config{
			ID:           uuid.NewString(),
			ScenarioID:   sc.ID,
			Name:         sc.Name,
			TestType:     performance.ParseTestType(perfType),
			VUs:          perfVUs,
			DurationSecs: perfDuration,
			Iterations:   perfIterations,
			Thresholds:   thresholds,
		}

		baseURL := perfBaseURL
		if baseURL == "" {
			baseURL = doc.BaseURL
		}

		executor := performance.NewExecutor(sc, steps, config,
			performance.WithBaseURL(baseURL),
			performance.WithLogger(logger),
		)
		run := executor.Run(cmd.Context(), nil)

		output.NewFormatter(os.Stdout, flagNoColor).PrintPerformanceRun(run)
		if run.Status != performance.RunPassed {
			os.Exit(1)
		}
		return nil
	},
}

// parseThresholdFlags splits "metric:condition" flags, e.g.
// "http_req_duration:p(95)<500".
func parseThresholdFlags(flags []string) ([]performance.Threshold, error) {
	thresholds := make([]performance.Threshold, 0, len(flags))
	for _, flag := range flags {
		metric, condition, ok := strings.Cut(flag, ":")
		if !ok || metric == "" || condition == "" {
			return nil, fmt.Errorf("invalid threshold %q, expected metric:condition", flag)
		}
		thresholds = append(thresholds, performance.Threshold{Metric: metric, Condition: condition})
	}
	return thresholds, nil
}

func init() {
	perfCmd.Flags().StringVar(&perfBaseURL, "base-url", "", "base URL for relative request URLs (overrides the document)")
	perfCmd.Flags().IntVar(&perfVUs, "vus", 1, "virtual users")
	perfCmd.Flags().Int64Var(&perfDuration, "duration", 30, "test duration in seconds")
	perfCmd.Flags().Int64Var(&perfIterations, "iterations", 0, "global iteration cap (0 = unlimited)")
	perfCmd.Flags().StringVar(&perfType, "type", "load", "test type: smoke, load, stress, spike, soak")
	perfCmd.Flags().StringArrayVar(&perfThresholds, "threshold", nil, "threshold as metric:condition, repeatable")
}
