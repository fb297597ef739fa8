package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phanngoc/lookapi/internal/output"
	"github.com/phanngoc/lookapi/internal/scenario"
	"github.com/phanngoc/lookapi/internal/yamlio"
)

var runBaseURL string

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Run a scenario from a YAML file",
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

		baseURL := runBaseURL
		if baseURL == "" {
			baseURL = doc.BaseURL
		}

		executor := scenario.NewExecutor(
			scenario.WithBaseURL(baseURL),
			scenario.WithLogger(logger),
		)
		run := executor.Execute(cmd.Context(), sc, steps, nil)

		output.NewFormatter(os.Stdout, flagNoColor).PrintScenarioRun(run)
		if run.Status != scenario.RunPassed {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runBaseURL, "base-url", "", "base URL for relative request URLs (overrides the document)")
}
