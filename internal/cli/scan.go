package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phanngoc/lookapi/internal/output"
	"github.com/phanngoc/lookapi/internal/scanner"
)

var scanJSON bool

var scanCmd = &cobra.Command{
	Use:   "scan <project-path>",
	Short: "Scan a source tree for HTTP endpoints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		result, err := scanner.New(args[0], logger).Scan()
		if err != nil {
			return err
		}

		if scanJSON {
			encoded, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding scan result: %w", err)
			}
			fmt.Fprintln(os.Stdout, string(encoded))
			return nil
		}

		output.NewFormatter(os.Stdout, flagNoColor).PrintEndpoints(result)
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "emit the scan result as JSON")
}
