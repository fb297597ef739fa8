package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phanngoc/lookapi/internal/yamlio"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt <scenario.yaml>",
	Short: "Parse a scenario file and re-emit it in canonical form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading scenario file: %w", err)
		}

		doc, err := yamlio.ParseScenario(data)
		if err != nil {
			return err
		}
		canonical, err := yamlio.MarshalScenario(doc)
		if err != nil {
			return err
		}

		fmt.Fprint(os.Stdout, string(canonical))
		return nil
	},
}
