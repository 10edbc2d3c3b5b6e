package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"traceview-mcp/internal/formats"
)

// starpuCmd represents the starpu command
var starpuCmd = &cobra.Command{
	Use:   "starpu <tasks.csv> <output.csv>",
	Short: "Convert a StarPU tasks export",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := convertStarPU(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", n, args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(starpuCmd)
}

func convertStarPU(inPath, outPath string) (n int, err error) {
	in, err := os.Open(inPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", inPath, err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(out))

	return formats.ConvertStarPU(inPath, in, out)
}
