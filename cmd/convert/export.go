package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"traceview-mcp/internal/formats"
	"traceview-mcp/internal/trace"
)

var exportWorkers int

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <trace> <output.csv>",
	Short: "Read any supported trace, resolve depths and write it as canonical CSV",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := export(args[0], args[1], exportWorkers)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", n, args[1])
		return nil
	},
}

func init() {
	exportCmd.Flags().IntVar(&exportWorkers, "workers", 0, "streams resolved in parallel (0 = GOMAXPROCS)")
	rootCmd.AddCommand(exportCmd)
}

func export(inPath, outPath string, workers int) (n int, err error) {
	table, _, err := formats.NewDefaultRegistry(zap.NewNop()).Read(inPath)
	if err != nil {
		return 0, err
	}
	table, err = trace.ComputeDepth(table, workers)
	if err != nil {
		return 0, fmt.Errorf("failed to compute depth for %s: %w", inPath, err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(out))

	if err := formats.WriteTabular(out, table); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	return len(table), nil
}
