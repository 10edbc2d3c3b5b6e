package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert trace files into the canonical tabular schema",
	Long: `convert rewrites traces produced by other tools into the canonical
Thread,Function,Start,Finish,Duration,Depth CSV read by the traceview server.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
