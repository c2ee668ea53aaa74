package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mosim-replay",
	Short: "Inspect and verify co-simulation records, frame logs and the run index.",
	Long: `mosim-replay reads what the co-simulation server leaves in its data directory: ` +
		`records (*.rec.zst), hourly frame logs (frames-*.jsonl.zst) and the sqlite index.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
