package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"mosim.ai/internal/persistence/indexdb"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Query the run index",
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var indexRunsCmd = &cobra.Command{
	Use:   "runs <cosim.sqlite>",
	Short: "List indexed runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := indexdb.OpenReader(args[0])
		if err != nil {
			return err
		}
		defer db.Close()
		runs, err := indexdb.ListRuns(cmd.Context(), db)
		if err != nil {
			return err
		}
		return printJSON(cmd, runs)
	},
}

var indexRecordsCmd = &cobra.Command{
	Use:   "records <cosim.sqlite>",
	Short: "List saved records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := indexdb.OpenReader(args[0])
		if err != nil {
			return err
		}
		defer db.Close()
		recs, err := indexdb.ListRecords(cmd.Context(), db)
		if err != nil {
			return err
		}
		return printJSON(cmd, recs)
	},
}

var indexInstructionCmd = &cobra.Command{
	Use:   "instruction <cosim.sqlite> <run-id> <instruction-id>",
	Short: "Show the frames at which an instruction raised events",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := indexdb.OpenReader(args[0])
		if err != nil {
			return err
		}
		defer db.Close()
		frames, err := indexdb.InstructionFrames(cmd.Context(), db, args[1], args[2])
		if err != nil {
			return err
		}
		if len(frames) == 0 {
			return fmt.Errorf("no events for %s in run %s", args[2], args[1])
		}
		keys := make([]uint64, 0, len(frames))
		for f := range frames {
			keys = append(keys, f)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, f := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "frame %d: %v\n", f, frames[f])
		}
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexRunsCmd, indexRecordsCmd, indexInstructionCmd)
	rootCmd.AddCommand(indexCmd)
}
