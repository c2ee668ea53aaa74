package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"mosim.ai/internal/persistence/record"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Work with record files",
}

var recordInspectCmd = &cobra.Command{
	Use:   "inspect <path>",
	Short: "Print a record's header and a per-frame summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("frames")
		rec, h, err := record.Read(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "record v%d avatar=%s frames=%d time=%.3f started=%s\n",
			h.Version, h.AvatarID, h.Frames, h.Time, h.StartedAt.Format("2006-01-02T15:04:05Z07:00"))
		for _, in := range rec.Instructions {
			fmt.Fprintf(out, "instruction %s %s start=%q end=%q\n", in.ID, in.MotionType, in.StartCondition, in.EndCondition)
		}
		for i, f := range rec.Frames {
			if limit >= 0 && i >= limit {
				fmt.Fprintf(out, "... %d more\n", len(rec.Frames)-i)
				break
			}
			mmus := make([]string, 0, len(f.Results))
			for _, r := range f.Results {
				mmus = append(mmus, r.MMUID+"/"+r.InstructionID)
			}
			sort.Strings(mmus)
			fmt.Fprintf(out, "frame %d t=%.3f results=%v solvers=%d events=%d\n",
				f.FrameNumber, f.Time, mmus, len(f.SolverResults), len(f.Merged.Events))
		}
		return nil
	},
}

var recordVerifyCmd = &cobra.Command{
	Use:   "verify <path>...",
	Short: "Check frame numbering, time order and posture sizes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			rec, h, err := record.Read(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err := record.Verify(rec); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok frames=%d\n", path, h.Frames)
		}
		return nil
	},
}

func init() {
	recordInspectCmd.Flags().IntP("frames", "n", 20, "frames to list (-1 for all)")
	recordCmd.AddCommand(recordInspectCmd, recordVerifyCmd)
	rootCmd.AddCommand(recordCmd)
}
