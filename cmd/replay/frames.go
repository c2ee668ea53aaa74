package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"mosim.ai/internal/config"
	"mosim.ai/internal/cosim"
	"mosim.ai/internal/mmi"
	"mosim.ai/internal/mmu"
	"mosim.ai/internal/mmu/builtin"
	persistlog "mosim.ai/internal/persistence/log"
	"mosim.ai/internal/scene"
	"mosim.ai/internal/sim"
)

var framesCmd = &cobra.Command{
	Use:   "frames <avatar-dir>",
	Short: "Re-run a frame log against the bundled MMUs and compare posture digests",
	Long: `frames replays frames-*.jsonl.zst under <avatar-dir>/frames with in-process ` +
		`copies of the bundled MMUs. Runs that used remote MMUs cannot be replayed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		from, _ := cmd.Flags().GetUint64("from")
		to, _ := cmd.Flags().GetUint64("to")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		files, err := filepath.Glob(filepath.Join(args[0], "frames", "frames-*.jsonl.zst"))
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no frame logs under %s", args[0])
		}
		sort.Strings(files)

		var (
			rt      *sim.Runtime
			checked int
		)
		stop := errors.New("stop")
		for _, path := range files {
			err := persistlog.ReadJSONL(path, func(line []byte) error {
				var e sim.FrameLogEntry
				if err := json.Unmarshal(line, &e); err != nil {
					return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
				}
				if rt == nil {
					if e.Frame != 0 {
						return fmt.Errorf("%s: log starts at frame %d, need frame 0", filepath.Base(path), e.Frame)
					}
					r, err := replayRuntime(cfg, e.AvatarID)
					if err != nil {
						return err
					}
					rt = r
				}
				if to != 0 && e.Frame > to {
					return stop
				}
				if e.Frame != rt.CurrentFrame() {
					return fmt.Errorf("frame mismatch: want=%d got=%d (file=%s)", rt.CurrentFrame(), e.Frame, filepath.Base(path))
				}
				got, _ := rt.StepOnce(context.Background(), e.DT, e.Assigned, e.Aborted)
				if e.Frame >= from {
					checked++
					if got.Digest != e.Digest {
						return fmt.Errorf("digest mismatch at frame %d: got=%s want=%s", e.Frame, got.Digest, e.Digest)
					}
				}
				return nil
			})
			if errors.Is(err, stop) {
				break
			}
			if err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "replay ok: checked=%d frames (from frame %d)\n", checked, from)
		return nil
	},
}

// replayRuntime wires every bundled MMU in-process, with the priorities from cfg.
func replayRuntime(cfg config.Config, avatarID string) (*sim.Runtime, error) {
	desc := mmi.DefaultDescription(avatarID)
	cat := builtin.Catalog()
	store := scene.NewStore(scene.Options{})
	var units []cosim.Unit
	for _, d := range cat.Descriptions() {
		_, f, err := cat.Resolve(d.ID)
		if err != nil {
			return nil, err
		}
		m := f.New(mmu.Env{SessionID: "replay", Scene: store})
		if res := m.Initialize(desc, cfg.Props); !res.Successful {
			return nil, fmt.Errorf("initialize %s: %v", d.ID, res.LogData)
		}
		units = append(units, cosim.LocalUnit(d, m))
	}
	co := cosim.New(cosim.Options{
		Units:       units,
		Priorities:  cfg.CoSim.Priorities,
		Solvers:     []cosim.Solver{&cosim.LocalPostureSolver{Description: desc}},
		Description: desc,
		LogTimes:    false,
	})
	return sim.New(sim.Config{TickRateHz: cfg.TickRateHz, Description: desc, AvatarName: cfg.AvatarName}, co, store, nil)
}

func init() {
	framesCmd.Flags().String("config", "./configs/cosim.yaml", "cosim.yaml used by the recorded run")
	framesCmd.Flags().Uint64("from", 0, "first frame to compare (inclusive)")
	framesCmd.Flags().Uint64("to", 0, "last frame to replay (inclusive, 0 for all)")
	rootCmd.AddCommand(framesCmd)
}
