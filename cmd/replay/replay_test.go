package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mosim.ai/internal/config"
	"mosim.ai/internal/cosim"
	"mosim.ai/internal/mmi"
	"mosim.ai/internal/mmu/builtin"
	persistlog "mosim.ai/internal/persistence/log"
	"mosim.ai/internal/persistence/record"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRecordVerify(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	rec := &cosim.Record{AvatarID: desc.AvatarID, Description: desc, StartedAt: time.Now().UTC()}
	rec.Instructions = []mmi.Instruction{{ID: "w", MotionType: builtin.WalkMotionType, StartCondition: "idle:end"}}
	for i := 0; i < 4; i++ {
		rec.Frames = append(rec.Frames, cosim.Frame{
			FrameNumber: uint64(i),
			Time:        float64(i) / 30,
			Merged:      mmi.SimulationResult{Posture: desc.ZeroValues()},
		})
	}
	path := filepath.Join(t.TempDir(), "a.rec.zst")
	if err := record.Write(path, rec); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := run(t, "record", "verify", path)
	if err != nil || !strings.Contains(out, "ok frames=4") {
		t.Fatalf("verify: %v\n%s", err, out)
	}
	out, err = run(t, "record", "inspect", "-n", "2", path)
	if err != nil || !strings.Contains(out, "... 2 more") {
		t.Fatalf("inspect: %v\n%s", err, out)
	}
	if !strings.Contains(out, `instruction w `+builtin.WalkMotionType+` start="idle:end"`) {
		t.Fatalf("inspect lost the instruction list:\n%s", out)
	}
}

func TestFramesReplayMatchesLoggedRun(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	rt, err := replayRuntime(cfg, "avatar-1")
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	frames := persistlog.NewFrameLogger(dir)
	rt.SetFrameLogger(frames)

	walk := mmi.Instruction{ID: "w", MotionType: builtin.WalkMotionType, Properties: map[string]string{"TargetPosition": "0.5,0,0"}}
	rt.StepOnce(context.Background(), 1.0/30, []mmi.Instruction{walk}, nil)
	for i := 0; i < 20; i++ {
		rt.StepOnce(context.Background(), 1.0/30, nil, nil)
	}
	if err := frames.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	out, err := run(t, "frames", "--config", "", dir)
	if err != nil || !strings.Contains(out, "checked=21") {
		t.Fatalf("frames: %v\n%s", err, out)
	}
}
