package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mosim.ai/internal/cosim"
	"mosim.ai/internal/mmi"
	"mosim.ai/internal/mmu"
	"mosim.ai/internal/mmu/builtin"
	"mosim.ai/internal/persistence/record"
	"mosim.ai/internal/protocol"
	"mosim.ai/internal/scene"
	"mosim.ai/internal/sim"
	"mosim.ai/internal/transport/rpc"
)

func newControl(t *testing.T) (*control, *rpc.Client) {
	t.Helper()
	desc := mmi.DefaultDescription("avatar-1")
	walk := builtin.NewWalk(mmu.Env{})
	if res := walk.Initialize(desc, nil); !res.Successful {
		t.Fatalf("initialize: %v", res.LogData)
	}
	co := cosim.New(cosim.Options{
		Units:       []cosim.Unit{cosim.LocalUnit(builtin.WalkDescription(), walk)},
		Description: desc,
	})
	co.StartRecording()
	rt, err := sim.New(sim.Config{TickRateHz: 200, Description: desc}, co, scene.NewStore(scene.Options{}), nil)
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = rt.Run(ctx) }()

	ctl := &control{rt: rt, recordDir: t.TempDir(), log: log.New(io.Discard, "", 0)}
	srv := rpc.NewServer(nil)
	ctl.register(srv)
	mux := http.NewServeMux()
	mux.HandleFunc(protocol.CoSimPath, srv.Handler())
	hs := httptest.NewServer(mux)

	c, err := rpc.Dial(context.Background(), "ws"+strings.TrimPrefix(hs.URL, "http")+protocol.CoSimPath, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
		srv.Close(time.Second)
		hs.Close()
		cancel()
		<-rt.Done()
	})
	return ctl, c
}

func TestControlAssignAndTasks(t *testing.T) {
	_, c := newControl(t)
	ctx := context.Background()

	in := mmi.Instruction{ID: "w1", MotionType: builtin.WalkMotionType, Properties: map[string]string{"TargetPosition": "50,0,0"}}
	var res mmi.BoolResponse
	if err := c.Call(ctx, protocol.CoSimAssignInstruction, instructionParams{Instruction: in}, &res); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !res.Successful {
		t.Fatalf("assign rejected: %v", res.LogData)
	}

	var tasks []cosim.Task
	if err := c.Call(ctx, protocol.CoSimGetTasks, nil, &tasks); err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].InstructionID != "w1" {
		t.Fatalf("tasks: %+v", tasks)
	}

	if err := c.Call(ctx, protocol.CoSimAbort, abortParams{InstructionID: "w1"}, &res); err != nil || !res.Successful {
		t.Fatalf("abort: %v %+v", err, res)
	}
	if err := c.Call(ctx, protocol.CoSimAbort, abortParams{InstructionID: "w1"}, &res); err != nil || res.Successful {
		t.Fatalf("second abort should fail: %v %+v", err, res)
	}
}

func TestControlPriorities(t *testing.T) {
	_, c := newControl(t)
	ctx := context.Background()

	var res mmi.BoolResponse
	if err := c.Call(ctx, protocol.CoSimSetPriority, priorityParams{MotionType: builtin.ReachMotionType, Weight: 2.5}, &res); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got map[string]float64
	if err := c.Call(ctx, protocol.CoSimGetPriorities, nil, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got[builtin.ReachMotionType] != 2.5 {
		t.Fatalf("priorities: %v", got)
	}

	err := c.Call(ctx, protocol.CoSimSetPriority, priorityParams{MotionType: builtin.ReachMotionType, Weight: -1}, &res)
	if rpc.CodeOf(err) != protocol.ErrBadParams {
		t.Fatalf("negative weight: %v", err)
	}
}

func TestControlSaveRecord(t *testing.T) {
	ctl, c := newControl(t)
	ctx := context.Background()

	deadline := time.Now().Add(2 * time.Second)
	for ctl.rt.CurrentFrame() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("runtime did not tick")
		}
		time.Sleep(5 * time.Millisecond)
	}

	var saved savedRecord
	if err := c.Call(ctx, protocol.CoSimSaveRecord, nil, &saved); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, h, err := record.Read(saved.Path)
	if err != nil {
		t.Fatalf("read %s: %v", saved.Path, err)
	}
	if h.AvatarID != "avatar-1" || len(rec.Frames) != h.Frames || h.Frames < 3 {
		t.Fatalf("header: %+v frames=%d", h, len(rec.Frames))
	}
	if err := record.Verify(rec); err != nil {
		t.Fatalf("verify: %v", err)
	}
}
