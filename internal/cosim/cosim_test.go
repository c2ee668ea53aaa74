package cosim

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/mmu"
	"mosim.ai/internal/mmu/builtin"
)

const dt = 0.1

func initialState(desc mmi.AvatarDescription) mmi.SimulationState {
	zero := desc.ZeroValues()
	return mmi.SimulationState{Initial: zero.Clone(), Current: zero}
}

func slotValues(t *testing.T, desc mmi.AvatarDescription, p mmi.AvatarPostureValues, j mmi.JointType) []float64 {
	t.Helper()
	slot, ok := desc.Slot(j)
	if !ok {
		t.Fatalf("no slot for %s", j)
	}
	return p.PostureData[slot.Offset : slot.Offset+len(slot.Channels)]
}

func sameValues(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// fill sets every channel of the joint to v.
func fill(desc mmi.AvatarDescription, p mmi.AvatarPostureValues, j mmi.JointType, v float64) {
	slot, _ := desc.Slot(j)
	for i := range slot.Channels {
		p.PostureData[slot.Offset+i] = v
	}
}

func newBuiltin(t *testing.T, desc mmi.AvatarDescription, md mmi.MMUDescription, f func(mmu.Env) mmu.MotionModelUnit) Unit {
	t.Helper()
	m := f(mmu.Env{})
	if res := m.Initialize(desc, nil); !res.Successful {
		t.Fatalf("initialize %s: %v", md.ID, res.LogData)
	}
	return LocalUnit(md, m)
}

// fakeUnit returns a mock that writes v into the given joints and lists them.
func fakeUnit(ctrl *gomock.Controller, desc mmi.AvatarDescription, id, motionType string, v float64, joints ...mmi.JointType) *MockUnit {
	u := NewMockUnit(ctrl)
	u.EXPECT().ID().Return(id).AnyTimes()
	u.EXPECT().MotionType().Return(motionType).AnyTimes()
	u.EXPECT().AssignInstruction(gomock.Any(), gomock.Any(), gomock.Any()).Return(mmi.OK()).AnyTimes()
	u.EXPECT().Abort(gomock.Any(), gomock.Any()).Return(mmi.OK()).AnyTimes()
	u.EXPECT().DoStep(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ float64, state mmi.SimulationState) *mmi.SimulationResult {
			p := state.Current.Clone()
			for _, j := range joints {
				fill(desc, p, j, v)
			}
			p.PartialJointList = append([]mmi.JointType{}, joints...)
			return &mmi.SimulationResult{Posture: p}
		}).AnyTimes()
	return u
}

func assign(t *testing.T, c *CoSimulator, id, motionType string, state mmi.SimulationState) {
	t.Helper()
	res := c.AssignInstruction(context.Background(), mmi.Instruction{ID: id, MotionType: motionType}, state)
	if !res.Successful {
		t.Fatalf("assign %s: %v", id, res.LogData)
	}
}

func TestHigherPriorityWinsSharedJoint(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	walk := newBuiltin(t, desc, builtin.WalkDescription(), builtin.NewWalk)
	reach := newBuiltin(t, desc, builtin.ReachDescription(), builtin.NewReach)
	c := New(Options{
		Units:       []Unit{reach, walk},
		Description: desc,
		Priorities:  map[string]float64{builtin.WalkMotionType: 1.0, builtin.ReachMotionType: 0.5},
	})
	c.StartRecording()
	state := initialState(desc)

	walkIn := mmi.Instruction{ID: "walk", MotionType: builtin.WalkMotionType, Properties: map[string]string{"TargetPosition": "5,0,0"}}
	reachIn := mmi.Instruction{ID: "reach", MotionType: builtin.ReachMotionType, Properties: map[string]string{"Duration": "2"}}
	// Reach is assigned first so the win cannot come from assignment order.
	if res := c.AssignInstruction(context.Background(), reachIn, state); !res.Successful {
		t.Fatalf("assign reach: %v", res.LogData)
	}
	if res := c.AssignInstruction(context.Background(), walkIn, state); !res.Successful {
		t.Fatalf("assign walk: %v", res.LogData)
	}

	merged := c.DoStep(context.Background(), dt, state)
	rec := c.Record()
	if rec == nil || len(rec.Frames) != 1 {
		t.Fatalf("expected one recorded frame, got %+v", rec)
	}
	var walkRes, reachRes mmi.SimulationResult
	for _, r := range rec.Frames[0].Results {
		switch r.InstructionID {
		case "walk":
			walkRes = r.Result
		case "reach":
			reachRes = r.Result
		}
	}
	torso := slotValues(t, desc, merged.Posture, mmi.JointT12L1)
	if !sameValues(torso, slotValues(t, desc, walkRes.Posture, mmi.JointT12L1)) {
		t.Fatalf("torso should come from walk: merged=%v walk=%v", torso, slotValues(t, desc, walkRes.Posture, mmi.JointT12L1))
	}
	if sameValues(torso, slotValues(t, desc, reachRes.Posture, mmi.JointT12L1)) {
		t.Fatalf("walk and reach produced the same torso, test is not discriminating")
	}
	shoulder := slotValues(t, desc, merged.Posture, mmi.JointRightShoulder)
	if !sameValues(shoulder, slotValues(t, desc, reachRes.Posture, mmi.JointRightShoulder)) {
		t.Fatalf("shoulder should come from reach")
	}
	pelvis := slotValues(t, desc, merged.Posture, mmi.JointPelvisCentre)
	if !sameValues(pelvis, slotValues(t, desc, walkRes.Posture, mmi.JointPelvisCentre)) {
		t.Fatalf("pelvis should come from walk")
	}
	if got := c.FrameNumber(); got != 1 {
		t.Fatalf("frame number: got %d", got)
	}
}

func TestDisjointJointsIgnoreAssignmentOrder(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	run := func(order []string) mmi.SimulationResult {
		ctrl := gomock.NewController(t)
		a := fakeUnit(ctrl, desc, "a", "A", 0.25, mmi.JointHead)
		b := fakeUnit(ctrl, desc, "b", "B", 0.75, mmi.JointRightElbow)
		c := New(Options{Units: []Unit{a, b}, Description: desc})
		state := initialState(desc)
		for _, mt := range order {
			assign(t, c, "in-"+mt, mt, state)
		}
		return c.DoStep(context.Background(), dt, state)
	}
	ab := run([]string{"A", "B"})
	ba := run([]string{"B", "A"})
	if !sameValues(ab.Posture.PostureData, ba.Posture.PostureData) {
		t.Fatalf("merged posture depends on assignment order")
	}
	if got := slotValues(t, desc, ab.Posture, mmi.JointHead)[0]; got != 0.25 {
		t.Fatalf("head: got %v", got)
	}
	if got := slotValues(t, desc, ab.Posture, mmi.JointRightElbow)[0]; got != 0.75 {
		t.Fatalf("elbow: got %v", got)
	}
	if ab.Posture.PartialJointList != nil {
		t.Fatalf("merged posture should speak for every joint")
	}
}

func TestPriorityBeatsAssignmentOrder(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	for _, order := range [][]string{{"low", "high"}, {"high", "low"}} {
		ctrl := gomock.NewController(t)
		low := fakeUnit(ctrl, desc, "low", "low", 1, mmi.JointHead)
		high := fakeUnit(ctrl, desc, "high", "high", 2, mmi.JointHead)
		c := New(Options{Units: []Unit{low, high}, Description: desc, Priorities: map[string]float64{"low": 0.1, "high": 5}})
		state := initialState(desc)
		for _, mt := range order {
			assign(t, c, mt, mt, state)
		}
		got := c.DoStep(context.Background(), dt, state)
		if v := slotValues(t, desc, got.Posture, mmi.JointHead)[0]; v != 2 {
			t.Fatalf("order %v: head=%v, want the high priority value", order, v)
		}
	}
}

func TestEqualPriorityGoesToEarliestAssignment(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	ctrl := gomock.NewController(t)
	a := fakeUnit(ctrl, desc, "a", "A", 1, mmi.JointHead)
	b := fakeUnit(ctrl, desc, "b", "B", 2, mmi.JointHead)
	c := New(Options{Units: []Unit{a, b}, Description: desc})
	state := initialState(desc)
	assign(t, c, "first", "B", state)
	assign(t, c, "second", "A", state)

	got := c.DoStep(context.Background(), dt, state)
	if v := slotValues(t, desc, got.Posture, mmi.JointHead)[0]; v != 2 {
		t.Fatalf("head=%v, want the earliest assignment", v)
	}
}

func TestUntouchedJointsKeepCurrentPosture(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	ctrl := gomock.NewController(t)
	a := fakeUnit(ctrl, desc, "a", "A", 3, mmi.JointHead)
	c := New(Options{Units: []Unit{a}, Description: desc})
	state := initialState(desc)
	fill(desc, state.Current, mmi.JointLeftKnee, 0.5)
	state.Current.PartialJointList = []mmi.JointType{mmi.JointLeftKnee}
	assign(t, c, "x", "A", state)

	got := c.DoStep(context.Background(), dt, state)
	if v := slotValues(t, desc, got.Posture, mmi.JointLeftKnee)[0]; v != 0.5 {
		t.Fatalf("knee=%v, want the current value", v)
	}
	if got.Posture.PartialJointList != nil {
		t.Fatalf("partial list should be cleared: %v", got.Posture.PartialJointList)
	}
}

func TestResultWithoutPartialListInfluencesChangedJoints(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	ctrl := gomock.NewController(t)
	heavy := NewMockUnit(ctrl)
	heavy.EXPECT().ID().Return("heavy").AnyTimes()
	heavy.EXPECT().MotionType().Return("heavy").AnyTimes()
	heavy.EXPECT().AssignInstruction(gomock.Any(), gomock.Any(), gomock.Any()).Return(mmi.OK())
	heavy.EXPECT().DoStep(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ float64, state mmi.SimulationState) *mmi.SimulationResult {
			p := state.Current.Clone()
			fill(desc, p, mmi.JointHead, 9)
			return &mmi.SimulationResult{Posture: p}
		})
	light := fakeUnit(ctrl, desc, "light", "light", 4, mmi.JointHead, mmi.JointRightElbow)

	c := New(Options{Units: []Unit{heavy, light}, Description: desc, Priorities: map[string]float64{"heavy": 2, "light": 1}})
	state := initialState(desc)
	assign(t, c, "h", "heavy", state)
	assign(t, c, "l", "light", state)

	got := c.DoStep(context.Background(), dt, state)
	if v := slotValues(t, desc, got.Posture, mmi.JointHead)[0]; v != 9 {
		t.Fatalf("head=%v", v)
	}
	if v := slotValues(t, desc, got.Posture, mmi.JointRightElbow)[0]; v != 4 {
		t.Fatalf("elbow=%v, unchanged joints of the heavy result must not win", v)
	}
}

func TestPriorityChangeDoesNotRewriteRecordedFrames(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	ctrl := gomock.NewController(t)
	a := fakeUnit(ctrl, desc, "a", "A", 1, mmi.JointHead)
	b := fakeUnit(ctrl, desc, "b", "B", 2, mmi.JointHead)
	c := New(Options{Units: []Unit{a, b}, Description: desc, Priorities: map[string]float64{"A": 2, "B": 1}})
	c.StartRecording()
	state := initialState(desc)
	assign(t, c, "a", "A", state)
	assign(t, c, "b", "B", state)

	first := c.DoStep(context.Background(), dt, state)
	c.SetPriority("B", 3)
	second := c.DoStep(context.Background(), dt, state)

	if v := slotValues(t, desc, first.Posture, mmi.JointHead)[0]; v != 1 {
		t.Fatalf("first tick head=%v", v)
	}
	if v := slotValues(t, desc, second.Posture, mmi.JointHead)[0]; v != 2 {
		t.Fatalf("second tick head=%v", v)
	}
	rec := c.StopRecording()
	if len(rec.Frames) != 2 {
		t.Fatalf("frames: %d", len(rec.Frames))
	}
	f0 := rec.Frames[0]
	if f0.Priorities["B"] != 1 {
		t.Fatalf("frame 0 priorities changed: %v", f0.Priorities)
	}
	if v := slotValues(t, desc, f0.Merged.Posture, mmi.JointHead)[0]; v != 1 {
		t.Fatalf("frame 0 merged head changed: %v", v)
	}
	if rec.Frames[1].FrameNumber != 1 || rec.Frames[1].Time != dt {
		t.Fatalf("frame 1 header: %+v", rec.Frames[1])
	}
	if c.IsRecording() {
		t.Fatalf("still recording")
	}
}

func TestEndEventRetiresTask(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	ctrl := gomock.NewController(t)
	u := NewMockUnit(ctrl)
	u.EXPECT().ID().Return("u").AnyTimes()
	u.EXPECT().MotionType().Return("U").AnyTimes()
	u.EXPECT().AssignInstruction(gomock.Any(), gomock.Any(), gomock.Any()).Return(mmi.OK())
	u.EXPECT().DoStep(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ float64, state mmi.SimulationState) *mmi.SimulationResult {
			return &mmi.SimulationResult{
				Posture: state.Current.Clone(),
				Events:  []mmi.SimulationEvent{mmu.Event("U", mmi.EventEnd, "task-1")},
			}
		}).Times(1)

	c := New(Options{Units: []Unit{u}, Description: desc})
	state := initialState(desc)
	assign(t, c, "task-1", "U", state)
	res := c.DoStep(context.Background(), dt, state)
	if len(res.Events) != 1 || res.Events[0].Type != mmi.EventEnd {
		t.Fatalf("events: %+v", res.Events)
	}
	if n := len(c.Tasks()); n != 0 {
		t.Fatalf("task should be retired, %d left", n)
	}
	// No task left, so the unit must not be stepped again.
	c.DoStep(context.Background(), dt, state)
}

func TestReassignReplacesTaskAndStepsUnitOnce(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	ctrl := gomock.NewController(t)
	u := NewMockUnit(ctrl)
	u.EXPECT().ID().Return("u").AnyTimes()
	u.EXPECT().MotionType().Return("U").AnyTimes()
	u.EXPECT().AssignInstruction(gomock.Any(), gomock.Any(), gomock.Any()).Return(mmi.OK()).Times(2)
	u.EXPECT().DoStep(gomock.Any(), dt, gomock.Any()).Return(&mmi.SimulationResult{Posture: desc.ZeroValues()}).Times(1)

	c := New(Options{Units: []Unit{u}, Description: desc})
	state := initialState(desc)
	assign(t, c, "one", "U", state)
	assign(t, c, "two", "U", state)

	tasks := c.Tasks()
	if len(tasks) != 1 || tasks[0].InstructionID != "two" || tasks[0].Seq != 2 {
		t.Fatalf("tasks: %+v", tasks)
	}
	c.DoStep(context.Background(), dt, state)
}

func TestAssignFailures(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	ctrl := gomock.NewController(t)
	u := NewMockUnit(ctrl)
	u.EXPECT().ID().Return("u").AnyTimes()
	u.EXPECT().MotionType().Return("U").AnyTimes()
	u.EXPECT().AssignInstruction(gomock.Any(), gomock.Any(), gomock.Any()).Return(mmi.Fail("busy"))

	c := New(Options{Units: []Unit{u}, Description: desc})
	state := initialState(desc)
	if res := c.AssignInstruction(context.Background(), mmi.Instruction{ID: "x", MotionType: "nope"}, state); res.Successful {
		t.Fatalf("unknown motion type accepted")
	}
	pinned := mmi.Instruction{ID: "y", MotionType: "U", Properties: map[string]string{UnitProperty: "missing"}}
	if res := c.AssignInstruction(context.Background(), pinned, state); res.Successful {
		t.Fatalf("unknown MMU id accepted")
	}
	if res := c.AssignInstruction(context.Background(), mmi.Instruction{ID: "z", MotionType: "U"}, state); res.Successful {
		t.Fatalf("refused instruction accepted")
	}
	if n := len(c.Tasks()); n != 0 {
		t.Fatalf("failed assignments left %d tasks", n)
	}
}

func TestAssignResolvesPinnedUnitAndGeneratesID(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	ctrl := gomock.NewController(t)
	a := fakeUnit(ctrl, desc, "a", "Same", 1, mmi.JointHead)
	b := fakeUnit(ctrl, desc, "b", "Same", 2, mmi.JointHead)
	c := New(Options{Units: []Unit{a, b}, Description: desc})

	in := mmi.Instruction{MotionType: "Same", Properties: map[string]string{UnitProperty: "b"}}
	if res := c.AssignInstruction(context.Background(), in, initialState(desc)); !res.Successful {
		t.Fatalf("assign: %v", res.LogData)
	}
	tasks := c.Tasks()
	if len(tasks) != 1 || tasks[0].MMUID != "b" {
		t.Fatalf("tasks: %+v", tasks)
	}
	if tasks[0].InstructionID == "" {
		t.Fatalf("instruction id not generated")
	}
}

func TestAbort(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	ctrl := gomock.NewController(t)
	a := NewMockUnit(ctrl)
	a.EXPECT().ID().Return("a").AnyTimes()
	a.EXPECT().MotionType().Return("A").AnyTimes()
	a.EXPECT().AssignInstruction(gomock.Any(), gomock.Any(), gomock.Any()).Return(mmi.OK())
	a.EXPECT().Abort(gomock.Any(), "ia").Return(mmi.OK())
	b := NewMockUnit(ctrl)
	b.EXPECT().ID().Return("b").AnyTimes()
	b.EXPECT().MotionType().Return("B").AnyTimes()
	b.EXPECT().AssignInstruction(gomock.Any(), gomock.Any(), gomock.Any()).Return(mmi.OK())
	b.EXPECT().Abort(gomock.Any(), "ib").Return(mmi.Fail("stuck"))

	c := New(Options{Units: []Unit{a, b}, Description: desc})
	state := initialState(desc)
	assign(t, c, "ia", "A", state)
	assign(t, c, "ib", "B", state)

	if res := c.Abort(context.Background(), "unknown"); res.Successful {
		t.Fatalf("abort of unknown instruction succeeded")
	}
	if res := c.Abort(context.Background(), "ia"); !res.Successful {
		t.Fatalf("abort ia: %v", res.LogData)
	}
	if tasks := c.Tasks(); len(tasks) != 1 || tasks[0].InstructionID != "ib" {
		t.Fatalf("tasks after abort: %+v", tasks)
	}
	res := c.Abort(context.Background(), "")
	if res.Successful {
		t.Fatalf("failing unit abort should be reported")
	}
	if len(c.Tasks()) != 0 {
		t.Fatalf("abort all left tasks")
	}
}

func TestNilStepResultIsLogged(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	ctrl := gomock.NewController(t)
	u := NewMockUnit(ctrl)
	u.EXPECT().ID().Return("u").AnyTimes()
	u.EXPECT().MotionType().Return("U").AnyTimes()
	u.EXPECT().AssignInstruction(gomock.Any(), gomock.Any(), gomock.Any()).Return(mmi.OK())
	u.EXPECT().DoStep(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	c := New(Options{Units: []Unit{u}, Description: desc, LogTimes: true})
	state := initialState(desc)
	assign(t, c, "x", "U", state)
	res := c.DoStep(context.Background(), dt, state)

	var sawTime, sawFail bool
	for _, l := range res.LogData {
		if strings.HasPrefix(l, "executionTime:u:") {
			sawTime = true
		}
		if l == "step failed: u" {
			sawFail = true
		}
	}
	if !sawTime || !sawFail {
		t.Fatalf("log data: %v", res.LogData)
	}
	if !sameValues(res.Posture.PostureData, state.Current.PostureData) {
		t.Fatalf("posture should stay at the current state")
	}
}

func TestLocalPostureSolverOverridesPinnedJoints(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	ctrl := gomock.NewController(t)
	u := NewMockUnit(ctrl)
	u.EXPECT().ID().Return("u").AnyTimes()
	u.EXPECT().MotionType().Return("U").AnyTimes()
	u.EXPECT().AssignInstruction(gomock.Any(), gomock.Any(), gomock.Any()).Return(mmi.OK())
	u.EXPECT().DoStep(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ float64, state mmi.SimulationState) *mmi.SimulationResult {
			p := state.Current.Clone()
			fill(desc, p, mmi.JointHead, 1)
			fill(desc, p, mmi.JointLeftWrist, 1)
			p.PartialJointList = []mmi.JointType{mmi.JointHead, mmi.JointLeftWrist}
			pinned := desc.ZeroValues()
			fill(desc, pinned, mmi.JointHead, 7)
			fill(desc, pinned, mmi.JointLeftWrist, 7)
			return &mmi.SimulationResult{
				Posture: p,
				Constraints: []mmi.Constraint{{
					ID:      "hold-head",
					Posture: &mmi.PostureConstraint{Posture: pinned, JointConstraints: []mmi.JointType{mmi.JointHead}},
				}},
			}
		})

	c := New(Options{Units: []Unit{u}, Description: desc, Solvers: []Solver{&LocalPostureSolver{Description: desc}}})
	c.StartRecording()
	state := initialState(desc)
	assign(t, c, "x", "U", state)
	res := c.DoStep(context.Background(), dt, state)

	if v := slotValues(t, desc, res.Posture, mmi.JointHead)[0]; v != 7 {
		t.Fatalf("head=%v, want the constrained value", v)
	}
	if v := slotValues(t, desc, res.Posture, mmi.JointLeftWrist)[0]; v != 1 {
		t.Fatalf("wrist=%v, solver must only touch pinned joints", v)
	}
	if len(res.Constraints) != 1 {
		t.Fatalf("constraints should pass through: %+v", res.Constraints)
	}
	frames := c.Record().Frames
	if len(frames[0].SolverResults) != 1 || frames[0].SolverResults[0].Solver != "LocalPostureSolver" {
		t.Fatalf("solver result not recorded: %+v", frames[0].SolverResults)
	}
}

func TestHostedCheckpointRoundTrip(t *testing.T) {
	desc := mmi.DefaultDescription("avatar-1")
	ctrl := gomock.NewController(t)
	a := fakeUnit(ctrl, desc, "a", "A", 1, mmi.JointHead)
	b := fakeUnit(ctrl, desc, "b", "B", 2, mmi.JointRightElbow)
	c := New(Options{Units: []Unit{a, b}, Description: desc, Priorities: map[string]float64{"A": 4}})
	state := initialState(desc)
	assign(t, c, "ia", "A", state)
	assign(t, c, "ib", "B", state)
	c.DoStep(context.Background(), dt, state)

	data, err := c.AsMMU().CreateCheckpoint()
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}

	restored := New(Options{Units: []Unit{a, b}, Description: desc})
	if err := restored.AsMMU().RestoreCheckpoint(data); err != nil {
		t.Fatalf("restore: %v", err)
	}
	want, got := c.Tasks(), restored.Tasks()
	if len(got) != len(want) {
		t.Fatalf("tasks: got %+v want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("task %d: got %+v want %+v", i, got[i], want[i])
		}
	}
	if restored.FrameNumber() != 1 || restored.GetPriorities()["A"] != 4 {
		t.Fatalf("clock or priorities not restored")
	}

	empty := New(Options{Description: desc})
	if err := empty.AsMMU().RestoreCheckpoint(data); !errors.Is(err, mmu.ErrUnknownMMU) {
		t.Fatalf("restore without units: %v", err)
	}
}

func TestHostedExecuteFunctionPriorities(t *testing.T) {
	c := New(Options{Description: mmi.DefaultDescription("avatar-1")})
	m := c.AsMMU()
	out := m.ExecuteFunction("SetPriority", map[string]string{"motion_type": "Pose/Reach", "weight": "0.5"})
	if out["ok"] != "true" {
		t.Fatalf("SetPriority: %v", out)
	}
	if out := m.ExecuteFunction("SetPriority", map[string]string{"weight": "x"}); out["error"] == "" {
		t.Fatalf("bad SetPriority accepted: %v", out)
	}
	if got := m.ExecuteFunction("GetPriorities", nil)["Pose/Reach"]; got != "0.5" {
		t.Fatalf("GetPriorities: %q", got)
	}
}
