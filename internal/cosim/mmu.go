package cosim

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/mmu"
)

// localUnit drives an in-process MMU without an adapter in between.
type localUnit struct {
	desc mmi.MMUDescription
	m    mmu.MotionModelUnit
}

func LocalUnit(desc mmi.MMUDescription, m mmu.MotionModelUnit) Unit {
	return &localUnit{desc: desc, m: m}
}

func (u *localUnit) ID() string { return u.desc.ID }

func (u *localUnit) MotionType() string { return u.desc.MotionType }

func (u *localUnit) AssignInstruction(_ context.Context, in mmi.Instruction, state mmi.SimulationState) mmi.BoolResponse {
	return u.m.AssignInstruction(in, state)
}

func (u *localUnit) DoStep(_ context.Context, dt float64, state mmi.SimulationState) *mmi.SimulationResult {
	res := u.m.DoStep(dt, state)
	return &res
}

func (u *localUnit) Abort(_ context.Context, instructionID string) mmi.BoolResponse {
	return u.m.Abort(instructionID)
}

// AsMMU exposes the co-simulator through the MMU contract, so a co-simulation
// can itself be hosted by an adapter.
func (c *CoSimulator) AsMMU() mmu.MotionModelUnit { return &hosted{c: c} }

// CoSimulationMotionType is the motion type of a hosted co-simulation.
const CoSimulationMotionType = "Composite/CoSimulation"

func CoSimulationDescription() mmi.MMUDescription {
	return mmi.MMUDescription{
		ID:               "cosim-mmu",
		Name:             "CoSimulationMMU",
		MotionType:       CoSimulationMotionType,
		Language:         "Go",
		Version:          "1.0",
		Author:           "mosim",
		ShortDescription: "Runs the adapter's bundled MMUs as one co-simulation.",
	}
}

// Factory lets an adapter host a co-simulation as a loadable MMU. Every
// instance owns fresh instances of the catalog's MMUs, created with the
// instance's environment and initialized together with it.
func Factory(cat *mmu.Catalog, priorities map[string]float64) mmu.Factory {
	return mmu.Factory{
		Description: CoSimulationDescription(),
		New: func(env mmu.Env) mmu.MotionModelUnit {
			c := New(Options{Priorities: priorities, Logger: env.Logger})
			h := &hosted{c: c}
			for _, d := range cat.Descriptions() {
				_, f, err := cat.Resolve(d.ID)
				if err != nil {
					continue
				}
				m := f.New(env)
				h.owned = append(h.owned, m)
				c.AddUnit(LocalUnit(d, m))
			}
			return h
		},
	}
}

type hosted struct {
	c *CoSimulator
	// owned MMUs follow the hosted co-simulation's lifecycle.
	owned []mmu.MotionModelUnit
}

func (h *hosted) Initialize(desc mmi.AvatarDescription, properties map[string]string) mmi.BoolResponse {
	for _, m := range h.owned {
		if res := m.Initialize(desc, properties); !res.Successful {
			return res
		}
	}
	return h.c.Initialize(desc, properties)
}

func (h *hosted) AssignInstruction(in mmi.Instruction, state mmi.SimulationState) mmi.BoolResponse {
	return h.c.AssignInstruction(context.Background(), in, state)
}

func (h *hosted) DoStep(dt float64, state mmi.SimulationState) mmi.SimulationResult {
	return h.c.DoStep(context.Background(), dt, state)
}

func (h *hosted) CheckPrerequisites(in mmi.Instruction) mmi.BoolResponse {
	h.c.mu.Lock()
	_, err := h.c.resolveLocked(in)
	h.c.mu.Unlock()
	if err != nil {
		return mmi.Fail(err.Error())
	}
	return mmi.OK()
}

func (h *hosted) Abort(instructionID string) mmi.BoolResponse {
	return h.c.Abort(context.Background(), instructionID)
}

func (h *hosted) Dispose(properties map[string]string) mmi.BoolResponse {
	h.c.Abort(context.Background(), "")
	out := mmi.OK()
	for _, m := range h.owned {
		if res := m.Dispose(properties); !res.Successful {
			out.Successful = false
			out.LogData = append(out.LogData, res.LogData...)
		}
	}
	return out
}

func (h *hosted) GetBoundaryConstraints(mmi.Instruction) []mmi.Constraint { return nil }

// ExecuteFunction supports GetPriorities and SetPriority{motion_type, weight}.
func (h *hosted) ExecuteFunction(name string, params map[string]string) map[string]string {
	out := map[string]string{}
	switch name {
	case "GetPriorities":
		for k, v := range h.c.GetPriorities() {
			out[k] = strconv.FormatFloat(v, 'g', -1, 64)
		}
	case "SetPriority":
		w, err := strconv.ParseFloat(params["weight"], 64)
		if err != nil || params["motion_type"] == "" {
			out["error"] = "SetPriority needs motion_type and a numeric weight"
			return out
		}
		h.c.SetPriority(params["motion_type"], w)
		out["ok"] = "true"
	}
	return out
}

type checkpointTask struct {
	Seq         uint64
	Instruction mmi.Instruction
	MMUID       string
}

type checkpointEvent struct {
	Reference string
	Type      string
	Time      float64
}

type checkpointState struct {
	Seq        uint64
	Frame      uint64
	Time       float64
	Priorities map[string]float64
	Tasks      []checkpointTask
	Waiting    []checkpointTask
	Seen       []checkpointEvent
	Raised     []mmi.SimulationEvent
}

// CreateCheckpoint captures the task lists, the event history and the clock.
// The MMUs' own state is checkpointed through their adapters.
func (h *hosted) CreateCheckpoint() ([]byte, error) {
	c := h.c
	c.mu.Lock()
	st := checkpointState{
		Seq:        c.seq,
		Frame:      c.frame,
		Time:       c.simTime,
		Priorities: copyPriorities(c.priorities),
		Raised:     append([]mmi.SimulationEvent(nil), c.raised...),
	}
	for _, t := range c.tasks {
		st.Tasks = append(st.Tasks, checkpointTask{Seq: t.seq, Instruction: t.instruction, MMUID: t.unit.ID()})
	}
	for _, t := range c.waiting {
		st.Waiting = append(st.Waiting, checkpointTask{Instruction: t.instruction, MMUID: t.unit.ID()})
	}
	for k, at := range c.seen {
		st.Seen = append(st.Seen, checkpointEvent{Reference: k.reference, Type: k.event, Time: at})
	}
	c.mu.Unlock()
	sort.Slice(st.Seen, func(i, j int) bool {
		a, b := st.Seen[i], st.Seen[j]
		if a.Reference != b.Reference {
			return a.Reference < b.Reference
		}
		return a.Type < b.Type
	})
	return mmu.EncodeCheckpoint(st)
}

func (h *hosted) RestoreCheckpoint(data []byte) error {
	var st checkpointState
	if err := mmu.DecodeCheckpoint(data, &st); err != nil {
		return err
	}
	c := h.c
	c.mu.Lock()
	defer c.mu.Unlock()
	byID := map[string]Unit{}
	for _, u := range c.units {
		byID[u.ID()] = u
	}
	rebuild := func(list []checkpointTask) ([]*task, error) {
		out := make([]*task, 0, len(list))
		for _, t := range list {
			u, ok := byID[t.MMUID]
			if !ok {
				return nil, fmt.Errorf("restore: %s: %w", t.MMUID, mmu.ErrUnknownMMU)
			}
			start, err := parseCondition(t.Instruction.StartCondition)
			if err != nil {
				return nil, fmt.Errorf("restore %s: %w", t.Instruction.ID, err)
			}
			end, err := parseCondition(t.Instruction.EndCondition)
			if err != nil {
				return nil, fmt.Errorf("restore %s: %w", t.Instruction.ID, err)
			}
			out = append(out, &task{seq: t.Seq, instruction: t.Instruction, unit: u, start: start, end: end})
		}
		return out, nil
	}
	tasks, err := rebuild(st.Tasks)
	if err != nil {
		return err
	}
	waiting, err := rebuild(st.Waiting)
	if err != nil {
		return err
	}
	seen := eventLog{}
	for _, e := range st.Seen {
		seen.note(e.Reference, e.Type, e.Time)
	}
	c.tasks = tasks
	c.waiting = waiting
	c.seen = seen
	c.raised = st.Raised
	c.seq = st.Seq
	c.frame = st.Frame
	c.simTime = st.Time
	c.priorities = st.Priorities
	if c.priorities == nil {
		c.priorities = map[string]float64{}
	}
	return nil
}
