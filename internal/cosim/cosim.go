// Package cosim runs several MMUs side by side for one avatar and merges their
// postures into a single result per tick.
package cosim

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"mosim.ai/internal/mmi"
)

//go:generate mockgen -destination=mock_unit_test.go -package=cosim mosim.ai/internal/cosim Unit

// Unit is a loaded MMU as the merge engine drives it.
type Unit interface {
	ID() string
	MotionType() string
	AssignInstruction(ctx context.Context, in mmi.Instruction, state mmi.SimulationState) mmi.BoolResponse
	DoStep(ctx context.Context, dt float64, state mmi.SimulationState) *mmi.SimulationResult
	Abort(ctx context.Context, instructionID string) mmi.BoolResponse
}

// DefaultPriority is the weight of a motion type without an explicit priority.
const DefaultPriority = 1.0

// UnitProperty names the instruction property that pins an instruction to an
// MMU ID instead of resolving it by motion type.
const UnitProperty = "MMU"

type Options struct {
	Units       []Unit
	Priorities  map[string]float64
	Solvers     []Solver
	Description mmi.AvatarDescription
	Logger      *log.Logger
	// LogTimes adds executionTime:<mmu>:<duration> lines to every merged result.
	LogTimes bool
}

type task struct {
	seq         uint64
	instruction mmi.Instruction
	unit        Unit
	start, end  *condition
}

// Task describes an active instruction.
type Task struct {
	Seq           uint64 `json:"seq"`
	InstructionID string `json:"instruction_id"`
	MMUID         string `json:"mmu_id"`
	MotionType    string `json:"motion_type"`
}

type CoSimulator struct {
	log *log.Logger

	// stepMu serialises DoStep; mu guards the fields below and is never held
	// while calling into units.
	stepMu sync.Mutex
	mu     sync.Mutex

	desc       mmi.AvatarDescription
	units      []Unit
	priorities map[string]float64
	solvers    []Solver
	logTimes   bool

	tasks []*task
	seq   uint64
	// waiting holds resolved instructions whose start condition has not held yet.
	waiting []*task
	// raised are events of the co-simulator itself, emitted with the next step.
	raised []mmi.SimulationEvent
	seen   eventLog

	frame   uint64
	simTime float64

	recording bool
	record    *Record
}

func New(opts Options) *CoSimulator {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	c := &CoSimulator{
		log:        opts.Logger,
		desc:       opts.Description,
		units:      append([]Unit(nil), opts.Units...),
		priorities: map[string]float64{},
		seen:       eventLog{},
		solvers:    append([]Solver(nil), opts.Solvers...),
		logTimes:   opts.LogTimes,
	}
	for k, v := range opts.Priorities {
		c.priorities[k] = v
	}
	return c
}

// Initialize sets the avatar whose joints are merged.
func (c *CoSimulator) Initialize(desc mmi.AvatarDescription, _ map[string]string) mmi.BoolResponse {
	if err := desc.Validate(); err != nil {
		return mmi.Fail(err.Error())
	}
	c.mu.Lock()
	c.desc = desc
	c.mu.Unlock()
	return mmi.OK()
}

func (c *CoSimulator) AddUnit(u Unit) {
	c.mu.Lock()
	c.units = append(c.units, u)
	c.mu.Unlock()
}

func (c *CoSimulator) AddSolver(s Solver) {
	c.mu.Lock()
	c.solvers = append(c.solvers, s)
	c.mu.Unlock()
}

func (c *CoSimulator) SetLogTimes(on bool) {
	c.mu.Lock()
	c.logTimes = on
	c.mu.Unlock()
}

// SetPriority changes the weight of a motion type from the next tick on.
func (c *CoSimulator) SetPriority(motionType string, w float64) {
	c.mu.Lock()
	c.priorities[motionType] = w
	c.mu.Unlock()
}

func (c *CoSimulator) SetPriorities(p map[string]float64) {
	c.mu.Lock()
	for k, v := range p {
		c.priorities[k] = v
	}
	c.mu.Unlock()
}

func (c *CoSimulator) GetPriorities() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyPriorities(c.priorities)
}

func copyPriorities(p map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func weight(p map[string]float64, motionType string) float64 {
	if w, ok := p[motionType]; ok {
		return w
	}
	return DefaultPriority
}

// resolveLocked finds the unit for an instruction: an explicit MMU property
// wins, otherwise the first unit of the instruction's motion type.
func (c *CoSimulator) resolveLocked(in mmi.Instruction) (Unit, error) {
	if id, ok := in.Property(UnitProperty); ok && id != "" {
		for _, u := range c.units {
			if u.ID() == id {
				return u, nil
			}
		}
		return nil, fmt.Errorf("no MMU with id %s", id)
	}
	for _, u := range c.units {
		if u.MotionType() == in.MotionType {
			return u, nil
		}
	}
	return nil, fmt.Errorf("no MMU for motion type %s", in.MotionType)
}

// AssignInstruction hands the instruction to its MMU and, on success, makes it
// an active task. An MMU runs one instruction at a time, so a new assignment to
// the same MMU replaces its previous task. An instruction with a start
// condition waits until the condition holds and is assigned by DoStep.
func (c *CoSimulator) AssignInstruction(ctx context.Context, in mmi.Instruction, state mmi.SimulationState) mmi.BoolResponse {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	start, err := parseCondition(in.StartCondition)
	if err != nil {
		return mmi.Fail("start condition: " + err.Error())
	}
	end, err := parseCondition(in.EndCondition)
	if err != nil {
		return mmi.Fail("end condition: " + err.Error())
	}

	c.mu.Lock()
	u, err := c.resolveLocked(in)
	if err != nil {
		c.mu.Unlock()
		c.log.Printf("assign %s: %v", in.ID, err)
		return mmi.Fail(err.Error())
	}
	if c.recording && c.record != nil {
		c.record.Instructions = append(c.record.Instructions, in)
	}
	t := &task{instruction: in, unit: u, start: start, end: end}
	if start != nil {
		c.waiting = append(c.waiting, t)
		c.mu.Unlock()
		return mmi.OK("waiting for start condition " + in.StartCondition)
	}
	c.mu.Unlock()

	return c.activate(ctx, t, state)
}

// activate assigns a resolved task to its unit. A refusal raises an abort and
// an InitError event for the instruction.
func (c *CoSimulator) activate(ctx context.Context, t *task, state mmi.SimulationState) mmi.BoolResponse {
	res := t.unit.AssignInstruction(ctx, t.instruction, state)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !res.Successful {
		c.log.Printf("assign %s to %s refused: %v", t.instruction.ID, t.unit.ID(), res.LogData)
		name := t.instruction.Name
		c.raised = append(c.raised,
			mmi.SimulationEvent{Name: name, Type: mmi.EventAbort, Reference: t.instruction.ID},
			mmi.SimulationEvent{Name: name, Type: mmi.EventInitError, Reference: t.instruction.ID},
		)
		return res
	}
	kept := c.tasks[:0]
	for _, o := range c.tasks {
		if o.unit.ID() != t.unit.ID() {
			kept = append(kept, o)
		}
	}
	c.seq++
	t.seq = c.seq
	c.tasks = append(kept, t)
	return res
}

// Abort stops one task, or every task when instructionID is empty. Waiting
// instructions are dropped without reaching their MMU.
func (c *CoSimulator) Abort(ctx context.Context, instructionID string) mmi.BoolResponse {
	c.mu.Lock()
	var victims []*task
	kept := c.tasks[:0]
	for _, t := range c.tasks {
		if instructionID == "" || t.instruction.ID == instructionID {
			victims = append(victims, t)
			continue
		}
		kept = append(kept, t)
	}
	c.tasks = kept
	dropped := 0
	waiting := c.waiting[:0]
	for _, t := range c.waiting {
		if instructionID == "" || t.instruction.ID == instructionID {
			dropped++
			continue
		}
		waiting = append(waiting, t)
	}
	c.waiting = waiting
	c.mu.Unlock()

	if instructionID != "" && len(victims) == 0 && dropped == 0 {
		return mmi.Fail("no active instruction " + instructionID)
	}
	out := mmi.OK()
	for _, t := range victims {
		res := t.unit.Abort(ctx, t.instruction.ID)
		out.LogData = append(out.LogData, res.LogData...)
		if !res.Successful {
			out.Successful = false
		}
	}
	return out
}

// Tasks lists the active instructions in assignment order.
func (c *CoSimulator) Tasks() []Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		out = append(out, Task{Seq: t.seq, InstructionID: t.instruction.ID, MMUID: t.unit.ID(), MotionType: t.unit.MotionType()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Waiting lists the instructions held back by a start condition, in
// assignment order. Their Seq is zero until they start.
func (c *CoSimulator) Waiting() []Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Task, 0, len(c.waiting))
	for _, t := range c.waiting {
		out = append(out, Task{InstructionID: t.instruction.ID, MMUID: t.unit.ID(), MotionType: t.unit.MotionType()})
	}
	return out
}

func (c *CoSimulator) FrameNumber() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

func (c *CoSimulator) SimulationTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.simTime
}
