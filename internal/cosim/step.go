package cosim

import (
	"context"
	"fmt"
	"time"

	"mosim.ai/internal/mmi"
)

// unitResult is the outcome of one MMU in one tick, shared by the tasks it runs.
type unitResult struct {
	unit   Unit
	seq    uint64 // earliest assignment among the unit's tasks
	weight float64
	result mmi.SimulationResult
}

// DoStep advances every active task by dt and merges the results:
//
//   - every distinct MMU steps once, in assignment order, on the same input state;
//   - each joint takes its values from the heaviest result that influences it,
//     ties going to the earliest assignment;
//   - solvers then overwrite the joints they influence;
//   - events, manipulations, constraints, drawing calls and log lines are
//     concatenated.
//
// Waiting instructions whose start condition holds are assigned first. Tasks
// whose end condition holds after the step are aborted and finish with an end
// event. Tasks with an end event are retired afterwards.
func (c *CoSimulator) DoStep(ctx context.Context, dt float64, state mmi.SimulationState) mmi.SimulationResult {
	c.stepMu.Lock()
	defer c.stepMu.Unlock()

	for _, t := range c.takeReady() {
		c.activate(ctx, t, state)
	}

	c.mu.Lock()
	raised := c.raised
	c.raised = nil
	desc := c.desc
	tasks := append([]*task(nil), c.tasks...)
	priorities := copyPriorities(c.priorities)
	solvers := append([]Solver(nil), c.solvers...)
	logTimes := c.logTimes
	frameNo := c.frame
	simTime := c.simTime
	c.mu.Unlock()

	initial := state.Current.Clone()
	initial.PartialJointList = nil

	var (
		results  []*unitResult
		byUnit   = map[string]*unitResult{}
		recorded []InstructionResult
		notes    []string
	)
	for _, t := range tasks {
		id := t.unit.ID()
		if ur, ok := byUnit[id]; ok {
			recorded = append(recorded, InstructionResult{InstructionID: t.instruction.ID, MMUID: id, Result: ur.result.Clone()})
			continue
		}
		start := time.Now()
		res := t.unit.DoStep(ctx, dt, state)
		if logTimes {
			notes = append(notes, fmt.Sprintf("executionTime:%s:%s", id, time.Since(start)))
		}
		if res == nil {
			c.log.Printf("step %s: no result", id)
			notes = append(notes, fmt.Sprintf("step failed: %s", id))
			continue
		}
		ur := &unitResult{unit: t.unit, seq: t.seq, weight: weight(priorities, t.unit.MotionType()), result: *res}
		byUnit[id] = ur
		results = append(results, ur)
		recorded = append(recorded, InstructionResult{InstructionID: t.instruction.ID, MMUID: id, Result: res.Clone()})
	}

	merged := mmi.SimulationResult{Posture: c.mergePostures(desc, initial, results), Events: raised}
	for _, ur := range results {
		merged.Events = append(merged.Events, ur.result.Events...)
		merged.SceneManipulations = append(merged.SceneManipulations, ur.result.SceneManipulations...)
		merged.Constraints = append(merged.Constraints, ur.result.Constraints...)
		merged.DrawingCalls = append(merged.DrawingCalls, ur.result.DrawingCalls...)
		merged.LogData = append(merged.LogData, ur.result.LogData...)
	}

	var solved []SolverResult
	for _, s := range solvers {
		if !s.RequiresSolving(merged, dt) {
			continue
		}
		corrected := s.Solve(merged, dt)
		solved = append(solved, SolverResult{Solver: s.Name(), Result: corrected.Clone()})
		merged.Posture = overlay(desc, merged.Posture, corrected.Posture)
		merged.Events = append(merged.Events, corrected.Events...)
		merged.LogData = append(merged.LogData, corrected.LogData...)
	}
	merged.LogData = append(merged.LogData, notes...)

	now := simTime + dt
	c.mu.Lock()
	for _, ev := range merged.Events {
		c.seen.note(ev.Reference, ev.Type, now)
	}
	var finished []*task
	for _, t := range c.tasks {
		if t.end != nil && t.end.holds(c.seen, now) {
			finished = append(finished, t)
		}
	}
	c.mu.Unlock()
	for _, t := range finished {
		if res := t.unit.Abort(ctx, t.instruction.ID); !res.Successful {
			c.log.Printf("end condition of %s: abort on %s failed: %v", t.instruction.ID, t.unit.ID(), res.LogData)
		}
		merged.Events = append(merged.Events, mmi.SimulationEvent{
			Name:      t.instruction.Name + ": Finished",
			Type:      mmi.EventEnd,
			Reference: t.instruction.ID,
		})
	}

	ended := map[string]bool{}
	for _, ev := range merged.Events {
		if ev.Type == mmi.EventEnd {
			ended[ev.Reference] = true
		}
	}

	c.mu.Lock()
	for _, t := range finished {
		c.seen.note(t.instruction.ID, mmi.EventEnd, now)
	}
	if len(ended) > 0 {
		kept := c.tasks[:0]
		for _, t := range c.tasks {
			if !ended[t.instruction.ID] {
				kept = append(kept, t)
			}
		}
		c.tasks = kept
	}
	if c.recording && c.record != nil {
		c.record.Frames = append(c.record.Frames, Frame{
			FrameNumber:   frameNo,
			Time:          simTime,
			Initial:       initial.Clone(),
			Results:       recorded,
			SolverResults: solved,
			Merged:        merged.Clone(),
			Priorities:    priorities,
		})
	}
	c.frame = frameNo + 1
	c.simTime = now
	c.mu.Unlock()

	return merged
}

// takeReady removes and returns the waiting tasks whose start condition holds.
func (c *CoSimulator) takeReady() []*task {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ready []*task
	kept := c.waiting[:0]
	for _, t := range c.waiting {
		if t.start.holds(c.seen, c.simTime) {
			ready = append(ready, t)
			continue
		}
		kept = append(kept, t)
	}
	c.waiting = kept
	return ready
}

// mergePostures seeds with the initial posture and, per joint in description
// order, copies the channel values of the winning result.
func (c *CoSimulator) mergePostures(desc mmi.AvatarDescription, initial mmi.AvatarPostureValues, results []*unitResult) mmi.AvatarPostureValues {
	out := initial.Clone()
	dof := desc.DOF()
	if dof == 0 || len(out.PostureData) != dof {
		// Without a matching description the heaviest full posture wins outright.
		var best *unitResult
		for _, ur := range results {
			if len(ur.result.Posture.PostureData) != len(out.PostureData) {
				continue
			}
			if best == nil || ur.weight > best.weight {
				best = ur
			}
		}
		if best != nil {
			copy(out.PostureData, best.result.Posture.PostureData)
		}
		return out
	}

	for _, slot := range desc.Layout() {
		var best *unitResult
		for _, ur := range results {
			data := ur.result.Posture.PostureData
			if len(data) != dof {
				continue
			}
			if !influences(ur.result.Posture, initial, slot) {
				continue
			}
			if best == nil || ur.weight > best.weight || (ur.weight == best.weight && ur.seq < best.seq) {
				best = ur
			}
		}
		if best == nil {
			continue
		}
		n := len(slot.Channels)
		copy(out.PostureData[slot.Offset:slot.Offset+n], best.result.Posture.PostureData[slot.Offset:slot.Offset+n])
	}
	return out
}

// influences reports whether a posture speaks for the joint: it names the joint
// in its partial list, or, without a partial list, it moved any of its channels.
func influences(p, initial mmi.AvatarPostureValues, slot mmi.JointSlot) bool {
	if p.PartialJointList != nil {
		return p.Lists(slot.Type)
	}
	for i := range slot.Channels {
		idx := slot.Offset + i
		if idx >= len(p.PostureData) || idx >= len(initial.PostureData) {
			return false
		}
		if p.PostureData[idx] != initial.PostureData[idx] {
			return true
		}
	}
	return false
}

// overlay writes every joint the correction influences over base.
func overlay(desc mmi.AvatarDescription, base, correction mmi.AvatarPostureValues) mmi.AvatarPostureValues {
	out := base.Clone()
	if len(correction.PostureData) != len(base.PostureData) {
		return out
	}
	for _, slot := range desc.Layout() {
		if !influences(correction, base, slot) {
			continue
		}
		n := len(slot.Channels)
		copy(out.PostureData[slot.Offset:slot.Offset+n], correction.PostureData[slot.Offset:slot.Offset+n])
	}
	return out
}
