package cosim

import (
	"time"

	"mosim.ai/internal/mmi"
)

type InstructionResult struct {
	InstructionID string
	MMUID         string
	Result        mmi.SimulationResult
}

type SolverResult struct {
	Solver string
	Result mmi.SimulationResult
}

// Frame is one recorded tick. Everything in it is a copy taken at step time.
type Frame struct {
	FrameNumber   uint64
	Time          float64
	Initial       mmi.AvatarPostureValues
	Results       []InstructionResult
	SolverResults []SolverResult
	Merged        mmi.SimulationResult
	Priorities    map[string]float64
}

type Record struct {
	AvatarID    string
	Description mmi.AvatarDescription
	StartedAt   time.Time
	// Instructions accepted while recording, in assignment order.
	Instructions []mmi.Instruction
	Frames       []Frame
}

// StartRecording begins collecting frames. A running recording continues.
func (c *CoSimulator) StartRecording() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.record == nil {
		c.record = &Record{AvatarID: c.desc.AvatarID, Description: c.desc, StartedAt: time.Now().UTC()}
	}
	c.recording = true
}

// StopRecording stops collecting and returns what was collected so far.
func (c *CoSimulator) StopRecording() *Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = false
	return c.snapshotLocked()
}

func (c *CoSimulator) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Record returns a snapshot of the current recording, nil if none.
func (c *CoSimulator) Record() *Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *CoSimulator) ResetRecord() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record = nil
	if c.recording {
		c.record = &Record{AvatarID: c.desc.AvatarID, Description: c.desc, StartedAt: time.Now().UTC()}
	}
}

// Frames already appended are never mutated again, so sharing them is safe.
func (c *CoSimulator) snapshotLocked() *Record {
	if c.record == nil {
		return nil
	}
	r := *c.record
	r.Instructions = append([]mmi.Instruction(nil), c.record.Instructions...)
	r.Frames = append([]Frame(nil), c.record.Frames...)
	return &r
}
