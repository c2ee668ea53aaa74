package builtin

import (
	"mosim.ai/internal/mmi"
	"mosim.ai/internal/mmu"
)

const (
	IdleID         = "idle-1.0"
	IdleName       = "IdleMMU"
	IdleMotionType = "Pose/Idle"
)

func IdleDescription() mmi.MMUDescription {
	return mmi.MMUDescription{
		ID:               IdleID,
		Name:             IdleName,
		MotionType:       IdleMotionType,
		Language:         "Go",
		Version:          "1.0",
		ShortDescription: "Holds the current posture",
		Events:           []string{mmi.EventStart},
	}
}

type idleState struct {
	Description   mmi.AvatarDescription
	Initialized   bool
	InstructionID string
	Active        bool
	Started       bool
}

type Idle struct {
	mmu.Base
	st idleState
}

func NewIdle(mmu.Env) mmu.MotionModelUnit { return &Idle{} }

func (m *Idle) Initialize(desc mmi.AvatarDescription, _ map[string]string) mmi.BoolResponse {
	if err := desc.Validate(); err != nil {
		return mmi.Fail(err.Error())
	}
	m.st = idleState{Description: desc, Initialized: true}
	return mmi.OK()
}

func (m *Idle) AssignInstruction(in mmi.Instruction, _ mmi.SimulationState) mmi.BoolResponse {
	if !m.st.Initialized {
		return mmi.Fail("MMU not initialized")
	}
	m.st.InstructionID = in.ID
	m.st.Active = true
	m.st.Started = false
	return mmi.OK()
}

func (m *Idle) DoStep(_ float64, state mmi.SimulationState) mmi.SimulationResult {
	posture, _ := prepare(m.st.Description, state)
	res := mmi.SimulationResult{Posture: posture}
	if m.st.Active && !m.st.Started {
		m.st.Started = true
		res.Events = append(res.Events, mmu.Event("Idle", mmi.EventStart, m.st.InstructionID))
	}
	return res
}

func (m *Idle) Abort(instructionID string) mmi.BoolResponse {
	if instructionID == "" || instructionID == m.st.InstructionID {
		m.st.Active = false
	}
	return mmi.OK()
}

func (m *Idle) CreateCheckpoint() ([]byte, error) { return mmu.EncodeCheckpoint(m.st) }

func (m *Idle) RestoreCheckpoint(data []byte) error {
	var st idleState
	if err := mmu.DecodeCheckpoint(data, &st); err != nil {
		return err
	}
	m.st = st
	return nil
}
