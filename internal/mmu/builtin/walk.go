package builtin

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/mmu"
)

const (
	WalkID         = "walk-1.0"
	WalkName       = "WalkMMU"
	WalkMotionType = "Locomotion/Walk"

	walkArrival = 0.05
	walkLeanDeg = 6.0
)

func WalkDescription() mmi.MMUDescription {
	return mmi.MMUDescription{
		ID:               WalkID,
		Name:             WalkName,
		MotionType:       WalkMotionType,
		Language:         "Go",
		Version:          "1.0",
		ShortDescription: "Straight-line root translation with a forward torso lean",
		Parameters: []mmi.ParameterDescription{
			{Name: "TargetPosition", Type: "Vector3", Required: true},
			{Name: "Velocity", Type: "float", Description: "m/s, default 1.0"},
		},
		Events: []string{mmi.EventStart, mmi.EventEnd},
	}
}

type walkState struct {
	Description   mmi.AvatarDescription
	Initialized   bool
	InstructionID string
	Target        mmi.Vector3
	Velocity      float64
	Active        bool
	Started       bool
}

type Walk struct {
	mmu.Base
	st walkState
}

func NewWalk(mmu.Env) mmu.MotionModelUnit { return &Walk{} }

func (m *Walk) Initialize(desc mmi.AvatarDescription, _ map[string]string) mmi.BoolResponse {
	if err := desc.Validate(); err != nil {
		return mmi.Fail(err.Error())
	}
	m.st = walkState{Description: desc, Initialized: true}
	return mmi.OK()
}

func (m *Walk) CheckPrerequisites(in mmi.Instruction) mmi.BoolResponse {
	if missing := WalkDescription().MissingParameters(in); len(missing) > 0 {
		return mmi.Fail(fmt.Sprintf("missing parameters: %v", missing))
	}
	return mmi.OK()
}

func (m *Walk) AssignInstruction(in mmi.Instruction, _ mmi.SimulationState) mmi.BoolResponse {
	if !m.st.Initialized {
		return mmi.Fail("MMU not initialized")
	}
	s, ok := in.Property("TargetPosition")
	if !ok {
		return mmi.Fail("Required parameter TargetPosition not defined")
	}
	target, err := parseVector(s)
	if err != nil {
		return mmi.Fail(fmt.Sprintf("TargetPosition: %v", err))
	}
	vel, err := parseFloatProp(in, "Velocity", 1.0)
	if err != nil || vel <= 0 {
		return mmi.Fail("invalid Velocity")
	}
	m.st.InstructionID = in.ID
	m.st.Target = target
	m.st.Velocity = vel
	m.st.Active = true
	m.st.Started = false
	return mmi.OK()
}

func (m *Walk) DoStep(dt float64, state mmi.SimulationState) mmi.SimulationResult {
	posture, ok := prepare(m.st.Description, state)
	res := mmi.SimulationResult{Posture: posture}
	if !m.st.Active || !ok {
		return res
	}
	if !m.st.Started {
		m.st.Started = true
		res.Events = append(res.Events, mmu.Event("Walk", mmi.EventStart, m.st.InstructionID))
	}

	pos, _ := readOffset(m.st.Description, posture.PostureData, mmi.JointPelvisCentre)
	goal := mgl64.Vec3{m.st.Target.X, pos[1], m.st.Target.Z}
	delta := goal.Sub(pos)
	dist := delta.Len()
	step := m.st.Velocity * dt
	lean := walkLeanDeg
	if dist <= step || dist <= walkArrival {
		pos = goal
		lean = 0
		m.st.Active = false
		res.Events = append(res.Events, mmu.Event("Walk", mmi.EventEnd, m.st.InstructionID))
	} else {
		pos = pos.Add(delta.Mul(step / dist))
	}
	writeOffset(m.st.Description, posture.PostureData, mmi.JointPelvisCentre, pos)

	heading := math.Atan2(delta[0], delta[2])
	setRotation(m.st.Description, posture.PostureData, mmi.JointPelvisCentre, mgl64.QuatRotate(heading, mgl64.Vec3{0, 1, 0}))
	setRotation(m.st.Description, posture.PostureData, mmi.JointT12L1, mgl64.QuatRotate(mgl64.DegToRad(lean), mgl64.Vec3{1, 0, 0}))
	res.Posture.PartialJointList = []mmi.JointType{mmi.JointPelvisCentre, mmi.JointT12L1}
	return res
}

func (m *Walk) Abort(instructionID string) mmi.BoolResponse {
	if instructionID == "" || instructionID == m.st.InstructionID {
		m.st.Active = false
	}
	return mmi.OK()
}

func (m *Walk) CreateCheckpoint() ([]byte, error) { return mmu.EncodeCheckpoint(m.st) }

func (m *Walk) RestoreCheckpoint(data []byte) error {
	var st walkState
	if err := mmu.DecodeCheckpoint(data, &st); err != nil {
		return err
	}
	m.st = st
	return nil
}
