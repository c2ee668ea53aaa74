package builtin

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/mmu"
)

const (
	ReachID         = "reach-1.0"
	ReachName       = "ReachMMU"
	ReachMotionType = "Pose/Reach"

	reachTorsoDeg    = 20.0
	reachShoulderDeg = -70.0
	reachElbowDeg    = -25.0
)

func ReachDescription() mmi.MMUDescription {
	return mmi.MMUDescription{
		ID:               ReachID,
		Name:             ReachName,
		MotionType:       ReachMotionType,
		Language:         "Go",
		Version:          "1.0",
		ShortDescription: "Bends the torso and raises the right arm into a reach pose",
		Parameters: []mmi.ParameterDescription{
			{Name: "Duration", Type: "float", Description: "seconds, default 1.0"},
		},
		Events: []string{mmi.EventStart, mmi.EventEnd},
	}
}

type reachState struct {
	Description   mmi.AvatarDescription
	Initialized   bool
	InstructionID string
	Duration      float64
	Elapsed       float64
	Active        bool
	Started       bool
}

type Reach struct {
	mmu.Base
	st reachState
}

func NewReach(mmu.Env) mmu.MotionModelUnit { return &Reach{} }

func (m *Reach) Initialize(desc mmi.AvatarDescription, _ map[string]string) mmi.BoolResponse {
	if err := desc.Validate(); err != nil {
		return mmi.Fail(err.Error())
	}
	m.st = reachState{Description: desc, Initialized: true}
	return mmi.OK()
}

func (m *Reach) AssignInstruction(in mmi.Instruction, _ mmi.SimulationState) mmi.BoolResponse {
	if !m.st.Initialized {
		return mmi.Fail("MMU not initialized")
	}
	d, err := parseFloatProp(in, "Duration", 1.0)
	if err != nil || d <= 0 {
		return mmi.Fail("invalid Duration")
	}
	m.st.InstructionID = in.ID
	m.st.Duration = d
	m.st.Elapsed = 0
	m.st.Active = true
	m.st.Started = false
	return mmi.OK()
}

func (m *Reach) DoStep(dt float64, state mmi.SimulationState) mmi.SimulationResult {
	posture, ok := prepare(m.st.Description, state)
	res := mmi.SimulationResult{Posture: posture}
	if !m.st.Active || !ok {
		return res
	}
	if !m.st.Started {
		m.st.Started = true
		res.Events = append(res.Events, mmu.Event("Reach", mmi.EventStart, m.st.InstructionID))
	}
	m.st.Elapsed += dt
	t := math.Min(m.st.Elapsed/m.st.Duration, 1)
	// smoothstep
	w := t * t * (3 - 2*t)

	data := posture.PostureData
	setRotation(m.st.Description, data, mmi.JointT12L1, mgl64.QuatRotate(mgl64.DegToRad(reachTorsoDeg*w), mgl64.Vec3{1, 0, 0}))
	setRotation(m.st.Description, data, mmi.JointRightShoulder, mgl64.QuatRotate(mgl64.DegToRad(reachShoulderDeg*w), mgl64.Vec3{0, 0, 1}))
	setRotation(m.st.Description, data, mmi.JointRightElbow, mgl64.QuatRotate(mgl64.DegToRad(reachElbowDeg*w), mgl64.Vec3{0, 1, 0}))
	res.Posture.PartialJointList = []mmi.JointType{mmi.JointT12L1, mmi.JointRightShoulder, mmi.JointRightElbow}

	if t >= 1 {
		m.st.Active = false
		res.Events = append(res.Events, mmu.Event("Reach", mmi.EventEnd, m.st.InstructionID))
	}
	return res
}

func (m *Reach) Abort(instructionID string) mmi.BoolResponse {
	if instructionID == "" || instructionID == m.st.InstructionID {
		m.st.Active = false
	}
	return mmi.OK()
}

func (m *Reach) CreateCheckpoint() ([]byte, error) { return mmu.EncodeCheckpoint(m.st) }

func (m *Reach) RestoreCheckpoint(data []byte) error {
	var st reachState
	if err := mmu.DecodeCheckpoint(data, &st); err != nil {
		return err
	}
	m.st = st
	return nil
}
