package builtin

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/mmu"
)

const (
	LookAtID         = "simple-look-at-1.0"
	LookAtName       = "SimpleLookAtMMU"
	LookAtMotionType = "Pose/LookAt"
)

// headHeight is the head offset above the root used when the avatar carries no
// explicit head position.
const headHeight = 0.65

func LookAtDescription() mmi.MMUDescription {
	return mmi.MMUDescription{
		ID:               LookAtID,
		Name:             LookAtName,
		MotionType:       LookAtMotionType,
		Language:         "Go",
		Version:          "1.0",
		ShortDescription: "Turns the head toward a target",
		Parameters: []mmi.ParameterDescription{
			{Name: "TargetID", Type: "ID", Description: "scene object to look at", Required: true},
			{Name: "TargetPosition", Type: "Vector3", Description: "fallback target position x,y,z"},
		},
		Events: []string{mmi.EventStart},
	}
}

type lookAtState struct {
	Description   mmi.AvatarDescription
	Initialized   bool
	InstructionID string
	TargetID      string
	Fallback      *mmi.Vector3
	Active        bool
	Started       bool
}

// LookAt rotates the head joint toward a scene object. It runs until aborted.
type LookAt struct {
	mmu.Base
	env mmu.Env
	st  lookAtState
}

func NewLookAt(env mmu.Env) mmu.MotionModelUnit { return &LookAt{env: env} }

func (m *LookAt) Initialize(desc mmi.AvatarDescription, _ map[string]string) mmi.BoolResponse {
	if err := desc.Validate(); err != nil {
		return mmi.Fail(err.Error())
	}
	m.st = lookAtState{Description: desc, Initialized: true}
	return mmi.OK()
}

func (m *LookAt) CheckPrerequisites(in mmi.Instruction) mmi.BoolResponse {
	if _, ok := in.Property("TargetID"); !ok {
		return mmi.Fail("Required parameter Target ID not defined")
	}
	return mmi.OK()
}

func (m *LookAt) AssignInstruction(in mmi.Instruction, _ mmi.SimulationState) mmi.BoolResponse {
	if !m.st.Initialized {
		return mmi.Fail("MMU not initialized")
	}
	target, ok := in.Property("TargetID")
	if !ok {
		return mmi.Fail("Required parameter Target ID not defined")
	}
	var fallback *mmi.Vector3
	if s, ok := in.Property("TargetPosition"); ok {
		v, err := parseVector(s)
		if err != nil {
			return mmi.Fail(fmt.Sprintf("TargetPosition: %v", err))
		}
		fallback = &v
	}
	m.st.InstructionID = in.ID
	m.st.TargetID = target
	m.st.Fallback = fallback
	m.st.Active = true
	m.st.Started = false
	return mmi.OK()
}

func (m *LookAt) DoStep(_ float64, state mmi.SimulationState) mmi.SimulationResult {
	posture, ok := prepare(m.st.Description, state)
	res := mmi.SimulationResult{Posture: posture}
	if !m.st.Active {
		return res
	}
	if !ok {
		res.LogData = append(res.LogData, "posture does not match avatar description")
		return res
	}
	if !m.st.Started {
		m.st.Started = true
		res.Events = append(res.Events, mmu.Event("LookAt", mmi.EventStart, m.st.InstructionID))
	}

	target, found := m.target()
	if !found {
		res.LogData = append(res.LogData, fmt.Sprintf("look-at target %s not found", m.st.TargetID))
		return res
	}
	root, _ := readOffset(m.st.Description, posture.PostureData, mmi.JointPelvisCentre)
	head := root.Add(mgl64.Vec3{0, headHeight, 0})
	dir := target.Sub(head)
	if dir.Len() < 1e-9 {
		return res
	}
	yaw := math.Atan2(dir[0], dir[2])
	pitch := -math.Atan2(dir[1], math.Hypot(dir[0], dir[2]))
	q := mgl64.QuatRotate(yaw, mgl64.Vec3{0, 1, 0}).Mul(mgl64.QuatRotate(pitch, mgl64.Vec3{1, 0, 0}))
	if setRotation(m.st.Description, posture.PostureData, mmi.JointHead, q) {
		res.Posture.PartialJointList = []mmi.JointType{mmi.JointHead}
	}
	return res
}

func (m *LookAt) target() (mgl64.Vec3, bool) {
	if m.env.Scene != nil {
		if obj, ok := m.env.Scene.GetSceneObjectByID(m.st.TargetID); ok {
			return obj.Transform.Position.Vec(), true
		}
	}
	if m.st.Fallback != nil {
		return m.st.Fallback.Vec(), true
	}
	return mgl64.Vec3{}, false
}

func (m *LookAt) Abort(instructionID string) mmi.BoolResponse {
	if instructionID == "" || instructionID == m.st.InstructionID {
		m.st.Active = false
	}
	return mmi.OK()
}

func (m *LookAt) CreateCheckpoint() ([]byte, error) { return mmu.EncodeCheckpoint(m.st) }

func (m *LookAt) RestoreCheckpoint(data []byte) error {
	var st lookAtState
	if err := mmu.DecodeCheckpoint(data, &st); err != nil {
		return err
	}
	m.st = st
	return nil
}
