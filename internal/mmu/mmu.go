// Package mmu defines the contract every motion model unit implements and the typed
// catalog adapters use to instantiate them.
package mmu

import (
	"log"

	"mosim.ai/internal/mmi"
)

// MotionModelUnit is a black-box motion generator driven by instructions.
// Implementations are called from one goroutine at a time.
type MotionModelUnit interface {
	Initialize(desc mmi.AvatarDescription, properties map[string]string) mmi.BoolResponse
	AssignInstruction(in mmi.Instruction, state mmi.SimulationState) mmi.BoolResponse
	DoStep(dt float64, state mmi.SimulationState) mmi.SimulationResult
	CheckPrerequisites(in mmi.Instruction) mmi.BoolResponse
	Abort(instructionID string) mmi.BoolResponse
	Dispose(properties map[string]string) mmi.BoolResponse
	CreateCheckpoint() ([]byte, error)
	RestoreCheckpoint(data []byte) error
	GetBoundaryConstraints(in mmi.Instruction) []mmi.Constraint
	ExecuteFunction(name string, params map[string]string) map[string]string
}

// SceneReader is the read side of a scene an MMU may consult while stepping.
type SceneReader interface {
	GetSceneObjectByID(id string) (mmi.SceneObject, bool)
	GetAvatarByID(id string) (mmi.Avatar, bool)
}

// Env is what a host hands to a factory when instantiating an MMU for a session.
type Env struct {
	SessionID string
	Scene     SceneReader
	Logger    *log.Logger
}

// Base supplies the optional parts of the contract.
type Base struct{}

func (Base) CheckPrerequisites(mmi.Instruction) mmi.BoolResponse { return mmi.OK() }

func (Base) Dispose(map[string]string) mmi.BoolResponse { return mmi.OK() }

func (Base) GetBoundaryConstraints(mmi.Instruction) []mmi.Constraint { return nil }

func (Base) ExecuteFunction(string, map[string]string) map[string]string {
	return map[string]string{}
}

// Event builds a simulation event referencing an instruction.
func Event(name, typ, instructionID string) mmi.SimulationEvent {
	return mmi.SimulationEvent{Name: name, Type: typ, Reference: instructionID}
}
