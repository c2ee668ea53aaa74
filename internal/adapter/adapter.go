// Package adapter hosts MMU instances per session and exposes them through the
// adapter protocol, locally or over JSON-RPC.
package adapter

import (
	"context"
	"strings"

	"mosim.ai/internal/mmi"
)

// Adapter is the adapter protocol. Every MMU-scoped call is routed by
// (mmuID, sessionID); a call that does not route returns a negative value
// (false, nil or empty) and has no side effects.
type Adapter interface {
	CreateSession(ctx context.Context, sessionID string) mmi.BoolResponse
	CloseSession(ctx context.Context, sessionID string) mmi.BoolResponse

	Initialize(ctx context.Context, desc mmi.AvatarDescription, properties map[string]string, mmuID, sessionID string) mmi.BoolResponse
	AssignInstruction(ctx context.Context, in mmi.Instruction, state mmi.SimulationState, mmuID, sessionID string) mmi.BoolResponse
	CheckPrerequisites(ctx context.Context, in mmi.Instruction, mmuID, sessionID string) mmi.BoolResponse
	DoStep(ctx context.Context, dt float64, state mmi.SimulationState, mmuID, sessionID string) *mmi.SimulationResult
	CreateCheckpoint(ctx context.Context, mmuID, sessionID string) []byte
	RestoreCheckpoint(ctx context.Context, mmuID, sessionID string, data []byte) mmi.BoolResponse
	Abort(ctx context.Context, instructionID, mmuID, sessionID string) mmi.BoolResponse
	Dispose(ctx context.Context, mmuID, sessionID string) mmi.BoolResponse
	GetBoundaryConstraints(ctx context.Context, in mmi.Instruction, mmuID, sessionID string) []mmi.Constraint
	ExecuteFunction(ctx context.Context, name string, params map[string]string, mmuID, sessionID string) map[string]string

	GetLoadableMMUs(ctx context.Context) []mmi.MMUDescription
	GetMMus(ctx context.Context, sessionID string) []mmi.MMUDescription
	GetDescription(ctx context.Context, mmuID, sessionID string) *mmi.MMUDescription
	LoadMMUs(ctx context.Context, ids []string, sessionID string) map[string]string
	GetStatus(ctx context.Context) map[string]string

	PushScene(ctx context.Context, update mmi.SceneUpdate, sessionID string) mmi.BoolResponse
	GetScene(ctx context.Context, sessionID string) []mmi.SceneObject
}

// State is the lifecycle position of one hosted MMU instance.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateInitialized
	StateStepping
	StateAborted
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "Unloaded"
	case StateLoaded:
		return "Loaded"
	case StateInitialized:
		return "Initialized"
	case StateStepping:
		return "Stepping"
	case StateAborted:
		return "Aborted"
	case StateDisposed:
		return "Disposed"
	default:
		return "Unknown"
	}
}

const defaultAvatarID = "0"

// SessionID joins a scene and avatar ID.
func SessionID(sceneID, avatarID string) string {
	if avatarID == "" {
		avatarID = defaultAvatarID
	}
	return sceneID + ":" + avatarID
}

// ParseSessionID splits "<sceneID>:<avatarID>". A missing avatar part means "0".
func ParseSessionID(sessionID string) (sceneID, avatarID string, ok bool) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", "", false
	}
	sceneID, avatarID, _ = strings.Cut(sessionID, ":")
	if sceneID == "" {
		return "", "", false
	}
	if avatarID == "" {
		avatarID = defaultAvatarID
	}
	return sceneID, avatarID, true
}
