package access

import (
	"context"

	"mosim.ai/internal/adapter"
	"mosim.ai/internal/mmi"
)

// MotionModelUnitAccess is the caller-side handle of one loaded MMU. It hides the
// (mmuID, sessionID) routing of the adapter it lives on.
type MotionModelUnitAccess struct {
	desc       mmi.MMUDescription
	instanceID string
	sessionID  string
	address    string
	adapter    adapter.Adapter
}

func (m *MotionModelUnitAccess) ID() string { return m.desc.ID }

func (m *MotionModelUnitAccess) Name() string { return m.desc.Name }

func (m *MotionModelUnitAccess) MotionType() string { return m.desc.MotionType }

func (m *MotionModelUnitAccess) Description() mmi.MMUDescription { return m.desc }

func (m *MotionModelUnitAccess) InstanceID() string { return m.instanceID }

func (m *MotionModelUnitAccess) SessionID() string { return m.sessionID }

// Address names the adapter hosting this MMU.
func (m *MotionModelUnitAccess) Address() string { return m.address }

func (m *MotionModelUnitAccess) Initialize(ctx context.Context, desc mmi.AvatarDescription, properties map[string]string) mmi.BoolResponse {
	return m.adapter.Initialize(ctx, desc, properties, m.desc.ID, m.sessionID)
}

func (m *MotionModelUnitAccess) AssignInstruction(ctx context.Context, in mmi.Instruction, state mmi.SimulationState) mmi.BoolResponse {
	return m.adapter.AssignInstruction(ctx, in, state, m.desc.ID, m.sessionID)
}

func (m *MotionModelUnitAccess) CheckPrerequisites(ctx context.Context, in mmi.Instruction) mmi.BoolResponse {
	return m.adapter.CheckPrerequisites(ctx, in, m.desc.ID, m.sessionID)
}

func (m *MotionModelUnitAccess) DoStep(ctx context.Context, dt float64, state mmi.SimulationState) *mmi.SimulationResult {
	return m.adapter.DoStep(ctx, dt, state, m.desc.ID, m.sessionID)
}

func (m *MotionModelUnitAccess) Abort(ctx context.Context, instructionID string) mmi.BoolResponse {
	return m.adapter.Abort(ctx, instructionID, m.desc.ID, m.sessionID)
}

func (m *MotionModelUnitAccess) Dispose(ctx context.Context) mmi.BoolResponse {
	return m.adapter.Dispose(ctx, m.desc.ID, m.sessionID)
}

func (m *MotionModelUnitAccess) CreateCheckpoint(ctx context.Context) []byte {
	return m.adapter.CreateCheckpoint(ctx, m.desc.ID, m.sessionID)
}

func (m *MotionModelUnitAccess) RestoreCheckpoint(ctx context.Context, data []byte) mmi.BoolResponse {
	return m.adapter.RestoreCheckpoint(ctx, m.desc.ID, m.sessionID, data)
}

func (m *MotionModelUnitAccess) GetBoundaryConstraints(ctx context.Context, in mmi.Instruction) []mmi.Constraint {
	return m.adapter.GetBoundaryConstraints(ctx, in, m.desc.ID, m.sessionID)
}

func (m *MotionModelUnitAccess) ExecuteFunction(ctx context.Context, name string, params map[string]string) map[string]string {
	return m.adapter.ExecuteFunction(ctx, name, params, m.desc.ID, m.sessionID)
}
