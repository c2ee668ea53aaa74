package adapter

import (
	"context"
	"encoding/json"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/protocol"
	"mosim.ai/internal/transport/rpc"
)

func handle[P any](srv *rpc.Server, method string, fn func(ctx context.Context, p P) any) {
	srv.Handle(method, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p P
		if err := rpc.Bind(raw, &p); err != nil {
			return nil, err
		}
		return fn(ctx, p), nil
	})
}

// RegisterRPC exposes a on srv as the adapter.* methods.
func RegisterRPC(srv *rpc.Server, a Adapter) {
	handle(srv, protocol.AdapterCreateSession, func(ctx context.Context, p sessionParams) any {
		return a.CreateSession(ctx, p.SessionID)
	})
	handle(srv, protocol.AdapterCloseSession, func(ctx context.Context, p sessionParams) any {
		return a.CloseSession(ctx, p.SessionID)
	})
	handle(srv, protocol.AdapterInitialize, func(ctx context.Context, p initializeParams) any {
		return a.Initialize(ctx, p.Description, p.Properties, p.MMUID, p.SessionID)
	})
	handle(srv, protocol.AdapterAssignInstruction, func(ctx context.Context, p assignParams) any {
		return a.AssignInstruction(ctx, p.Instruction, p.State, p.MMUID, p.SessionID)
	})
	handle(srv, protocol.AdapterCheckPrerequisites, func(ctx context.Context, p instructionParams) any {
		return a.CheckPrerequisites(ctx, p.Instruction, p.MMUID, p.SessionID)
	})
	handle(srv, protocol.AdapterDoStep, func(ctx context.Context, p stepParams) any {
		return a.DoStep(ctx, p.Time, p.State, p.MMUID, p.SessionID)
	})
	handle(srv, protocol.AdapterCreateCheckpoint, func(ctx context.Context, p routeParams) any {
		return a.CreateCheckpoint(ctx, p.MMUID, p.SessionID)
	})
	handle(srv, protocol.AdapterRestoreCheckpoint, func(ctx context.Context, p restoreParams) any {
		return a.RestoreCheckpoint(ctx, p.MMUID, p.SessionID, p.Data)
	})
	handle(srv, protocol.AdapterAbort, func(ctx context.Context, p abortParams) any {
		return a.Abort(ctx, p.InstructionID, p.MMUID, p.SessionID)
	})
	handle(srv, protocol.AdapterDispose, func(ctx context.Context, p routeParams) any {
		return a.Dispose(ctx, p.MMUID, p.SessionID)
	})
	handle(srv, protocol.AdapterGetBoundaryConstraints, func(ctx context.Context, p instructionParams) any {
		return a.GetBoundaryConstraints(ctx, p.Instruction, p.MMUID, p.SessionID)
	})
	handle(srv, protocol.AdapterExecuteFunction, func(ctx context.Context, p functionParams) any {
		return a.ExecuteFunction(ctx, p.Name, p.Params, p.MMUID, p.SessionID)
	})
	handle(srv, protocol.AdapterGetLoadableMMUs, func(ctx context.Context, _ struct{}) any {
		return a.GetLoadableMMUs(ctx)
	})
	handle(srv, protocol.AdapterGetMMus, func(ctx context.Context, p sessionParams) any {
		return a.GetMMus(ctx, p.SessionID)
	})
	handle(srv, protocol.AdapterGetDescription, func(ctx context.Context, p routeParams) any {
		return a.GetDescription(ctx, p.MMUID, p.SessionID)
	})
	handle(srv, protocol.AdapterLoadMMUs, func(ctx context.Context, p loadParams) any {
		return a.LoadMMUs(ctx, p.IDs, p.SessionID)
	})
	handle(srv, protocol.AdapterGetStatus, func(ctx context.Context, _ struct{}) any {
		return a.GetStatus(ctx)
	})
	handle(srv, protocol.AdapterPushScene, func(ctx context.Context, p pushSceneParams) any {
		return a.PushScene(ctx, p.Update, p.SessionID)
	})
	handle(srv, protocol.AdapterGetScene, func(ctx context.Context, p sessionParams) any {
		objs := a.GetScene(ctx, p.SessionID)
		if objs == nil {
			objs = []mmi.SceneObject{}
		}
		return objs
	})
}
