package adapter

import (
	"context"
	"io"
	"log"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/protocol"
	"mosim.ai/internal/transport/rpc"
)

// Client talks to a remote adapter. Transport failures surface as the same
// negative values a routing mismatch produces and are logged.
type Client struct {
	conn *rpc.Client
	log  *log.Logger
}

var _ Adapter = (*Client)(nil)

// Dial connects to an adapter websocket endpoint (ws://host:port/v1/adapter).
func Dial(ctx context.Context, url string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	conn, err := rpc.Dial(ctx, url, logger)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, log: logger}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) Address() string { return c.conn.URL() }

func (c *Client) call(ctx context.Context, method string, params any, result any) bool {
	if err := c.conn.Call(ctx, method, params, result); err != nil {
		c.log.Printf("%s %s: %v", c.conn.URL(), method, err)
		return false
	}
	return true
}

func (c *Client) boolCall(ctx context.Context, method string, params any) mmi.BoolResponse {
	var res mmi.BoolResponse
	if !c.call(ctx, method, params, &res) {
		return mmi.Fail(method + " failed")
	}
	return res
}

func (c *Client) CreateSession(ctx context.Context, sessionID string) mmi.BoolResponse {
	return c.boolCall(ctx, protocol.AdapterCreateSession, sessionParams{SessionID: sessionID})
}

func (c *Client) CloseSession(ctx context.Context, sessionID string) mmi.BoolResponse {
	return c.boolCall(ctx, protocol.AdapterCloseSession, sessionParams{SessionID: sessionID})
}

func (c *Client) Initialize(ctx context.Context, desc mmi.AvatarDescription, properties map[string]string, mmuID, sessionID string) mmi.BoolResponse {
	return c.boolCall(ctx, protocol.AdapterInitialize, initializeParams{
		MMUID: mmuID, SessionID: sessionID, Description: desc, Properties: properties,
	})
}

func (c *Client) AssignInstruction(ctx context.Context, in mmi.Instruction, state mmi.SimulationState, mmuID, sessionID string) mmi.BoolResponse {
	return c.boolCall(ctx, protocol.AdapterAssignInstruction, assignParams{
		MMUID: mmuID, SessionID: sessionID, Instruction: in, State: state,
	})
}

func (c *Client) CheckPrerequisites(ctx context.Context, in mmi.Instruction, mmuID, sessionID string) mmi.BoolResponse {
	return c.boolCall(ctx, protocol.AdapterCheckPrerequisites, instructionParams{
		MMUID: mmuID, SessionID: sessionID, Instruction: in,
	})
}

func (c *Client) DoStep(ctx context.Context, dt float64, state mmi.SimulationState, mmuID, sessionID string) *mmi.SimulationResult {
	var res *mmi.SimulationResult
	if !c.call(ctx, protocol.AdapterDoStep, stepParams{MMUID: mmuID, SessionID: sessionID, Time: dt, State: state}, &res) {
		return nil
	}
	return res
}

func (c *Client) CreateCheckpoint(ctx context.Context, mmuID, sessionID string) []byte {
	var b []byte
	if !c.call(ctx, protocol.AdapterCreateCheckpoint, routeParams{MMUID: mmuID, SessionID: sessionID}, &b) {
		return nil
	}
	return b
}

func (c *Client) RestoreCheckpoint(ctx context.Context, mmuID, sessionID string, data []byte) mmi.BoolResponse {
	return c.boolCall(ctx, protocol.AdapterRestoreCheckpoint, restoreParams{MMUID: mmuID, SessionID: sessionID, Data: data})
}

func (c *Client) Abort(ctx context.Context, instructionID, mmuID, sessionID string) mmi.BoolResponse {
	return c.boolCall(ctx, protocol.AdapterAbort, abortParams{MMUID: mmuID, SessionID: sessionID, InstructionID: instructionID})
}

func (c *Client) Dispose(ctx context.Context, mmuID, sessionID string) mmi.BoolResponse {
	return c.boolCall(ctx, protocol.AdapterDispose, routeParams{MMUID: mmuID, SessionID: sessionID})
}

func (c *Client) GetBoundaryConstraints(ctx context.Context, in mmi.Instruction, mmuID, sessionID string) []mmi.Constraint {
	var out []mmi.Constraint
	c.call(ctx, protocol.AdapterGetBoundaryConstraints, instructionParams{MMUID: mmuID, SessionID: sessionID, Instruction: in}, &out)
	return out
}

func (c *Client) ExecuteFunction(ctx context.Context, name string, params map[string]string, mmuID, sessionID string) map[string]string {
	out := map[string]string{}
	if !c.call(ctx, protocol.AdapterExecuteFunction, functionParams{MMUID: mmuID, SessionID: sessionID, Name: name, Params: params}, &out) {
		return map[string]string{}
	}
	return out
}

func (c *Client) GetLoadableMMUs(ctx context.Context) []mmi.MMUDescription {
	var out []mmi.MMUDescription
	c.call(ctx, protocol.AdapterGetLoadableMMUs, nil, &out)
	return out
}

func (c *Client) GetMMus(ctx context.Context, sessionID string) []mmi.MMUDescription {
	var out []mmi.MMUDescription
	c.call(ctx, protocol.AdapterGetMMus, sessionParams{SessionID: sessionID}, &out)
	return out
}

func (c *Client) GetDescription(ctx context.Context, mmuID, sessionID string) *mmi.MMUDescription {
	var out *mmi.MMUDescription
	c.call(ctx, protocol.AdapterGetDescription, routeParams{MMUID: mmuID, SessionID: sessionID}, &out)
	return out
}

func (c *Client) LoadMMUs(ctx context.Context, ids []string, sessionID string) map[string]string {
	out := map[string]string{}
	if !c.call(ctx, protocol.AdapterLoadMMUs, loadParams{SessionID: sessionID, IDs: ids}, &out) {
		return map[string]string{}
	}
	return out
}

func (c *Client) GetStatus(ctx context.Context) map[string]string {
	out := map[string]string{}
	if !c.call(ctx, protocol.AdapterGetStatus, nil, &out) {
		return map[string]string{}
	}
	return out
}

func (c *Client) PushScene(ctx context.Context, update mmi.SceneUpdate, sessionID string) mmi.BoolResponse {
	return c.boolCall(ctx, protocol.AdapterPushScene, pushSceneParams{SessionID: sessionID, Update: update})
}

func (c *Client) GetScene(ctx context.Context, sessionID string) []mmi.SceneObject {
	var out []mmi.SceneObject
	c.call(ctx, protocol.AdapterGetScene, sessionParams{SessionID: sessionID}, &out)
	return out
}
