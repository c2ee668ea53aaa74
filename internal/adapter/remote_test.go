package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/mmu/builtin"
	"mosim.ai/internal/protocol"
	"mosim.ai/internal/transport/rpc"
)

func newRemote(t *testing.T) (*Host, *Client) {
	t.Helper()
	h := NewHost(Config{}, builtin.Catalog(), nil)
	srv := rpc.NewServer(nil)
	RegisterRPC(srv, h)
	mux := http.NewServeMux()
	mux.HandleFunc(protocol.AdapterPath, srv.Handler())
	hs := httptest.NewServer(mux)

	url := "ws" + strings.TrimPrefix(hs.URL, "http") + protocol.AdapterPath
	c, err := Dial(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
		srv.Close(time.Second)
		hs.Close()
		h.Close()
	})
	return h, c
}

func TestRemoteRoundTrip(t *testing.T) {
	h, c := newRemote(t)
	ctx := context.Background()

	if got := c.GetLoadableMMUs(ctx); len(got) != 4 {
		t.Fatalf("loadable=%d", len(got))
	}
	if res := c.CreateSession(ctx, testSession); !res.Successful {
		t.Fatalf("create: %v", res.LogData)
	}
	loaded := c.LoadMMUs(ctx, []string{builtin.LookAtID, "missing"}, testSession)
	if len(loaded) != 1 || loaded[builtin.LookAtID] == "" {
		t.Fatalf("loaded=%v", loaded)
	}
	desc := mmi.DefaultDescription("1")
	if res := c.Initialize(ctx, desc, nil, builtin.LookAtID, testSession); !res.Successful {
		t.Fatalf("init: %v", res.LogData)
	}

	target := mmi.SceneObject{ID: "7", Transform: mmi.Transform{ID: "7", Position: mmi.Vector3{X: 0, Y: 1.65, Z: 2}, Rotation: mmi.IdentityQuaternion()}}
	if res := c.PushScene(ctx, mmi.SceneUpdate{AddedSceneObjects: []mmi.SceneObject{target}}, testSession); !res.Successful {
		t.Fatalf("push: %v", res.LogData)
	}

	state := mmi.SimulationState{Initial: desc.ZeroValues(), Current: desc.ZeroValues()}
	in := mmi.Instruction{ID: "look", MotionType: builtin.LookAtMotionType, Properties: map[string]string{"TargetID": "7"}}
	if res := c.CheckPrerequisites(ctx, in, builtin.LookAtID, testSession); !res.Successful {
		t.Fatalf("prerequisites: %v", res.LogData)
	}
	if res := c.AssignInstruction(ctx, in, state, builtin.LookAtID, testSession); !res.Successful {
		t.Fatalf("assign: %v", res.LogData)
	}
	res := c.DoStep(ctx, 0.01, state, builtin.LookAtID, testSession)
	if res == nil || len(res.Posture.PostureData) != desc.DOF() {
		t.Fatalf("step=%v", res)
	}
	if !res.Posture.Lists(mmi.JointHead) {
		t.Fatalf("partial list=%v", res.Posture.PartialJointList)
	}

	cp := c.CreateCheckpoint(ctx, builtin.LookAtID, testSession)
	if len(cp) == 0 {
		t.Fatalf("empty checkpoint")
	}
	if r := c.RestoreCheckpoint(ctx, builtin.LookAtID, testSession, cp); !r.Successful {
		t.Fatalf("restore: %v", r.LogData)
	}

	// Routing mismatch over the wire is a negative value, not an error.
	if r := c.DoStep(ctx, 0.01, state, builtin.LookAtID, "nowhere:1"); r != nil {
		t.Fatalf("mismatch returned %v", r)
	}
	if d := c.GetDescription(ctx, "missing", testSession); d != nil {
		t.Fatalf("description of missing mmu=%v", d)
	}

	if r := c.Abort(ctx, "look", builtin.LookAtID, testSession); !r.Successful {
		t.Fatalf("abort: %v", r.LogData)
	}
	if st := h.State(builtin.LookAtID, testSession); st != StateAborted {
		t.Fatalf("host state=%s", st)
	}
	if st := c.GetStatus(ctx); st["Total Sessions"] != "1" {
		t.Fatalf("status=%v", st)
	}
	if r := c.CloseSession(ctx, testSession); !r.Successful {
		t.Fatalf("close: %v", r.LogData)
	}
}

func TestRemoteTransportFailureIsNegative(t *testing.T) {
	_, c := newRemote(t)
	_ = c.Close()
	ctx := context.Background()
	if res := c.CreateSession(ctx, testSession); res.Successful {
		t.Fatalf("closed client reported success")
	}
	if got := c.LoadMMUs(ctx, []string{builtin.IdleID}, testSession); len(got) != 0 {
		t.Fatalf("closed client loaded %v", got)
	}
	if got := c.GetStatus(ctx); len(got) != 0 {
		t.Fatalf("closed client status %v", got)
	}
}
