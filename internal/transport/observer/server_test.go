package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/observerproto"
	"mosim.ai/internal/sim"
)

type fixedSource struct{ desc mmi.AvatarDescription }

func (f fixedSource) Description() mmi.AvatarDescription { return f.desc }

func (f fixedSource) CurrentFrame() uint64 { return 7 }

func newObserver(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(fixedSource{desc: mmi.DefaultDescription("avatar-1")}, 30, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/ws", s.WSHandler())
	hs := httptest.NewServer(mux)
	t.Cleanup(hs.Close)
	return s, hs
}

func subscribe(t *testing.T, s *Server, hs *httptest.Server, sub observerproto.SubscribeMsg) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.Observers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("observer never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestBootstrap(t *testing.T) {
	_, hs := newObserver(t)
	resp, err := http.Get(hs.URL + "/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	desc := mmi.DefaultDescription("avatar-1")
	if b.AvatarID != "avatar-1" || b.Frame != 7 || b.DOF != desc.DOF() || len(b.Joints) != len(desc.Layout()) {
		t.Fatalf("bootstrap: %+v", b)
	}
}

func TestFramesAreStreamed(t *testing.T) {
	s, hs := newObserver(t)
	conn := subscribe(t, s, hs, observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, EveryN: 2, IncludePosture: true})

	posture := mmi.DefaultDescription("avatar-1").ZeroValues().PostureData
	posture[0] = 1.5
	for f := uint64(1); f <= 4; f++ {
		if err := s.WriteFrame(sim.FrameLogEntry{
			Frame:    f,
			Posture:  posture,
			Digest:   sim.Digest(posture),
			Assigned: []mmi.Instruction{{ID: "walk"}},
		}); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got []observerproto.FrameMsg
	for len(got) < 2 {
		var m observerproto.FrameMsg
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v", err)
		}
		got = append(got, m)
	}
	if got[0].Frame != 2 || got[1].Frame != 4 {
		t.Fatalf("frames: %d, %d", got[0].Frame, got[1].Frame)
	}
	if got[0].Position == nil || got[0].Position.X != 1.5 || len(got[0].Posture) != len(posture) {
		t.Fatalf("posture payload: %+v", got[0])
	}
	if len(got[0].Assigned) != 1 || got[0].Assigned[0] != "walk" {
		t.Fatalf("assigned: %v", got[0].Assigned)
	}
}

func TestBadSubscribeIsRejected(t *testing.T) {
	s, hs := newObserver(t)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.WriteJSON(observerproto.SubscribeMsg{Type: "HELLO", ProtocolVersion: observerproto.Version})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v", err)
	}
	if s.Observers() != 0 {
		t.Fatalf("observers=%d", s.Observers())
	}
}
