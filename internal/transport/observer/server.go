// Package observer streams co-simulation frames to loopback viewers over websocket.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/observerproto"
	"mosim.ai/internal/sim"
)

// Source is the runtime view the bootstrap response is built from.
type Source interface {
	Description() mmi.AvatarDescription
	CurrentFrame() uint64
}

type subscriber struct {
	out chan []byte

	mu             sync.Mutex
	everyN         int
	includePosture bool
}

func (s *subscriber) settings() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.everyN, s.includePosture
}

func (s *subscriber) update(sub observerproto.SubscribeMsg) {
	s.mu.Lock()
	s.everyN = sub.EveryN
	s.includePosture = sub.IncludePosture
	s.mu.Unlock()
}

// Server fans frames out to observers. It implements sim.FrameLogger; a slow
// observer loses frames instead of stalling the tick loop.
type Server struct {
	src        Source
	tickRateHz int
	log        *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	dropped  atomic.Uint64

	mu   sync.Mutex
	subs map[string]*subscriber
}

var _ sim.FrameLogger = (*Server)(nil)

func NewServer(src Source, tickRateHz int, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		src:        src,
		tickRateHz: tickRateHz,
		log:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: map[string]*subscriber{},
	}
}

// Observers returns the number of connected observers.
func (s *Server) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Dropped counts frames not delivered because an observer's queue was full.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) WriteFrame(e sim.FrameLogEntry) error {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	if len(subs) == 0 {
		return nil
	}

	msg := observerproto.FrameMsg{
		Type:            "FRAME",
		ProtocolVersion: observerproto.Version,
		Frame:           e.Frame,
		Time:            e.Time,
		Tasks:           e.Tasks,
		Aborted:         e.Aborted,
		Events:          e.Events,
		Digest:          e.Digest,
	}
	for _, in := range e.Assigned {
		msg.Assigned = append(msg.Assigned, in.ID)
	}
	if p, ok := (mmi.AvatarPostureValues{PostureData: e.Posture}).Position(); ok {
		msg.Position = &p
	}
	lean, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var full []byte

	for _, sub := range subs {
		everyN, withPosture := sub.settings()
		if everyN > 1 && e.Frame%uint64(everyN) != 0 {
			continue
		}
		b := lean
		if withPosture {
			if full == nil {
				msg.Posture = e.Posture
				if full, err = json.Marshal(msg); err != nil {
					return err
				}
			}
			b = full
		}
		select {
		case sub.out <- b:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		desc := s.src.Description()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			AvatarID:        desc.AvatarID,
			Frame:           s.src.CurrentFrame(),
			TickRateHz:      s.tickRateHz,
			DOF:             desc.DOF(),
			Joints:          observerproto.Joints(desc),
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}
		normalizeSubscribe(&sub)

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		subscr := &subscriber{out: make(chan []byte, 64)}
		subscr.update(sub)
		s.mu.Lock()
		s.subs[sid] = subscr
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.subs, sid)
			s.mu.Unlock()
		}()
		s.log.Printf("observer %s connected from %s", sid, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-subscr.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var sub observerproto.SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
				continue
			}
			normalizeSubscribe(&sub)
			subscr.update(sub)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.EveryN <= 0 {
		sub.EveryN = 1
	}
	if sub.EveryN > 1000 {
		sub.EveryN = 1000
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
