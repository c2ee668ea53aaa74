package rpc

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"mosim.ai/internal/protocol"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
	pingEvery    = 25 * time.Second
	outQueue     = 64
)

// HandlerFunc serves one method. The returned value is marshalled as the result.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Server dispatches JSON-RPC 2.0 requests arriving over websocket connections.
// Requests on one connection are served concurrently; responses are matched by id.
type Server struct {
	log       *log.Logger
	validator *protocol.Validator
	upgrader  websocket.Upgrader

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	conns    map[*websocket.Conn]context.CancelFunc

	// wg counts in-flight requests. Adds happen under mu and only while the
	// server is open, so none can race with the Wait in Close.
	wg     sync.WaitGroup
	closed atomic.Bool
}

func NewServer(logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		log:       logger,
		validator: protocol.MustValidator(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		handlers: map[string]HandlerFunc{},
		conns:    map[*websocket.Conn]context.CancelFunc{},
	}
}

func (s *Server) Handle(method string, h HandlerFunc) {
	s.mu.Lock()
	s.handlers[method] = h
	s.mu.Unlock()
}

func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.closed.Load() {
			http.Error(rw, "closed", http.StatusServiceUnavailable)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if !s.track(conn, cancel) {
			return
		}
		defer s.untrack(conn)

		out := make(chan []byte, outQueue)

		// Writer goroutine.
		go func() {
			ping := time.NewTicker(pingEvery)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ping.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
						cancel()
						return
					}
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		})

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			if !s.begin() {
				cancel()
				break
			}
			go func(msg []byte) {
				defer s.wg.Done()
				resp := s.Dispatch(ctx, msg)
				if resp == nil {
					return
				}
				select {
				case out <- resp:
				case <-ctx.Done():
				}
			}(msg)
		}
	}
}

// Dispatch serves one raw request and returns the encoded response, or nil for
// notifications.
func (s *Server) Dispatch(ctx context.Context, msg []byte) []byte {
	req, err := parseRPCRequest(msg)
	if err != nil {
		return encode(rpcErr(nil, Errorf(protocol.ErrProtoBadRequest, "%v", err)))
	}
	if err := s.validator.ValidateRequest(msg); err != nil {
		return encode(rpcErr(req.ID, Errorf(protocol.ErrProtoBadRequest, "%v", err)))
	}
	s.mu.RLock()
	h, ok := s.handlers[req.Method]
	s.mu.RUnlock()
	if !ok {
		return encode(rpcErr(req.ID, Errorf(protocol.ErrUnknownMethod, "%s", req.Method)))
	}
	if err := s.validator.ValidateParams(req.Method, req.Params); err != nil {
		return encode(rpcErr(req.ID, Errorf(protocol.ErrBadParams, "%v", err)))
	}

	result, err := s.call(ctx, h, req)
	if len(req.ID) == 0 {
		return nil
	}
	if err != nil {
		e := asError(err)
		if e.Code == protocol.ErrInternal {
			s.log.Printf("%s: %v", req.Method, err)
		}
		return encode(rpcErr(req.ID, e))
	}
	return encode(rpcOK(req.ID, result))
}

func (s *Server) call(ctx context.Context, h HandlerFunc, req rpcRequest) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Printf("%s: panic: %v", req.Method, r)
			err = Errorf(protocol.ErrInternal, "panic in %s", req.Method)
		}
	}()
	return h(ctx, req.Params)
}

// track registers a connection; it refuses once Close has started.
func (s *Server) track(c *websocket.Conn, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.conns[c] = cancel
	return true
}

// begin counts one in-flight request; it refuses once Close has started.
func (s *Server) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// Close drops every connection and waits up to timeout for in-flight handlers.
func (s *Server) Close(timeout time.Duration) {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	for c, cancel := range s.conns {
		cancel()
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.log.Printf("close: handlers still running after %s", timeout)
	}
}

func encode(resp rpcResponse) []byte {
	b, err := json.Marshal(resp)
	if err != nil {
		b, _ = json.Marshal(rpcErr(resp.ID, Errorf(protocol.ErrInternal, "encode: %v", err)))
	}
	return b
}
