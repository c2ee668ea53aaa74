package sim

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mosim.ai/internal/cosim"
	"mosim.ai/internal/mmi"
	"mosim.ai/internal/scene"
)

const DefaultTickRateHz = 30

var ErrStopped = errors.New("runtime stopped")

type Config struct {
	TickRateHz  int
	Description mmi.AvatarDescription
	// AvatarName is used when the avatar has to be added to the scene.
	AvatarName string
}

// Runtime owns the avatar posture. Everything below the channels is touched
// only by the loop goroutine, or by StepOnce when the loop is not running.
type Runtime struct {
	cfg   Config
	log   *log.Logger
	co    *cosim.CoSimulator
	scene *scene.Store

	publisher   ScenePublisher
	frameLogger FrameLogger
	eventLogger EventLogger
	indexer     Indexer

	assign chan AssignRequest
	abort  chan AbortRequest
	stop   chan struct{}
	done   chan struct{}

	stopOnce sync.Once
	running  atomic.Bool

	frame   atomic.Uint64
	simTime float64
	current mmi.AvatarPostureValues
}

func New(cfg Config, co *cosim.CoSimulator, store *scene.Store, logger *log.Logger) (*Runtime, error) {
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = DefaultTickRateHz
	}
	if err := cfg.Description.Validate(); err != nil {
		return nil, err
	}
	if co == nil || store == nil {
		return nil, errors.New("runtime needs a co-simulator and a scene store")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	r := &Runtime{
		cfg:    cfg,
		log:    logger,
		co:     co,
		scene:  store,
		assign: make(chan AssignRequest, 256),
		abort:  make(chan AbortRequest, 256),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	avatarID := cfg.Description.AvatarID
	if a, ok := store.GetAvatarByID(avatarID); ok && cfg.Description.CheckValues(a.PostureValues) == nil {
		r.current = a.PostureValues.Clone()
	} else {
		r.current = cfg.Description.ZeroValues()
	}
	if _, ok := store.GetAvatarByID(avatarID); !ok {
		name := cfg.AvatarName
		if name == "" {
			name = avatarID
		}
		res := store.AddAvatar(mmi.Avatar{ID: avatarID, Name: name, Description: cfg.Description, PostureValues: r.current.Clone()})
		if !res.Successful {
			return nil, errors.New("add avatar: " + strings.Join(res.LogData, "; "))
		}
	}
	return r, nil
}

func (r *Runtime) SetPublisher(p ScenePublisher) { r.publisher = p }

func (r *Runtime) SetFrameLogger(l FrameLogger) { r.frameLogger = l }

func (r *Runtime) SetEventLogger(l EventLogger) { r.eventLogger = l }

func (r *Runtime) SetIndexer(ix Indexer) { r.indexer = ix }

func (r *Runtime) Assign() chan<- AssignRequest { return r.assign }

func (r *Runtime) AbortQueue() chan<- AbortRequest { return r.abort }

func (r *Runtime) CoSimulator() *cosim.CoSimulator { return r.co }

func (r *Runtime) Scene() *scene.Store { return r.scene }

func (r *Runtime) Description() mmi.AvatarDescription { return r.cfg.Description }

func (r *Runtime) CurrentFrame() uint64 { return r.frame.Load() }

// Run ticks until ctx is done or Stop is called. Requests received between two
// ticks are applied at the next tick boundary, in arrival order.
func (r *Runtime) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("runtime already running")
	}
	defer close(r.done)

	interval := time.Second / time.Duration(r.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		pendingAssign []AssignRequest
		pendingAbort  []AbortRequest
	)
	fail := func() {
		for _, req := range pendingAssign {
			reply(req.Resp, mmi.Fail(ErrStopped.Error()))
		}
		for _, req := range pendingAbort {
			reply(req.Resp, mmi.Fail(ErrStopped.Error()))
		}
	}
	for {
		select {
		case <-ctx.Done():
			fail()
			return ctx.Err()
		case <-r.stop:
			fail()
			return nil
		case req := <-r.assign:
			pendingAssign = append(pendingAssign, req)
		case req := <-r.abort:
			pendingAbort = append(pendingAbort, req)
		case <-ticker.C:
			r.step(ctx, interval.Seconds(), pendingAssign, pendingAbort)
			pendingAssign = pendingAssign[:0]
			pendingAbort = pendingAbort[:0]
		}
	}
}

func (r *Runtime) Stop() { r.stopOnce.Do(func() { close(r.stop) }) }

// Done is closed when Run returns.
func (r *Runtime) Done() <-chan struct{} { return r.done }

// AssignInstruction queues an instruction for the next tick and waits for the
// co-simulator's answer.
func (r *Runtime) AssignInstruction(ctx context.Context, in mmi.Instruction) mmi.BoolResponse {
	resp := make(chan mmi.BoolResponse, 1)
	select {
	case r.assign <- AssignRequest{Instruction: in, Resp: resp}:
	case <-ctx.Done():
		return mmi.Fail(ctx.Err().Error())
	case <-r.stop:
		return mmi.Fail(ErrStopped.Error())
	}
	return wait(ctx, resp, r.stop)
}

// Abort queues an abort for the next tick. An empty ID aborts every task.
func (r *Runtime) Abort(ctx context.Context, instructionID string) mmi.BoolResponse {
	resp := make(chan mmi.BoolResponse, 1)
	select {
	case r.abort <- AbortRequest{InstructionID: instructionID, Resp: resp}:
	case <-ctx.Done():
		return mmi.Fail(ctx.Err().Error())
	case <-r.stop:
		return mmi.Fail(ErrStopped.Error())
	}
	return wait(ctx, resp, r.stop)
}

func wait(ctx context.Context, resp <-chan mmi.BoolResponse, stop <-chan struct{}) mmi.BoolResponse {
	select {
	case res := <-resp:
		return res
	case <-ctx.Done():
		return mmi.Fail(ctx.Err().Error())
	case <-stop:
		// The loop answers everything it had queued before exiting.
		select {
		case res := <-resp:
			return res
		case <-time.After(100 * time.Millisecond):
			return mmi.Fail(ErrStopped.Error())
		}
	}
}

// StepOnce runs one tick synchronously. It must not be used while Run is active.
// Responses come back aborts first, then assignments, each in argument order.
func (r *Runtime) StepOnce(ctx context.Context, dt float64, assigns []mmi.Instruction, aborts []string) (FrameLogEntry, []mmi.BoolResponse) {
	var (
		as  []AssignRequest
		ab  []AbortRequest
		out []chan mmi.BoolResponse
	)
	for _, id := range aborts {
		ch := make(chan mmi.BoolResponse, 1)
		ab = append(ab, AbortRequest{InstructionID: id, Resp: ch})
		out = append(out, ch)
	}
	for _, in := range assigns {
		ch := make(chan mmi.BoolResponse, 1)
		as = append(as, AssignRequest{Instruction: in, Resp: ch})
		out = append(out, ch)
	}
	entry := r.step(ctx, dt, as, ab)
	res := make([]mmi.BoolResponse, 0, len(out))
	for _, ch := range out {
		res = append(res, <-ch)
	}
	return entry, res
}

// Posture returns the posture produced by the last tick.
func (r *Runtime) Posture() mmi.AvatarPostureValues {
	a, ok := r.scene.GetAvatarByID(r.cfg.Description.AvatarID)
	if !ok {
		return mmi.AvatarPostureValues{}
	}
	return a.PostureValues
}

func (r *Runtime) step(ctx context.Context, dt float64, assigns []AssignRequest, aborts []AbortRequest) FrameLogEntry {
	frame := r.frame.Load()
	avatarID := r.cfg.Description.AvatarID
	state := mmi.SimulationState{Initial: r.current.Clone(), Current: r.current.Clone()}

	entry := FrameLogEntry{Frame: frame, Time: r.simTime, DT: dt, AvatarID: avatarID}

	// Aborts before assignments so an abort-then-reassign in one tick keeps the new task.
	for _, req := range aborts {
		res := r.co.Abort(ctx, req.InstructionID)
		if res.Successful {
			entry.Aborted = append(entry.Aborted, req.InstructionID)
		}
		reply(req.Resp, res)
	}
	for _, req := range assigns {
		in := req.Instruction
		if in.ID == "" {
			in.ID = uuid.NewString()
		}
		res := r.co.AssignInstruction(ctx, in, state)
		if res.Successful {
			entry.Assigned = append(entry.Assigned, in)
		} else {
			r.log.Printf("frame %d: assign %s (%s) rejected: %v", frame, in.ID, in.MotionType, res.LogData)
		}
		reply(req.Resp, res)
	}

	merged := r.co.DoStep(ctx, dt, state)
	if r.cfg.Description.CheckValues(merged.Posture) == nil {
		r.current = merged.Posture.Clone()
		r.current.AvatarID = avatarID
	}
	r.simTime += dt

	if res := r.scene.PostureValuesChanged(avatarID, r.current.Clone()); !res.Successful {
		r.log.Printf("frame %d: posture update: %v", frame, res.LogData)
	}
	if len(merged.SceneManipulations) > 0 {
		if res := r.scene.ApplyManipulations(merged.SceneManipulations); len(res.LogData) > 0 {
			r.log.Printf("frame %d: manipulations: %v", frame, res.LogData)
		}
	}
	r.scene.SetSimulationTime(r.simTime)
	if r.publisher != nil {
		if update := r.scene.GetSceneChanges(); !update.Empty() {
			if !r.publisher.PushScene(ctx, update) {
				r.log.Printf("frame %d: scene push failed", frame)
			}
			r.scene.ClearChanges()
		}
	}

	entry.Tasks = r.co.Tasks()
	entry.Events = merged.Events
	entry.Posture = append([]float64(nil), r.current.PostureData...)
	entry.LogData = merged.LogData
	entry.Digest = Digest(r.current.PostureData)

	if r.eventLogger != nil {
		for _, ev := range merged.Events {
			_ = r.eventLogger.WriteEvent(EventLogEntry{Frame: frame, Time: entry.Time, AvatarID: avatarID, Event: ev})
		}
	}
	if r.frameLogger != nil {
		_ = r.frameLogger.WriteFrame(entry)
	}
	if r.indexer != nil {
		r.indexer.RecordFrame(entry)
	}
	r.frame.Store(frame + 1)
	return entry
}

func reply(ch chan mmi.BoolResponse, res mmi.BoolResponse) {
	if ch == nil {
		return
	}
	select {
	case ch <- res:
	default:
	}
}

// Digest is a sha256 over the little-endian bit patterns of the posture values.
func Digest(values []float64) string {
	h := sha256.New()
	var buf [8]byte
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
