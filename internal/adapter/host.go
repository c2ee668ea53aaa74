package adapter

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/mmu"
)

type Config struct {
	// SessionTimeout is how long a scene may stay idle before the cleaner
	// disposes its MMUs.
	SessionTimeout  time.Duration
	CleanupInterval time.Duration
	// Now is the clock used for session bookkeeping (tests).
	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{SessionTimeout: 30 * time.Minute, CleanupInterval: time.Minute}
}

// Host runs MMUs in-process for any number of sessions. It implements Adapter
// directly and is what the adapter binary serves over RPC.
type Host struct {
	cfg      Config
	catalog  *mmu.Catalog
	log      *log.Logger
	sessions *SessionData

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
	started   atomic.Bool
}

var _ Adapter = (*Host)(nil)

func NewHost(cfg Config, catalog *mmu.Catalog, logger *log.Logger) *Host {
	def := DefaultConfig()
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = def.SessionTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if catalog == nil {
		catalog = mmu.NewCatalog()
	}
	return &Host{
		cfg:      cfg,
		catalog:  catalog,
		log:      logger,
		sessions: NewSessionData(logger, cfg.Now),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the session cleaner.
func (h *Host) Start() {
	h.startOnce.Do(func() {
		h.started.Store(true)
		go h.runCleaner()
	})
}

// Close stops the cleaner and disposes every hosted MMU. Safe to call more than once.
func (h *Host) Close() {
	h.closeOnce.Do(func() {
		close(h.stop)
		if h.started.Load() {
			<-h.done
		}
		insts := h.sessions.drain()
		for _, inst := range insts {
			h.dispose(inst)
		}
		if len(insts) > 0 {
			h.log.Printf("closed: disposed %d mmus", len(insts))
		}
	})
}

func (h *Host) Sessions() *SessionData { return h.sessions }

func (h *Host) CreateSession(_ context.Context, sessionID string) mmi.BoolResponse {
	if !h.sessions.Create(sessionID) {
		return mmi.Fail("invalid session id " + strconv.Quote(sessionID))
	}
	return mmi.OK()
}

func (h *Host) CloseSession(_ context.Context, sessionID string) mmi.BoolResponse {
	insts, ok := h.sessions.remove(sessionID)
	if !ok {
		// Closing an unknown session is accepted.
		return mmi.OK()
	}
	for _, inst := range insts {
		h.dispose(inst)
	}
	return mmi.OK()
}

func (h *Host) GetLoadableMMUs(context.Context) []mmi.MMUDescription {
	return h.catalog.Descriptions()
}

func (h *Host) GetMMus(_ context.Context, sessionID string) []mmi.MMUDescription {
	_, av, ok := h.sessions.Lookup(sessionID)
	if !ok {
		return nil
	}
	var out []mmi.MMUDescription
	for _, inst := range h.sessions.instances(av) {
		out = append(out, inst.desc)
	}
	return out
}

func (h *Host) GetDescription(_ context.Context, mmuID, sessionID string) *mmi.MMUDescription {
	inst := h.sessions.instance(mmuID, sessionID)
	if inst == nil {
		return nil
	}
	d := inst.desc
	return &d
}

// LoadMMUs instantiates the requested MMUs for the session, creating the
// session if needed. Unknown IDs are skipped. The result maps MMU ID to the
// new instance ID.
func (h *Host) LoadMMUs(_ context.Context, ids []string, sessionID string) map[string]string {
	out := map[string]string{}
	sc, av, ok := h.sessions.Ensure(sessionID)
	if !ok {
		return out
	}
	for _, key := range ids {
		id, f, err := h.catalog.Resolve(key)
		if err != nil {
			h.log.Printf("load %s: %v", sessionID, err)
			continue
		}
		inst := &instance{
			id:    uuid.NewString(),
			mmuID: id,
			desc:  f.Description,
			state: StateLoaded,
			unit: f.New(mmu.Env{
				SessionID: sessionID,
				Scene:     sc.Scene,
				Logger:    h.log,
			}),
		}
		if old := h.sessions.put(av, inst); old != nil {
			h.dispose(old)
		}
		out[string(id)] = inst.id
	}
	return out
}

func (h *Host) Initialize(_ context.Context, desc mmi.AvatarDescription, properties map[string]string, mmuID, sessionID string) mmi.BoolResponse {
	inst := h.sessions.instance(mmuID, sessionID)
	if inst == nil {
		return mmi.Fail(notHosted(mmuID, sessionID))
	}
	if err := desc.Validate(); err != nil {
		return mmi.Fail(err.Error())
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.state == StateDisposed {
		return mmi.Fail(mmuID + " is disposed")
	}
	res := guardBool(h.log, mmuID, "Initialize", func() mmi.BoolResponse {
		return inst.unit.Initialize(desc, properties)
	})
	if res.Successful {
		inst.state = StateInitialized
	}
	return res
}

func (h *Host) AssignInstruction(_ context.Context, in mmi.Instruction, state mmi.SimulationState, mmuID, sessionID string) mmi.BoolResponse {
	inst := h.sessions.instance(mmuID, sessionID)
	if inst == nil {
		return mmi.Fail(notHosted(mmuID, sessionID))
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	switch inst.state {
	case StateInitialized, StateStepping, StateAborted:
	default:
		return mmi.Fail(fmt.Sprintf("%s cannot accept instructions while %s", mmuID, inst.state))
	}
	res := guardBool(h.log, mmuID, "AssignInstruction", func() mmi.BoolResponse {
		return inst.unit.AssignInstruction(in, state)
	})
	if res.Successful && inst.state == StateAborted {
		inst.state = StateInitialized
	}
	return res
}

func (h *Host) CheckPrerequisites(_ context.Context, in mmi.Instruction, mmuID, sessionID string) mmi.BoolResponse {
	inst := h.sessions.instance(mmuID, sessionID)
	if inst == nil {
		return mmi.Fail(notHosted(mmuID, sessionID))
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return guardBool(h.log, mmuID, "CheckPrerequisites", func() mmi.BoolResponse {
		return inst.unit.CheckPrerequisites(in)
	})
}

func (h *Host) DoStep(_ context.Context, dt float64, state mmi.SimulationState, mmuID, sessionID string) *mmi.SimulationResult {
	inst := h.sessions.instance(mmuID, sessionID)
	if inst == nil {
		return nil
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	switch inst.state {
	case StateInitialized, StateStepping:
		inst.state = StateStepping
	case StateAborted:
	default:
		return nil
	}
	var res mmi.SimulationResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				h.log.Printf("%s DoStep: panic: %v", mmuID, r)
				res = mmi.SimulationResult{
					Posture: state.Current.Clone(),
					Events:  []mmi.SimulationEvent{mmu.Event(mmuID, mmi.EventStepError, "")},
					LogData: []string{fmt.Sprintf("step failed: %v", r)},
				}
			}
		}()
		res = inst.unit.DoStep(dt, state)
	}()
	return &res
}

func (h *Host) CreateCheckpoint(_ context.Context, mmuID, sessionID string) []byte {
	inst := h.sessions.instance(mmuID, sessionID)
	if inst == nil {
		return nil
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.state == StateDisposed || inst.state == StateLoaded {
		return nil
	}
	var err error
	b := guarded(h.log, mmuID, "CreateCheckpoint", func() []byte {
		var b []byte
		b, err = inst.unit.CreateCheckpoint()
		return b
	}, func(r any) []byte {
		err = fmt.Errorf("panic: %v", r)
		return nil
	})
	if err != nil {
		h.log.Printf("%s checkpoint: %v", mmuID, err)
		return nil
	}
	return b
}

func (h *Host) RestoreCheckpoint(_ context.Context, mmuID, sessionID string, data []byte) mmi.BoolResponse {
	inst := h.sessions.instance(mmuID, sessionID)
	if inst == nil {
		return mmi.Fail(notHosted(mmuID, sessionID))
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.state == StateDisposed {
		return mmi.Fail(mmuID + " is disposed")
	}
	res := guardBool(h.log, mmuID, "RestoreCheckpoint", func() mmi.BoolResponse {
		if err := inst.unit.RestoreCheckpoint(data); err != nil {
			return mmi.Fail(fmt.Sprintf("%s restore: %v", mmuID, err))
		}
		return mmi.OK()
	})
	if !res.Successful {
		return res
	}
	if inst.state == StateLoaded {
		inst.state = StateInitialized
	}
	return mmi.OK()
}

// Abort is idempotent: aborting an aborted or disposed MMU succeeds without
// calling into it again.
func (h *Host) Abort(_ context.Context, instructionID, mmuID, sessionID string) mmi.BoolResponse {
	inst := h.sessions.instance(mmuID, sessionID)
	if inst == nil {
		return mmi.Fail(notHosted(mmuID, sessionID))
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	switch inst.state {
	case StateAborted, StateDisposed:
		return mmi.OK()
	}
	res := guardBool(h.log, mmuID, "Abort", func() mmi.BoolResponse {
		return inst.unit.Abort(instructionID)
	})
	if res.Successful && inst.state != StateLoaded {
		inst.state = StateAborted
	}
	return res
}

func (h *Host) Dispose(_ context.Context, mmuID, sessionID string) mmi.BoolResponse {
	inst := h.sessions.instance(mmuID, sessionID)
	if inst == nil {
		return mmi.Fail(notHosted(mmuID, sessionID))
	}
	return h.dispose(inst)
}

func (h *Host) dispose(inst *instance) mmi.BoolResponse {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.state == StateDisposed {
		return mmi.OK()
	}
	res := guardBool(h.log, string(inst.mmuID), "Dispose", func() mmi.BoolResponse {
		return inst.unit.Dispose(nil)
	})
	inst.state = StateDisposed
	return mmi.OK(res.LogData...)
}

func (h *Host) GetBoundaryConstraints(_ context.Context, in mmi.Instruction, mmuID, sessionID string) []mmi.Constraint {
	inst := h.sessions.instance(mmuID, sessionID)
	if inst == nil {
		return nil
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return guarded(h.log, mmuID, "GetBoundaryConstraints", func() []mmi.Constraint {
		return inst.unit.GetBoundaryConstraints(in)
	}, func(any) []mmi.Constraint { return nil })
}

func (h *Host) ExecuteFunction(_ context.Context, name string, params map[string]string, mmuID, sessionID string) map[string]string {
	inst := h.sessions.instance(mmuID, sessionID)
	if inst == nil {
		return map[string]string{}
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	out := guarded(h.log, mmuID, "ExecuteFunction", func() map[string]string {
		return inst.unit.ExecuteFunction(name, params)
	}, func(r any) map[string]string {
		return map[string]string{"error": fmt.Sprintf("%s failed: %v", name, r)}
	})
	if out == nil {
		out = map[string]string{}
	}
	return out
}

// State reports the lifecycle state of a hosted MMU.
func (h *Host) State(mmuID, sessionID string) State {
	inst := h.sessions.instance(mmuID, sessionID)
	if inst == nil {
		return StateUnloaded
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.state
}

func (h *Host) GetStatus(context.Context) map[string]string {
	started, last := h.sessions.Times()
	return map[string]string{
		"Running since":  started.Format(time.RFC3339),
		"Total Sessions": strconv.Itoa(h.sessions.Count()),
		"Loadable MMUs":  strconv.Itoa(h.catalog.Len()),
		"Last Access":    last.Format(time.RFC3339),
	}
}

// PushScene replicates a scene update into the session's scene so MMUs can
// resolve targets.
func (h *Host) PushScene(_ context.Context, update mmi.SceneUpdate, sessionID string) mmi.BoolResponse {
	sc, _, ok := h.sessions.Ensure(sessionID)
	if !ok {
		return mmi.Fail("invalid session id " + strconv.Quote(sessionID))
	}
	return sc.Scene.ApplyUpdates(update)
}

func (h *Host) GetScene(_ context.Context, sessionID string) []mmi.SceneObject {
	sc, _, ok := h.sessions.Lookup(sessionID)
	if !ok {
		return nil
	}
	return sc.Scene.GetSceneObjects()
}

func notHosted(mmuID, sessionID string) string {
	return fmt.Sprintf("MMU %s not available in session %s", mmuID, sessionID)
}

func guardBool(l *log.Logger, mmuID, op string, fn func() mmi.BoolResponse) mmi.BoolResponse {
	return guarded(l, mmuID, op, fn, func(r any) mmi.BoolResponse {
		return mmi.Fail(fmt.Sprintf("%s failed: %v", op, r))
	})
}

// guarded runs fn, turning a panic of the MMU into a logged fallback value.
func guarded[T any](l *log.Logger, mmuID, op string, fn func() T, fallback func(r any) T) (res T) {
	defer func() {
		if r := recover(); r != nil {
			l.Printf("%s %s: panic: %v", mmuID, op, r)
			res = fallback(r)
		}
	}()
	return fn()
}
