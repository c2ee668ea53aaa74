// Package access discovers MMUs across adapters and loads and initializes them
// for one co-simulation session.
package access

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mosim.ai/internal/adapter"
	"mosim.ai/internal/mmi"
)

var (
	ErrNoAdapters   = errors.New("no adapter connected")
	ErrNotConnected = errors.New("not connected")
)

// DialFunc resolves an adapter address to a connected adapter.
type DialFunc func(ctx context.Context, address string) (adapter.Adapter, error)

type Options struct {
	Logger *log.Logger
	// Dial defaults to a websocket dial of the address.
	Dial DialFunc
	// SceneID defaults to a fresh uuid.
	SceneID string
}

type connection struct {
	address string
	adapter adapter.Adapter
}

// MMUAccess is the co-simulation side of the adapter protocol for one session.
type MMUAccess struct {
	log     *log.Logger
	dial    DialFunc
	sceneID string

	mu        sync.RWMutex
	sessionID string
	conns     []connection
	loadable  []mmi.MMUDescription
	offeredBy map[string]int // mmu id -> index into conns
	mmus      []*MotionModelUnitAccess
}

func New(opts Options) *MMUAccess {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.SceneID == "" {
		opts.SceneID = uuid.NewString()
	}
	m := &MMUAccess{
		log:       opts.Logger,
		dial:      opts.Dial,
		sceneID:   opts.SceneID,
		offeredBy: map[string]int{},
	}
	if m.dial == nil {
		m.dial = func(ctx context.Context, address string) (adapter.Adapter, error) {
			return adapter.Dial(ctx, address, opts.Logger)
		}
	}
	return m
}

// LocalDialer serves in-process adapters by name and falls back to next for
// anything else (nil next rejects unknown names).
func LocalDialer(local map[string]adapter.Adapter, next DialFunc) DialFunc {
	return func(ctx context.Context, address string) (adapter.Adapter, error) {
		if a, ok := local[address]; ok {
			return a, nil
		}
		if next == nil {
			return nil, fmt.Errorf("unknown adapter %q", address)
		}
		return next(ctx, address)
	}
}

func (m *MMUAccess) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

func (m *MMUAccess) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns) > 0
}

// Addresses lists the connected adapters in connection order.
func (m *MMUAccess) Addresses() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c.address)
	}
	return out
}

// MMUs returns the loaded handles in load order.
func (m *MMUAccess) MMUs() []*MotionModelUnitAccess {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*MotionModelUnitAccess(nil), m.mmus...)
}

func (m *MMUAccess) MMU(id string) (*MotionModelUnitAccess, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.mmus {
		if h.ID() == id {
			return h, true
		}
	}
	return nil, false
}

// Connect creates the session on every address in parallel. Adapters that fail
// or answer after ctx is done are dropped. It succeeds iff at least one adapter
// connected before ctx was done; a late success releases its sessions again.
func (m *MMUAccess) Connect(ctx context.Context, addresses []string, avatarID string) error {
	sessionID := adapter.SessionID(m.sceneID, avatarID)
	slots := make([]adapter.Adapter, len(addresses))

	g, gctx := errgroup.WithContext(ctx)
	for i, addr := range addresses {
		g.Go(func() error {
			a, err := m.dial(gctx, addr)
			if err != nil {
				m.log.Printf("connect %s: %v", addr, err)
				return nil
			}
			res := a.CreateSession(gctx, sessionID)
			if !res.Successful || gctx.Err() != nil {
				m.log.Printf("connect %s: session %s not confirmed %v", addr, sessionID, res.LogData)
				if res.Successful && !m.connectedTo(addr) {
					releaseSession(a, sessionID)
				}
				closeAdapter(a)
				return nil
			}
			slots[i] = a
			return nil
		})
	}
	_ = g.Wait()

	var conns []connection
	for i, a := range slots {
		if a != nil {
			conns = append(conns, connection{address: addresses[i], adapter: a})
		}
	}
	if len(conns) == 0 {
		return ErrNoAdapters
	}
	m.mu.Lock()
	if err := ctx.Err(); err != nil {
		var late []connection
		for _, c := range conns {
			if !m.connectedToLocked(c.address) {
				late = append(late, c)
			}
		}
		m.mu.Unlock()
		for _, c := range late {
			releaseSession(c.adapter, sessionID)
			closeAdapter(c.adapter)
		}
		return fmt.Errorf("connect: %w", err)
	}
	m.sessionID = sessionID
	m.conns = append(m.conns, conns...)
	m.mu.Unlock()
	m.log.Printf("session %s: %d/%d adapters connected", sessionID, len(conns), len(addresses))
	return nil
}

// connectedTo reports whether an earlier Connect already holds the address, in
// which case its session must survive a failed reconnect.
func (m *MMUAccess) connectedTo(address string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connectedToLocked(address)
}

func (m *MMUAccess) connectedToLocked(address string) bool {
	for _, c := range m.conns {
		if c.address == address {
			return true
		}
	}
	return false
}

// GetLoadableMMUs aggregates the adapters' catalogs. An MMU offered by several
// adapters is attributed to the first one.
func (m *MMUAccess) GetLoadableMMUs(ctx context.Context) []mmi.MMUDescription {
	m.mu.RLock()
	conns := append([]connection(nil), m.conns...)
	m.mu.RUnlock()

	lists := make([][]mmi.MMUDescription, len(conns))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range conns {
		g.Go(func() error {
			lists[i] = c.adapter.GetLoadableMMUs(gctx)
			return nil
		})
	}
	_ = g.Wait()

	var out []mmi.MMUDescription
	offered := map[string]int{}
	for i, list := range lists {
		for _, d := range list {
			if _, ok := offered[d.ID]; ok {
				continue
			}
			offered[d.ID] = i
			out = append(out, d)
		}
	}
	m.mu.Lock()
	m.loadable = out
	m.offeredBy = offered
	m.mu.Unlock()
	return append([]mmi.MMUDescription(nil), out...)
}

// resolveLocked maps a requested key to a loadable description, by ID first
// and by name as a fallback.
func (m *MMUAccess) resolveLocked(key string) (mmi.MMUDescription, bool) {
	for _, d := range m.loadable {
		if d.ID == key {
			return d, true
		}
	}
	for _, d := range m.loadable {
		if d.Name == key {
			return d, true
		}
	}
	return mmi.MMUDescription{}, false
}

// LoadMMUs loads the requested MMUs, each on the first adapter offering it.
// Keys are MMU IDs or names; handles always carry the MMU ID. Already loaded
// handles for other IDs are kept. Instances that finish loading after ctx is
// done are disposed instead of being installed.
func (m *MMUAccess) LoadMMUs(ctx context.Context, keys []string) error {
	if !m.IsConnected() {
		return ErrNotConnected
	}
	m.mu.RLock()
	empty := len(m.loadable) == 0
	m.mu.RUnlock()
	if empty {
		m.GetLoadableMMUs(ctx)
	}

	m.mu.RLock()
	sessionID := m.sessionID
	conns := append([]connection(nil), m.conns...)
	descs := map[string]mmi.MMUDescription{}
	pos := map[string]int{}
	perAdapter := map[int][]string{}
	var missing []string
	for _, key := range keys {
		d, ok := m.resolveLocked(key)
		if !ok {
			missing = append(missing, key)
			continue
		}
		if _, dup := descs[d.ID]; dup {
			continue
		}
		descs[d.ID] = d
		pos[d.ID] = len(pos)
		i := m.offeredBy[d.ID]
		perAdapter[i] = append(perAdapter[i], d.ID)
	}
	m.mu.RUnlock()

	var mu sync.Mutex
	var handles []*MotionModelUnitAccess
	g, gctx := errgroup.WithContext(ctx)
	for i, want := range perAdapter {
		c := conns[i]
		g.Go(func() error {
			loaded := c.adapter.LoadMMUs(gctx, want, sessionID)
			mu.Lock()
			defer mu.Unlock()
			for _, id := range want {
				inst, ok := loaded[id]
				if !ok {
					missing = append(missing, id)
					continue
				}
				handles = append(handles, &MotionModelUnitAccess{
					desc:       descs[id],
					instanceID: inst,
					sessionID:  sessionID,
					address:    c.address,
					adapter:    c.adapter,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	// Keep the caller's order.
	sort.Slice(handles, func(a, b int) bool { return pos[handles[a].ID()] < pos[handles[b].ID()] })

	m.mu.Lock()
	if err := ctx.Err(); err != nil {
		// The adapters replaced any earlier instance of these IDs, so the old
		// handles go too.
		late := map[string]bool{}
		for _, h := range handles {
			late[h.ID()] = true
		}
		kept := m.mmus[:0]
		for _, old := range m.mmus {
			if !late[old.ID()] {
				kept = append(kept, old)
			}
		}
		m.mmus = kept
		m.mu.Unlock()
		disposeHandles(handles)
		return fmt.Errorf("load: %w", err)
	}
	for _, h := range handles {
		replaced := false
		for i, old := range m.mmus {
			if old.ID() == h.ID() {
				m.mmus[i] = h
				replaced = true
			}
		}
		if !replaced {
			m.mmus = append(m.mmus, h)
		}
	}
	m.mu.Unlock()

	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("load: not available: %s", strings.Join(missing, ", "))
	}
	return nil
}

// InitializeMMUs initializes every loaded MMU in parallel. It fails if any
// MMU fails.
func (m *MMUAccess) InitializeMMUs(ctx context.Context, avatarID string, desc mmi.AvatarDescription, properties map[string]string) error {
	handles := m.MMUs()
	if len(handles) == 0 {
		return errors.New("initialize: no mmus loaded")
	}
	if desc.AvatarID == "" {
		desc.AvatarID = avatarID
	}
	failed := make([]string, len(handles))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range handles {
		g.Go(func() error {
			res := h.Initialize(gctx, desc, properties)
			if !res.Successful {
				failed[i] = fmt.Sprintf("%s %v", h.ID(), res.LogData)
			}
			return nil
		})
	}
	_ = g.Wait()

	var msgs []string
	for _, f := range failed {
		if f != "" {
			msgs = append(msgs, f)
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("initialize: %s", strings.Join(msgs, "; "))
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

// PushScene forwards a scene update to every adapter of the session.
func (m *MMUAccess) PushScene(ctx context.Context, update mmi.SceneUpdate) bool {
	m.mu.RLock()
	sessionID := m.sessionID
	conns := append([]connection(nil), m.conns...)
	m.mu.RUnlock()

	ok := make([]bool, len(conns))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range conns {
		g.Go(func() error {
			ok[i] = c.adapter.PushScene(gctx, update, sessionID).Successful
			return nil
		})
	}
	_ = g.Wait()
	for i, v := range ok {
		if !v {
			m.log.Printf("push scene to %s failed", conns[i].address)
			return false
		}
	}
	return true
}

// CreateCheckpoint collects checkpoints of the given MMUs (all loaded MMUs when
// ids is empty). MMUs that produce no checkpoint are left out.
func (m *MMUAccess) CreateCheckpoint(ctx context.Context, ids []string) map[string][]byte {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[string][]byte{}
	for _, h := range m.MMUs() {
		if len(want) > 0 && !want[h.ID()] {
			continue
		}
		if b := h.CreateCheckpoint(ctx); b != nil {
			out[h.ID()] = b
		}
	}
	return out
}

// RestoreCheckpoint restores every entry; it reports false if any MMU is
// unknown or rejects its data.
func (m *MMUAccess) RestoreCheckpoint(ctx context.Context, checkpoints map[string][]byte) bool {
	ok := true
	for id, data := range checkpoints {
		h, found := m.MMU(id)
		if !found {
			m.log.Printf("restore: %s not loaded", id)
			ok = false
			continue
		}
		if res := h.RestoreCheckpoint(ctx, data); !res.Successful {
			m.log.Printf("restore %s: %v", id, res.LogData)
			ok = false
		}
	}
	return ok
}

// Close ends the session on every adapter and drops remote connections.
func (m *MMUAccess) Close(ctx context.Context) {
	m.mu.Lock()
	sessionID := m.sessionID
	conns := m.conns
	m.conns = nil
	m.mmus = nil
	m.loadable = nil
	m.offeredBy = map[string]int{}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c connection) {
			defer wg.Done()
			c.adapter.CloseSession(ctx, sessionID)
			closeAdapter(c.adapter)
		}(c)
	}
	wg.Wait()
}

// releaseTimeout bounds the cleanup of sessions and instances created too late.
const releaseTimeout = 5 * time.Second

func releaseSession(a adapter.Adapter, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	a.CloseSession(ctx, sessionID)
}

func disposeHandles(handles []*MotionModelUnitAccess) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	for _, h := range handles {
		h.Dispose(ctx)
	}
}

func closeAdapter(a adapter.Adapter) {
	if c, ok := a.(io.Closer); ok {
		_ = c.Close()
	}
}
