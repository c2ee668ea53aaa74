package adapter

import (
	"log"
	"sort"
	"sync"
	"time"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/mmu"
	"mosim.ai/internal/scene"
)

// instance is one hosted MMU. Its mutex serialises calls into the unit.
type instance struct {
	mu    sync.Mutex
	id    string
	mmuID mmu.ID
	desc  mmi.MMUDescription
	unit  mmu.MotionModelUnit
	state State
}

// AvatarContent holds the MMU instances of one avatar in a scene.
type AvatarContent struct {
	AvatarID  string
	instances map[mmu.ID]*instance
	order     []mmu.ID
}

// SessionContent is everything the host keeps for one scene: its avatars and a
// replica of the scene pushed by the co-simulation side.
type SessionContent struct {
	SceneID    string
	Scene      *scene.Store
	avatars    map[string]*AvatarContent
	lastAccess time.Time
}

// SessionData indexes sessions by scene ID, then avatar ID.
type SessionData struct {
	mu       sync.RWMutex
	scenes   map[string]*SessionContent
	log      *log.Logger
	started  time.Time
	lastSeen time.Time
	now      func() time.Time
}

func NewSessionData(logger *log.Logger, now func() time.Time) *SessionData {
	if now == nil {
		now = time.Now
	}
	t := now()
	return &SessionData{
		scenes:   map[string]*SessionContent{},
		log:      logger,
		started:  t,
		lastSeen: t,
		now:      now,
	}
}

// getOrCreateLocked returns the avatar content for a session, creating scene and
// avatar entries as needed. The caller holds d.mu for writing.
func (d *SessionData) getOrCreateLocked(sceneID, avatarID string) (*SessionContent, *AvatarContent) {
	sc, ok := d.scenes[sceneID]
	if !ok {
		sc = &SessionContent{
			SceneID: sceneID,
			Scene:   scene.NewStore(scene.Options{Logger: d.log}),
			avatars: map[string]*AvatarContent{},
		}
		d.scenes[sceneID] = sc
	}
	av, ok := sc.avatars[avatarID]
	if !ok {
		av = &AvatarContent{AvatarID: avatarID, instances: map[mmu.ID]*instance{}}
		sc.avatars[avatarID] = av
	}
	d.touchLocked(sc)
	return sc, av
}

func (d *SessionData) touchLocked(sc *SessionContent) {
	t := d.now()
	sc.lastAccess = t
	d.lastSeen = t
}

// Create registers the session. Creating an existing session is accepted.
func (d *SessionData) Create(sessionID string) bool {
	sceneID, avatarID, ok := ParseSessionID(sessionID)
	if !ok {
		return false
	}
	d.mu.Lock()
	d.getOrCreateLocked(sceneID, avatarID)
	d.mu.Unlock()
	return true
}

// Lookup finds an existing session without creating it and refreshes its
// last-access time.
func (d *SessionData) Lookup(sessionID string) (*SessionContent, *AvatarContent, bool) {
	sceneID, avatarID, ok := ParseSessionID(sessionID)
	if !ok {
		return nil, nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	sc, ok := d.scenes[sceneID]
	if !ok {
		return nil, nil, false
	}
	av, ok := sc.avatars[avatarID]
	if !ok {
		return nil, nil, false
	}
	d.touchLocked(sc)
	return sc, av, true
}

// Ensure is Lookup that creates missing entries.
func (d *SessionData) Ensure(sessionID string) (*SessionContent, *AvatarContent, bool) {
	sceneID, avatarID, ok := ParseSessionID(sessionID)
	if !ok {
		return nil, nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	sc, av := d.getOrCreateLocked(sceneID, avatarID)
	return sc, av, true
}

// instance resolves a routed call. Routing failures return nil.
func (d *SessionData) instance(mmuID, sessionID string) *instance {
	_, av, ok := d.Lookup(sessionID)
	if !ok {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return av.instances[mmu.ID(mmuID)]
}

// put stores a freshly loaded instance under the avatar.
func (d *SessionData) put(av *AvatarContent, inst *instance) (replaced *instance) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := av.instances[inst.mmuID]; ok {
		replaced = old
	} else {
		av.order = append(av.order, inst.mmuID)
	}
	av.instances[inst.mmuID] = inst
	return replaced
}

func (d *SessionData) instances(av *AvatarContent) []*instance {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*instance, 0, len(av.order))
	for _, id := range av.order {
		out = append(out, av.instances[id])
	}
	return out
}

// remove detaches the session and returns its instances for disposal. When the
// last avatar of a scene goes the scene entry goes with it.
func (d *SessionData) remove(sessionID string) ([]*instance, bool) {
	sceneID, avatarID, ok := ParseSessionID(sessionID)
	if !ok {
		return nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	sc, ok := d.scenes[sceneID]
	if !ok {
		return nil, false
	}
	av, ok := sc.avatars[avatarID]
	if !ok {
		return nil, false
	}
	delete(sc.avatars, avatarID)
	if len(sc.avatars) == 0 {
		delete(d.scenes, sceneID)
	}
	out := make([]*instance, 0, len(av.order))
	for _, id := range av.order {
		out = append(out, av.instances[id])
	}
	return out, true
}

// expired removes every scene idle since before cutoff and returns the
// instances of its avatars.
func (d *SessionData) expired(cutoff time.Time) (sessions []string, insts []*instance) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for sceneID, sc := range d.scenes {
		if !sc.lastAccess.Before(cutoff) {
			continue
		}
		for avatarID, av := range sc.avatars {
			sessions = append(sessions, SessionID(sceneID, avatarID))
			for _, id := range av.order {
				insts = append(insts, av.instances[id])
			}
		}
		delete(d.scenes, sceneID)
	}
	sort.Strings(sessions)
	return sessions, insts
}

// drain removes everything.
func (d *SessionData) drain() []*instance {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*instance
	for _, sc := range d.scenes {
		for _, av := range sc.avatars {
			for _, id := range av.order {
				out = append(out, av.instances[id])
			}
		}
	}
	d.scenes = map[string]*SessionContent{}
	return out
}

// Count is the number of avatar sessions.
func (d *SessionData) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, sc := range d.scenes {
		n += len(sc.avatars)
	}
	return n
}

func (d *SessionData) Times() (started, lastAccess time.Time) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.started, d.lastSeen
}
