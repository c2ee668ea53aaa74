// Package scene keeps the authoritative scene objects and avatars of one
// co-simulation session and accumulates the deltas remote consumers poll.
package scene

import (
	"fmt"
	"io"
	"log"
	"sync"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/registry"
)

const DefaultHistorySize = 20

type Options struct {
	HistorySize int
	Logger      *log.Logger
	// IDs is shared when several stores of one session must not collide.
	IDs *registry.Generator
}

type historyEntry struct {
	FrameID uint64
	Update  mmi.SceneUpdate
}

// Store is safe for concurrent use. Every method takes the single store lock.
type Store struct {
	mu  sync.Mutex
	log *log.Logger
	ids *registry.Generator

	objects     map[string]*mmi.SceneObject
	avatars     map[string]*mmi.Avatar
	objectNames *registry.NameIndex
	avatarNames *registry.NameIndex

	pending pendingUpdate

	historySize int
	history     []historyEntry
	frameID     uint64

	simTime float64
}

// pendingUpdate is the delta accumulated since the last ClearChanges. Changed
// entries are coalesced per ID through the index maps.
type pendingUpdate struct {
	update     mmi.SceneUpdate
	objChanged map[string]int
	avChanged  map[string]int
}

func NewStore(opts Options) *Store {
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.IDs == nil {
		opts.IDs = registry.NewGenerator()
	}
	s := &Store{
		log:         opts.Logger,
		ids:         opts.IDs,
		objects:     map[string]*mmi.SceneObject{},
		avatars:     map[string]*mmi.Avatar{},
		objectNames: registry.NewNameIndex(),
		avatarNames: registry.NewNameIndex(),
		historySize: opts.HistorySize,
	}
	s.pending.reset()
	return s
}

func (p *pendingUpdate) reset() {
	p.update = mmi.SceneUpdate{}
	p.objChanged = map[string]int{}
	p.avChanged = map[string]int{}
}

func (p *pendingUpdate) objectChanged(u mmi.SceneObjectUpdate) {
	if i, ok := p.objChanged[u.ID]; ok {
		mergeObjectUpdate(&p.update.ChangedSceneObjects[i], u)
		return
	}
	p.objChanged[u.ID] = len(p.update.ChangedSceneObjects)
	p.update.ChangedSceneObjects = append(p.update.ChangedSceneObjects, cloneObjectUpdate(u))
}

func (p *pendingUpdate) avatarChanged(u mmi.AvatarUpdate) {
	if i, ok := p.avChanged[u.ID]; ok {
		mergeAvatarUpdate(&p.update.ChangedAvatars[i], u)
		return
	}
	p.avChanged[u.ID] = len(p.update.ChangedAvatars)
	p.update.ChangedAvatars = append(p.update.ChangedAvatars, cloneAvatarUpdate(u))
}

// dropObjectChange removes a coalesced change of an object that is being removed.
func (p *pendingUpdate) dropObjectChange(id string) {
	i, ok := p.objChanged[id]
	if !ok {
		return
	}
	list := p.update.ChangedSceneObjects
	p.update.ChangedSceneObjects = append(list[:i:i], list[i+1:]...)
	delete(p.objChanged, id)
	for k, v := range p.objChanged {
		if v > i {
			p.objChanged[k] = v - 1
		}
	}
}

func (p *pendingUpdate) dropAvatarChange(id string) {
	i, ok := p.avChanged[id]
	if !ok {
		return
	}
	list := p.update.ChangedAvatars
	p.update.ChangedAvatars = append(list[:i:i], list[i+1:]...)
	delete(p.avChanged, id)
	for k, v := range p.avChanged {
		if v > i {
			p.avChanged[k] = v - 1
		}
	}
}

func (s *Store) CreateSceneObjectID() string { return s.ids.CreateSceneObjectID() }

func (s *Store) CreateAvatarID() string { return s.ids.CreateAvatarID() }

// logf writes to the store logger and returns the line for BoolResponse.LogData.
func (s *Store) logf(format string, args ...any) string {
	line := fmt.Sprintf(format, args...)
	s.log.Print(line)
	return line
}

func (s *Store) AddSceneObject(o mmi.SceneObject) mmi.BoolResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if line, ok := s.addObjectLocked(o); !ok {
		return mmi.Fail(line)
	}
	// Publish the stored object so consumers see the defaulted transform.
	s.pending.update.AddedSceneObjects = append(s.pending.update.AddedSceneObjects, cloneObject(*s.objects[o.ID]))
	return mmi.OK()
}

func (s *Store) addObjectLocked(o mmi.SceneObject) (string, bool) {
	if o.ID == "" {
		return s.logf("Cannot add scene object %s, missing id", o.Name), false
	}
	if _, ok := s.objects[o.ID]; ok {
		return s.logf("Cannot add scene object %s, object is already registered", o.ID), false
	}
	c := cloneObject(o)
	if c.Transform.ID == "" {
		c.Transform.ID = c.ID
	}
	if c.Transform.Rotation.IsZero() {
		c.Transform.Rotation = mmi.IdentityQuaternion()
	}
	s.objects[c.ID] = &c
	s.objectNames.Add(c.Name, c.ID)
	return "", true
}

func (s *Store) AddAvatar(a mmi.Avatar) mmi.BoolResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if line, ok := s.addAvatarLocked(a); !ok {
		return mmi.Fail(line)
	}
	s.pending.update.AddedAvatars = append(s.pending.update.AddedAvatars, cloneAvatar(*s.avatars[a.ID]))
	return mmi.OK()
}

func (s *Store) addAvatarLocked(a mmi.Avatar) (string, bool) {
	if a.ID == "" {
		return s.logf("Cannot add avatar %s, missing id", a.Name), false
	}
	if _, ok := s.avatars[a.ID]; ok {
		return s.logf("Cannot add avatar %s, avatar is already registered", a.ID), false
	}
	c := cloneAvatar(a)
	s.avatars[c.ID] = &c
	s.avatarNames.Add(c.Name, c.ID)
	return "", true
}

func (s *Store) RemoveSceneObject(id string) mmi.BoolResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if line, ok := s.removeObjectLocked(id); !ok {
		return mmi.Fail(line)
	}
	s.pending.dropObjectChange(id)
	s.pending.update.RemovedSceneObjects = append(s.pending.update.RemovedSceneObjects, id)
	return mmi.OK()
}

func (s *Store) removeObjectLocked(id string) (string, bool) {
	o, ok := s.objects[id]
	if !ok {
		return s.logf("Cannot remove scene object %s, object is not registered", id), false
	}
	delete(s.objects, id)
	s.objectNames.Remove(o.Name, id)
	return "", true
}

func (s *Store) RemoveAvatar(id string) mmi.BoolResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if line, ok := s.removeAvatarLocked(id); !ok {
		return mmi.Fail(line)
	}
	s.pending.dropAvatarChange(id)
	s.pending.update.RemovedAvatars = append(s.pending.update.RemovedAvatars, id)
	return mmi.OK()
}

func (s *Store) removeAvatarLocked(id string) (string, bool) {
	a, ok := s.avatars[id]
	if !ok {
		return s.logf("Cannot remove avatar %s, avatar is not registered", id), false
	}
	delete(s.avatars, id)
	s.avatarNames.Remove(a.Name, id)
	return "", true
}

// SceneObjectChanged applies u to the live object and records it as a delta.
func (s *Store) SceneObjectChanged(u mmi.SceneObjectUpdate) mmi.BoolResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if line, ok := s.changeObjectLocked(u); !ok {
		return mmi.Fail(line)
	}
	s.pending.objectChanged(u)
	return mmi.OK()
}

func (s *Store) changeObjectLocked(u mmi.SceneObjectUpdate) (string, bool) {
	o, ok := s.objects[u.ID]
	if !ok {
		return s.logf("Cannot update scene object %s, object is not registered", u.ID), false
	}
	oldName := o.Name
	applyObjectUpdate(o, u)
	s.objectNames.Rename(oldName, o.Name, o.ID)
	return "", true
}

func (s *Store) AvatarChanged(u mmi.AvatarUpdate) mmi.BoolResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if line, ok := s.changeAvatarLocked(u); !ok {
		return mmi.Fail(line)
	}
	s.pending.avatarChanged(u)
	return mmi.OK()
}

func (s *Store) changeAvatarLocked(u mmi.AvatarUpdate) (string, bool) {
	a, ok := s.avatars[u.ID]
	if !ok {
		return s.logf("Cannot update avatar %s, avatar is not registered", u.ID), false
	}
	oldName := a.Name
	applyAvatarUpdate(a, u)
	s.avatarNames.Rename(oldName, a.Name, a.ID)
	return "", true
}

func (s *Store) TransformationChanged(id string, t mmi.TransformUpdate) mmi.BoolResponse {
	return s.SceneObjectChanged(mmi.SceneObjectUpdate{ID: id, Transform: &t})
}

func (s *Store) PhysicsPropertiesChanged(id string, p mmi.PhysicsProperties) mmi.BoolResponse {
	return s.SceneObjectChanged(mmi.SceneObjectUpdate{ID: id, PhysicsProperties: &p})
}

func (s *Store) PropertiesChanged(id string, props map[string]string) mmi.BoolResponse {
	return s.SceneObjectChanged(mmi.SceneObjectUpdate{ID: id, Properties: props})
}

func (s *Store) PostureValuesChanged(avatarID string, v mmi.AvatarPostureValues) mmi.BoolResponse {
	return s.AvatarChanged(mmi.AvatarUpdate{ID: avatarID, PostureValues: &v})
}

// GetSceneChanges returns a copy of the pending delta. It never clears it.
func (s *Store) GetSceneChanges() mmi.SceneUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CloneUpdate(s.pending.update)
}

func (s *Store) ClearChanges() {
	s.mu.Lock()
	s.pending.reset()
	s.mu.Unlock()
}

// ApplyUpdates replicates a remote delta into this store. The update is archived in
// the history ring under a new frame ID; entries that cannot be applied are logged
// and skipped. Replicated changes are not re-published as pending changes.
func (s *Store) ApplyUpdates(u mmi.SceneUpdate) mmi.BoolResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frameID++
	s.pushHistoryLocked(s.frameID, u)

	var logs []string
	note := func(line string, ok bool) {
		if !ok {
			logs = append(logs, line)
		}
	}
	for _, a := range u.AddedAvatars {
		note(s.addAvatarLocked(a))
	}
	for _, o := range u.AddedSceneObjects {
		note(s.addObjectLocked(o))
	}
	for _, a := range u.ChangedAvatars {
		note(s.changeAvatarLocked(a))
	}
	for _, o := range u.ChangedSceneObjects {
		note(s.changeObjectLocked(o))
	}
	for _, id := range u.RemovedAvatars {
		note(s.removeAvatarLocked(id))
	}
	for _, id := range u.RemovedSceneObjects {
		note(s.removeObjectLocked(id))
	}
	return mmi.BoolResponse{Successful: true, LogData: logs}
}

func (s *Store) pushHistoryLocked(frameID uint64, u mmi.SceneUpdate) {
	if len(s.history) >= s.historySize {
		n := copy(s.history, s.history[len(s.history)-s.historySize+1:])
		s.history = s.history[:n]
	}
	s.history = append(s.history, historyEntry{FrameID: frameID, Update: CloneUpdate(u)})
}

// GetSceneUpdate returns the archived update of a frame still in the history ring.
func (s *Store) GetSceneUpdate(frameID uint64) (mmi.SceneUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.history {
		if h.FrameID == frameID {
			return CloneUpdate(h.Update), true
		}
	}
	return mmi.SceneUpdate{}, false
}

// HistoryFrames lists the frame IDs held in the ring, oldest first.
func (s *Store) HistoryFrames() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, 0, len(s.history))
	for _, h := range s.history {
		out = append(out, h.FrameID)
	}
	return out
}

func (s *Store) FrameID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameID
}

func (s *Store) GetSimulationTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simTime
}

func (s *Store) SetSimulationTime(t float64) {
	s.mu.Lock()
	s.simTime = t
	s.mu.Unlock()
}

// Clear drops every object, avatar, pending change and history entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = map[string]*mmi.SceneObject{}
	s.avatars = map[string]*mmi.Avatar{}
	s.objectNames.Clear()
	s.avatarNames.Clear()
	s.pending.reset()
	s.history = nil
	s.frameID = 0
}
