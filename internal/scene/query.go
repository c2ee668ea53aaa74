package scene

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"mosim.ai/internal/mmi"
)

func (s *Store) GetSceneObjects() []mmi.SceneObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objectsLocked(func(*mmi.SceneObject) bool { return true })
}

func (s *Store) GetSceneObjectByID(id string) (mmi.SceneObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok {
		return mmi.SceneObject{}, false
	}
	return cloneObject(*o), true
}

func (s *Store) GetSceneObjectsByName(name string) []mmi.SceneObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []mmi.SceneObject
	for _, id := range s.objectNames.Lookup(name) {
		if o, ok := s.objects[id]; ok {
			out = append(out, cloneObject(*o))
		}
	}
	return out
}

// GetSceneObjectsInRange returns the objects whose position lies within radius of
// pos (inclusive), ordered by ID.
func (s *Store) GetSceneObjectsInRange(pos mmi.Vector3, radius float64) []mmi.SceneObject {
	center := pos.Vec()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objectsLocked(func(o *mmi.SceneObject) bool {
		return withinRange(center, o.Transform.Position.Vec(), radius)
	})
}

func (s *Store) objectsLocked(keep func(*mmi.SceneObject) bool) []mmi.SceneObject {
	out := make([]mmi.SceneObject, 0, len(s.objects))
	for _, id := range sortedKeys(s.objects) {
		o := s.objects[id]
		if keep(o) {
			out = append(out, cloneObject(*o))
		}
	}
	return out
}

func (s *Store) GetAvatars() []mmi.Avatar {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avatarsLocked(func(*mmi.Avatar) bool { return true })
}

func (s *Store) GetAvatarByID(id string) (mmi.Avatar, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.avatars[id]
	if !ok {
		return mmi.Avatar{}, false
	}
	return cloneAvatar(*a), true
}

func (s *Store) GetAvatarsByName(name string) []mmi.Avatar {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []mmi.Avatar
	for _, id := range s.avatarNames.Lookup(name) {
		if a, ok := s.avatars[id]; ok {
			out = append(out, cloneAvatar(*a))
		}
	}
	return out
}

// GetAvatarsInRange uses the root translation of each avatar's posture.
func (s *Store) GetAvatarsInRange(pos mmi.Vector3, radius float64) []mmi.Avatar {
	center := pos.Vec()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avatarsLocked(func(a *mmi.Avatar) bool {
		p, ok := a.PostureValues.Position()
		return ok && withinRange(center, p.Vec(), radius)
	})
}

func (s *Store) avatarsLocked(keep func(*mmi.Avatar) bool) []mmi.Avatar {
	out := make([]mmi.Avatar, 0, len(s.avatars))
	for _, id := range sortedKeys(s.avatars) {
		a := s.avatars[id]
		if keep(a) {
			out = append(out, cloneAvatar(*a))
		}
	}
	return out
}

func (s *Store) GetColliders() []mmi.Collider {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []mmi.Collider
	for _, id := range sortedKeys(s.objects) {
		if c := s.objects[id].Collider; c != nil {
			out = append(out, *cloneCollider(c))
		}
	}
	return out
}

func (s *Store) GetColliderByID(id string) (mmi.Collider, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok || o.Collider == nil {
		return mmi.Collider{}, false
	}
	return *cloneCollider(o.Collider), true
}

func (s *Store) GetMeshes() []mmi.Mesh {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []mmi.Mesh
	for _, id := range sortedKeys(s.objects) {
		if m := s.objects[id].Mesh; m != nil {
			out = append(out, *cloneMesh(m))
		}
	}
	return out
}

func (s *Store) GetMeshByID(id string) (mmi.Mesh, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok || o.Mesh == nil {
		return mmi.Mesh{}, false
	}
	return *cloneMesh(o.Mesh), true
}

func (s *Store) GetTransforms() []mmi.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mmi.Transform, 0, len(s.objects))
	for _, id := range sortedKeys(s.objects) {
		out = append(out, s.objects[id].Transform)
	}
	return out
}

func (s *Store) GetTransformByID(id string) (mmi.Transform, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok {
		return mmi.Transform{}, false
	}
	return o.Transform, true
}

// GetAttachments returns the objects directly attached to id.
func (s *Store) GetAttachments(id string) []mmi.SceneObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok {
		return nil
	}
	var out []mmi.SceneObject
	for _, child := range o.Attachments {
		if c, ok := s.objects[child]; ok {
			out = append(out, cloneObject(*c))
		}
	}
	return out
}

// GetAttachmentsRecursive walks the attachment tree depth-first. Cycles are cut.
func (s *Store) GetAttachmentsRecursive(id string) []mmi.SceneObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{id: true}
	var out []mmi.SceneObject
	var walk func(string)
	walk = func(cur string) {
		o, ok := s.objects[cur]
		if !ok {
			return
		}
		for _, child := range o.Attachments {
			if seen[child] {
				continue
			}
			seen[child] = true
			if c, ok := s.objects[child]; ok {
				out = append(out, cloneObject(*c))
				walk(child)
			}
		}
	}
	walk(id)
	return out
}

// GetFullScene reports the whole scene as additions, for late joiners.
func (s *Store) GetFullScene() mmi.SceneUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mmi.SceneUpdate{
		AddedSceneObjects: s.objectsLocked(func(*mmi.SceneObject) bool { return true }),
		AddedAvatars:      s.avatarsLocked(func(*mmi.Avatar) bool { return true }),
	}
}

func withinRange(center, p mgl64.Vec3, radius float64) bool {
	return p.Sub(center).Len() <= radius
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
