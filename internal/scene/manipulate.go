package scene

import "mosim.ai/internal/mmi"

// ApplyManipulations mutates live objects in place. Every applied entry is tracked
// as a pending change; entries whose target is unknown or malformed are logged and
// skipped without stopping the batch.
func (s *Store) ApplyManipulations(list []mmi.SceneManipulation) mmi.BoolResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	var logs []string
	for _, m := range list {
		for _, t := range m.Transforms {
			if line, ok := s.manipulateTransformLocked(t); !ok {
				logs = append(logs, line)
			}
		}
		for _, p := range m.PhysicsInteractions {
			if line, ok := s.physicsInteractionLocked(p); !ok {
				logs = append(logs, line)
			}
		}
		for _, p := range m.Properties {
			if line, ok := s.manipulatePropertyLocked(p); !ok {
				logs = append(logs, line)
			}
		}
	}
	return mmi.BoolResponse{Successful: true, LogData: logs}
}

func (s *Store) manipulateTransformLocked(t mmi.TransformManipulation) (string, bool) {
	o, ok := s.objects[t.Target]
	if !ok {
		return s.logf("Cannot manipulate transform of %s, object is not registered", t.Target), false
	}
	upd := mmi.TransformUpdate{Position: t.Position, Rotation: t.Rotation, Parent: t.Parent}
	if upd.Empty() {
		return "", true
	}
	if t.Parent != nil && *t.Parent != "" {
		if _, ok := s.objects[*t.Parent]; !ok {
			return s.logf("Cannot parent %s to %s, parent is not registered", t.Target, *t.Parent), false
		}
	}
	u := mmi.SceneObjectUpdate{ID: o.ID, Transform: &upd}
	applyObjectUpdate(o, u)
	s.pending.objectChanged(u)
	return "", true
}

func (s *Store) physicsInteractionLocked(p mmi.PhysicsInteraction) (string, bool) {
	o, ok := s.objects[p.Target]
	if !ok {
		return s.logf("Cannot apply %s to %s, object is not registered", p.Type, p.Target), false
	}
	need := 3
	if p.Type == mmi.PhysicsChangeMass {
		need = 1
	}
	if len(p.Values) < need {
		return s.logf("Cannot apply %s to %s, expected %d values got %d", p.Type, p.Target, need, len(p.Values)), false
	}
	phys := mmi.PhysicsProperties{}
	if o.PhysicsProperties != nil {
		phys = *clonePhysics(o.PhysicsProperties)
	}
	vec := func() mmi.Vector3 {
		return mmi.Vector3{X: p.Values[0], Y: p.Values[1], Z: p.Values[2]}
	}
	add := func(a, b mmi.Vector3) mmi.Vector3 { return mmi.V3(a.Vec().Add(b.Vec())) }

	switch p.Type {
	case mmi.PhysicsAddForce:
		phys.NetForce = add(phys.NetForce, vec())
	case mmi.PhysicsAddTorque:
		phys.NetTorque = add(phys.NetTorque, vec())
	case mmi.PhysicsChangeVelocity:
		phys.Velocity = vec()
	case mmi.PhysicsChangeAngularVelocity:
		phys.AngularVelocity = vec()
	case mmi.PhysicsChangeMass:
		phys.Mass = p.Values[0]
	case mmi.PhysicsChangeCenterOfMass:
		phys.CenterOfMass = vec()
	case mmi.PhysicsChangeInertia:
		phys.Inertia = vec()
	default:
		return s.logf("Cannot apply %s to %s, unknown interaction", p.Type, p.Target), false
	}
	u := mmi.SceneObjectUpdate{ID: o.ID, PhysicsProperties: &phys}
	applyObjectUpdate(o, u)
	s.pending.objectChanged(u)
	return "", true
}

func (s *Store) manipulatePropertyLocked(p mmi.PropertyManipulation) (string, bool) {
	set, removed := map[string]string{p.Key: p.Value}, []string(nil)
	if p.Remove {
		set, removed = nil, []string{p.Key}
	}
	if o, ok := s.objects[p.Target]; ok {
		u := mmi.SceneObjectUpdate{ID: o.ID, Properties: set, RemovedProperties: removed}
		applyObjectUpdate(o, u)
		s.pending.objectChanged(u)
		return "", true
	}
	if a, ok := s.avatars[p.Target]; ok {
		u := mmi.AvatarUpdate{ID: a.ID, Properties: set, RemovedProperties: removed}
		applyAvatarUpdate(a, u)
		s.pending.avatarChanged(u)
		return "", true
	}
	return s.logf("Cannot change property %s of %s, target is not registered", p.Key, p.Target), false
}
