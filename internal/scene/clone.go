package scene

import (
	"slices"

	"mosim.ai/internal/mmi"
)

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func clonePhysics(p *mmi.PhysicsProperties) *mmi.PhysicsProperties {
	if p == nil {
		return nil
	}
	c := *p
	c.MaxVelocities = append([]float64(nil), p.MaxVelocities...)
	return &c
}

func cloneMesh(m *mmi.Mesh) *mmi.Mesh {
	if m == nil {
		return nil
	}
	c := *m
	c.Vertices = append([]mmi.Vector3(nil), m.Vertices...)
	c.Triangles = append([]int(nil), m.Triangles...)
	c.Props = cloneMap(m.Props)
	return &c
}

func cloneCollider(c *mmi.Collider) *mmi.Collider {
	if c == nil {
		return nil
	}
	out := *c
	if len(c.Colliders) > 0 {
		out.Colliders = make([]mmi.Collider, len(c.Colliders))
		for i := range c.Colliders {
			out.Colliders[i] = *cloneCollider(&c.Colliders[i])
		}
	}
	out.Properties = cloneMap(c.Properties)
	return &out
}

func cloneObject(o mmi.SceneObject) mmi.SceneObject {
	o.Mesh = cloneMesh(o.Mesh)
	o.Collider = cloneCollider(o.Collider)
	o.PhysicsProperties = clonePhysics(o.PhysicsProperties)
	o.Properties = cloneMap(o.Properties)
	o.Constraints = append([]mmi.Constraint(nil), o.Constraints...)
	o.Attachments = cloneStrings(o.Attachments)
	return o
}

func cloneAvatar(a mmi.Avatar) mmi.Avatar {
	a.PostureValues = a.PostureValues.Clone()
	a.Properties = cloneMap(a.Properties)
	a.SceneObjects = cloneStrings(a.SceneObjects)
	a.Description.Properties = cloneMap(a.Description.Properties)
	a.Description.ZeroPosture.Joints = append([]mmi.Joint(nil), a.Description.ZeroPosture.Joints...)
	return a
}

func cloneObjectUpdate(u mmi.SceneObjectUpdate) mmi.SceneObjectUpdate {
	if u.Name != nil {
		u.Name = mmi.String(*u.Name)
	}
	if u.Transform != nil {
		t := *u.Transform
		u.Transform = &t
	}
	u.Mesh = cloneMesh(u.Mesh)
	u.Collider = cloneCollider(u.Collider)
	u.PhysicsProperties = clonePhysics(u.PhysicsProperties)
	u.Properties = cloneMap(u.Properties)
	u.RemovedProperties = cloneStrings(u.RemovedProperties)
	u.Constraints = append([]mmi.Constraint(nil), u.Constraints...)
	return u
}

func cloneAvatarUpdate(u mmi.AvatarUpdate) mmi.AvatarUpdate {
	if u.Name != nil {
		u.Name = mmi.String(*u.Name)
	}
	if u.Description != nil {
		d := *u.Description
		u.Description = &d
	}
	if u.PostureValues != nil {
		p := u.PostureValues.Clone()
		u.PostureValues = &p
	}
	u.Properties = cloneMap(u.Properties)
	u.RemovedProperties = cloneStrings(u.RemovedProperties)
	u.SceneObjects = cloneStrings(u.SceneObjects)
	return u
}

// CloneUpdate deep-copies a scene update.
func CloneUpdate(u mmi.SceneUpdate) mmi.SceneUpdate {
	var out mmi.SceneUpdate
	for _, o := range u.AddedSceneObjects {
		out.AddedSceneObjects = append(out.AddedSceneObjects, cloneObject(o))
	}
	for _, c := range u.ChangedSceneObjects {
		out.ChangedSceneObjects = append(out.ChangedSceneObjects, cloneObjectUpdate(c))
	}
	out.RemovedSceneObjects = cloneStrings(u.RemovedSceneObjects)
	for _, a := range u.AddedAvatars {
		out.AddedAvatars = append(out.AddedAvatars, cloneAvatar(a))
	}
	for _, c := range u.ChangedAvatars {
		out.ChangedAvatars = append(out.ChangedAvatars, cloneAvatarUpdate(c))
	}
	out.RemovedAvatars = cloneStrings(u.RemovedAvatars)
	return out
}

// mergeObjectUpdate overlays the fields present in src onto dst.
func mergeObjectUpdate(dst *mmi.SceneObjectUpdate, src mmi.SceneObjectUpdate) {
	if src.Name != nil {
		dst.Name = mmi.String(*src.Name)
	}
	if src.Transform != nil {
		if dst.Transform == nil {
			dst.Transform = &mmi.TransformUpdate{}
		}
		if src.Transform.Position != nil {
			dst.Transform.Position = mmi.Vec3Ptr(*src.Transform.Position)
		}
		if src.Transform.Rotation != nil {
			dst.Transform.Rotation = mmi.QuatPtr(*src.Transform.Rotation)
		}
		if src.Transform.Parent != nil {
			dst.Transform.Parent = mmi.String(*src.Transform.Parent)
		}
	}
	if src.Mesh != nil {
		dst.Mesh = cloneMesh(src.Mesh)
	}
	if src.Collider != nil {
		dst.Collider = cloneCollider(src.Collider)
	}
	if src.PhysicsProperties != nil {
		dst.PhysicsProperties = clonePhysics(src.PhysicsProperties)
	}
	mergeProperties(&dst.Properties, &dst.RemovedProperties, src.Properties, src.RemovedProperties)
	if src.Constraints != nil {
		dst.Constraints = append([]mmi.Constraint(nil), src.Constraints...)
	}
}

func mergeAvatarUpdate(dst *mmi.AvatarUpdate, src mmi.AvatarUpdate) {
	if src.Name != nil {
		dst.Name = mmi.String(*src.Name)
	}
	if src.Description != nil {
		d := *src.Description
		dst.Description = &d
	}
	if src.PostureValues != nil {
		p := src.PostureValues.Clone()
		dst.PostureValues = &p
	}
	mergeProperties(&dst.Properties, &dst.RemovedProperties, src.Properties, src.RemovedProperties)
	if src.SceneObjects != nil {
		dst.SceneObjects = cloneStrings(src.SceneObjects)
	}
}

// mergeProperties folds the property sets and removals of a later update into
// a pending one. A later removal cancels a pending set of the key and a later
// set cancels a pending removal.
func mergeProperties(props *map[string]string, removed *[]string, set map[string]string, remove []string) {
	for _, k := range remove {
		delete(*props, k)
		if !slices.Contains(*removed, k) {
			*removed = append(*removed, k)
		}
	}
	for k, v := range set {
		if *props == nil {
			*props = map[string]string{}
		}
		(*props)[k] = v
		*removed = slices.DeleteFunc(*removed, func(r string) bool { return r == k })
	}
	if len(*removed) == 0 {
		*removed = nil
	}
}

// applyObjectUpdate writes the present fields of u into o.
func applyObjectUpdate(o *mmi.SceneObject, u mmi.SceneObjectUpdate) {
	if u.Name != nil {
		o.Name = *u.Name
	}
	if u.Transform != nil {
		if u.Transform.Position != nil {
			o.Transform.Position = *u.Transform.Position
		}
		if u.Transform.Rotation != nil {
			o.Transform.Rotation = *u.Transform.Rotation
		}
		if u.Transform.Parent != nil {
			o.Transform.Parent = *u.Transform.Parent
		}
	}
	if u.Mesh != nil {
		o.Mesh = cloneMesh(u.Mesh)
	}
	if u.Collider != nil {
		o.Collider = cloneCollider(u.Collider)
	}
	if u.PhysicsProperties != nil {
		o.PhysicsProperties = clonePhysics(u.PhysicsProperties)
	}
	o.Properties = applyProperties(o.Properties, u.Properties, u.RemovedProperties)
	if u.Constraints != nil {
		o.Constraints = append([]mmi.Constraint(nil), u.Constraints...)
	}
}

func applyAvatarUpdate(a *mmi.Avatar, u mmi.AvatarUpdate) {
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.Description != nil {
		a.Description = *u.Description
	}
	if u.PostureValues != nil {
		a.PostureValues = u.PostureValues.Clone()
	}
	a.Properties = applyProperties(a.Properties, u.Properties, u.RemovedProperties)
	if u.SceneObjects != nil {
		a.SceneObjects = cloneStrings(u.SceneObjects)
	}
}

func applyProperties(props, set map[string]string, remove []string) map[string]string {
	for _, k := range remove {
		delete(props, k)
	}
	if len(set) > 0 && props == nil {
		props = map[string]string{}
	}
	for k, v := range set {
		props[k] = v
	}
	return props
}
