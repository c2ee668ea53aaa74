package mmi

type Transform struct {
	ID       string     `json:"id"`
	Position Vector3    `json:"position"`
	Rotation Quaternion `json:"rotation"`
	Parent   string     `json:"parent,omitempty"`
}

// Mesh and Collider payloads are engine data carried through untouched.
type Mesh struct {
	ID        string            `json:"id"`
	Vertices  []Vector3         `json:"vertices,omitempty"`
	Triangles []int             `json:"triangles,omitempty"`
	Props     map[string]string `json:"properties,omitempty"`
}

type Collider struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	PositionOffset *Vector3          `json:"position_offset,omitempty"`
	RotationOffset *Quaternion       `json:"rotation_offset,omitempty"`
	Size           *Vector3          `json:"size,omitempty"`
	Radius         *float64          `json:"radius,omitempty"`
	Height         *float64          `json:"height,omitempty"`
	Colliders      []Collider        `json:"colliders,omitempty"`
	Properties     map[string]string `json:"properties,omitempty"`
}

type PhysicsProperties struct {
	Mass            float64   `json:"mass"`
	CenterOfMass    Vector3   `json:"center_of_mass"`
	Inertia         Vector3   `json:"inertia"`
	Velocity        Vector3   `json:"velocity"`
	AngularVelocity Vector3   `json:"angular_velocity"`
	NetForce        Vector3   `json:"net_force"`
	NetTorque       Vector3   `json:"net_torque"`
	Friction        *float64  `json:"friction,omitempty"`
	Bounciness      *float64  `json:"bounciness,omitempty"`
	Drag            *float64  `json:"drag,omitempty"`
	AngularDrag     *float64  `json:"angular_drag,omitempty"`
	Kinematic       *bool     `json:"kinematic,omitempty"`
	Gravity         *Vector3  `json:"gravity,omitempty"`
	MaxVelocities   []float64 `json:"max_velocities,omitempty"`
}

type SceneObject struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Transform         Transform          `json:"transform"`
	Mesh              *Mesh              `json:"mesh,omitempty"`
	Collider          *Collider          `json:"collider,omitempty"`
	PhysicsProperties *PhysicsProperties `json:"physics_properties,omitempty"`
	Properties        map[string]string  `json:"properties,omitempty"`
	Constraints       []Constraint       `json:"constraints,omitempty"`
	Attachments       []string           `json:"attachments,omitempty"`
}

type Avatar struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Description   AvatarDescription   `json:"description"`
	PostureValues AvatarPostureValues `json:"posture_values"`
	Properties    map[string]string   `json:"properties,omitempty"`
	SceneObjects  []string            `json:"scene_objects,omitempty"`
}

// TransformUpdate carries only the transform fields that changed.
type TransformUpdate struct {
	Position *Vector3    `json:"position,omitempty"`
	Rotation *Quaternion `json:"rotation,omitempty"`
	Parent   *string     `json:"parent,omitempty"`
}

func (t TransformUpdate) Empty() bool { return t.Position == nil && t.Rotation == nil && t.Parent == nil }

type SceneObjectUpdate struct {
	ID                string             `json:"id"`
	Name              *string            `json:"name,omitempty"`
	Transform         *TransformUpdate   `json:"transform,omitempty"`
	Mesh              *Mesh              `json:"mesh,omitempty"`
	Collider          *Collider          `json:"collider,omitempty"`
	PhysicsProperties *PhysicsProperties `json:"physics_properties,omitempty"`
	Properties        map[string]string  `json:"properties,omitempty"`
	RemovedProperties []string           `json:"removed_properties,omitempty"`
	Constraints       []Constraint       `json:"constraints,omitempty"`
}

// AvatarUpdate and SceneObjectUpdate apply RemovedProperties before Properties.
type AvatarUpdate struct {
	ID                string               `json:"id"`
	Name              *string              `json:"name,omitempty"`
	Description       *AvatarDescription   `json:"description,omitempty"`
	PostureValues     *AvatarPostureValues `json:"posture_values,omitempty"`
	Properties        map[string]string    `json:"properties,omitempty"`
	RemovedProperties []string             `json:"removed_properties,omitempty"`
	SceneObjects      []string             `json:"scene_objects,omitempty"`
}

type SceneUpdate struct {
	AddedSceneObjects   []SceneObject       `json:"added_scene_objects,omitempty"`
	ChangedSceneObjects []SceneObjectUpdate `json:"changed_scene_objects,omitempty"`
	RemovedSceneObjects []string            `json:"removed_scene_objects,omitempty"`
	AddedAvatars        []Avatar            `json:"added_avatars,omitempty"`
	ChangedAvatars      []AvatarUpdate      `json:"changed_avatars,omitempty"`
	RemovedAvatars      []string            `json:"removed_avatars,omitempty"`
}

func (u SceneUpdate) Empty() bool {
	return len(u.AddedSceneObjects) == 0 && len(u.ChangedSceneObjects) == 0 && len(u.RemovedSceneObjects) == 0 &&
		len(u.AddedAvatars) == 0 && len(u.ChangedAvatars) == 0 && len(u.RemovedAvatars) == 0
}

// Physics interaction types understood by the scene store.
const (
	PhysicsAddForce              = "AddForce"
	PhysicsAddTorque             = "AddTorque"
	PhysicsChangeVelocity        = "ChangeVelocity"
	PhysicsChangeAngularVelocity = "ChangeAngularVelocity"
	PhysicsChangeMass            = "ChangeMass"
	PhysicsChangeCenterOfMass    = "ChangeCenterOfMass"
	PhysicsChangeInertia         = "ChangeInertia"
)

type TransformManipulation struct {
	Target   string      `json:"target"`
	Position *Vector3    `json:"position,omitempty"`
	Rotation *Quaternion `json:"rotation,omitempty"`
	Parent   *string     `json:"parent,omitempty"`
}

type PhysicsInteraction struct {
	Target string    `json:"target"`
	Type   string    `json:"type"`
	Values []float64 `json:"values"`
}

type PropertyManipulation struct {
	Target string `json:"target"`
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
	Remove bool   `json:"remove,omitempty"`
}

type SceneManipulation struct {
	Transforms          []TransformManipulation `json:"transforms,omitempty"`
	PhysicsInteractions []PhysicsInteraction    `json:"physics_interactions,omitempty"`
	Properties          []PropertyManipulation  `json:"properties,omitempty"`
}
