package mmi

type ConstraintKind string

const (
	ConstraintNone         ConstraintKind = ""
	ConstraintGeometry     ConstraintKind = "geometry"
	ConstraintVelocity     ConstraintKind = "velocity"
	ConstraintAcceleration ConstraintKind = "acceleration"
	ConstraintPosture      ConstraintKind = "posture"
	ConstraintPath         ConstraintKind = "path"
	ConstraintJoint        ConstraintKind = "joint"
)

// Constraint is a tagged union: at most one of the variant pointers is expected to be
// set per constraint, but several constraints may share an ID and be overlaid with Merge.
type Constraint struct {
	ID string `json:"id"`

	Geometry     *GeometryConstraint     `json:"geometry,omitempty"`
	Velocity     *VelocityConstraint     `json:"velocity,omitempty"`
	Acceleration *AccelerationConstraint `json:"acceleration,omitempty"`
	Posture      *PostureConstraint      `json:"posture,omitempty"`
	Path         *PathConstraint         `json:"path,omitempty"`
	Joint        *JointConstraint        `json:"joint,omitempty"`

	Properties map[string]string `json:"properties,omitempty"`
}

type GeometryConstraint struct {
	ParentObjectID     string     `json:"parent_object_id"`
	ParentToConstraint *Transform `json:"parent_to_constraint,omitempty"`
	TranslationLimit   *Interval3 `json:"translation_limit,omitempty"`
	RotationLimit      *Interval3 `json:"rotation_limit,omitempty"`
	WeightingFactor    *float64   `json:"weighting_factor,omitempty"`
}

type VelocityConstraint struct {
	ParentObjectID        string   `json:"parent_object_id"`
	TranslationalVelocity *Vector3 `json:"translational_velocity,omitempty"`
	RotationalVelocity    *Vector3 `json:"rotational_velocity,omitempty"`
	WeightingFactor       *float64 `json:"weighting_factor,omitempty"`
}

type AccelerationConstraint struct {
	ParentObjectID            string   `json:"parent_object_id"`
	TranslationalAcceleration *Vector3 `json:"translational_acceleration,omitempty"`
	RotationalAcceleration    *Vector3 `json:"rotational_acceleration,omitempty"`
	WeightingFactor           *float64 `json:"weighting_factor,omitempty"`
}

// PostureConstraint pins joint values. JointConstraints narrows the pinned joints; a
// nil list pins the whole posture.
type PostureConstraint struct {
	Posture          AvatarPostureValues `json:"posture"`
	JointConstraints []JointType         `json:"joint_constraints,omitempty"`
}

type PathConstraint struct {
	PolygonPoints   []GeometryConstraint `json:"polygon_points"`
	WeightingFactor *float64             `json:"weighting_factor,omitempty"`
}

type JointConstraint struct {
	JointType    JointType               `json:"joint_type"`
	Geometry     *GeometryConstraint     `json:"geometry,omitempty"`
	Velocity     *VelocityConstraint     `json:"velocity,omitempty"`
	Acceleration *AccelerationConstraint `json:"acceleration,omitempty"`
	GeometryPath *PathConstraint         `json:"geometry_path,omitempty"`
}

// Kind reports the first populated variant.
func (c Constraint) Kind() ConstraintKind {
	switch {
	case c.Geometry != nil:
		return ConstraintGeometry
	case c.Velocity != nil:
		return ConstraintVelocity
	case c.Acceleration != nil:
		return ConstraintAcceleration
	case c.Posture != nil:
		return ConstraintPosture
	case c.Path != nil:
		return ConstraintPath
	case c.Joint != nil:
		return ConstraintJoint
	}
	return ConstraintNone
}

// Merge overlays the variants present in o. Absent variants in o never clear c.
func (c Constraint) Merge(o Constraint) Constraint {
	if o.Geometry != nil {
		c.Geometry = o.Geometry
	}
	if o.Velocity != nil {
		c.Velocity = o.Velocity
	}
	if o.Acceleration != nil {
		c.Acceleration = o.Acceleration
	}
	if o.Posture != nil {
		c.Posture = o.Posture
	}
	if o.Path != nil {
		c.Path = o.Path
	}
	if o.Joint != nil {
		c.Joint = o.Joint
	}
	if len(o.Properties) > 0 {
		props := make(map[string]string, len(c.Properties)+len(o.Properties))
		for k, v := range c.Properties {
			props[k] = v
		}
		for k, v := range o.Properties {
			props[k] = v
		}
		c.Properties = props
	}
	return c
}

// OverlayConstraints folds constraints sharing an ID into one entry, keeping the
// order of first appearance.
func OverlayConstraints(in []Constraint) []Constraint {
	if len(in) == 0 {
		return nil
	}
	idx := map[string]int{}
	out := make([]Constraint, 0, len(in))
	for _, c := range in {
		if i, ok := idx[c.ID]; ok && c.ID != "" {
			out[i] = out[i].Merge(c)
			continue
		}
		idx[c.ID] = len(out)
		out = append(out, c)
	}
	return out
}
