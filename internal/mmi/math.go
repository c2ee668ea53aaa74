package mmi

import "github.com/go-gl/mathgl/mgl64"

type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Interval is a closed [Min, Max] range.
type Interval struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Interval3 struct {
	X Interval `json:"x"`
	Y Interval `json:"y"`
	Z Interval `json:"z"`
}

func IdentityQuaternion() Quaternion { return Quaternion{W: 1} }

func V3(v mgl64.Vec3) Vector3 { return Vector3{X: v[0], Y: v[1], Z: v[2]} }

func (v Vector3) Vec() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

func (v Vector3) Distance(o Vector3) float64 { return v.Vec().Sub(o.Vec()).Len() }

func Quat(q mgl64.Quat) Quaternion {
	return Quaternion{X: q.V[0], Y: q.V[1], Z: q.V[2], W: q.W}
}

func (q Quaternion) Quat() mgl64.Quat {
	return mgl64.Quat{W: q.W, V: mgl64.Vec3{q.X, q.Y, q.Z}}
}

// IsZero reports whether all four components are zero, which is not a valid rotation.
func (q Quaternion) IsZero() bool { return q.X == 0 && q.Y == 0 && q.Z == 0 && q.W == 0 }

func (i Interval) Contains(v float64) bool { return v >= i.Min && v <= i.Max }

func (i Interval3) Contains(v Vector3) bool {
	return i.X.Contains(v.X) && i.Y.Contains(v.Y) && i.Z.Contains(v.Z)
}

// Float returns a pointer to v; used for optional numeric fields.
func Float(v float64) *float64 { return &v }

func Vec3Ptr(v Vector3) *Vector3 { return &v }

func QuatPtr(q Quaternion) *Quaternion { return &q }

func String(s string) *string { return &s }
