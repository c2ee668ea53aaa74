package builtin

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"mosim.ai/internal/mmi"
)

// setRotation writes q into the joint's rotation channels. Joints with a W channel
// take the quaternion directly; Euler-only joints take XYZ angles in degrees.
func setRotation(desc mmi.AvatarDescription, data []float64, joint mmi.JointType, q mgl64.Quat) bool {
	slot, ok := desc.Slot(joint)
	if !ok {
		return false
	}
	hasW := false
	for _, c := range slot.Channels {
		if c == mmi.ChannelWRotation {
			hasW = true
		}
	}
	var euler mgl64.Vec3
	if !hasW {
		euler = quatToEulerDeg(q)
	}
	for i, c := range slot.Channels {
		idx := slot.Offset + i
		if idx >= len(data) {
			return false
		}
		switch c {
		case mmi.ChannelWRotation:
			data[idx] = q.W
		case mmi.ChannelXRotation:
			if hasW {
				data[idx] = q.V[0]
			} else {
				data[idx] = euler[0]
			}
		case mmi.ChannelYRotation:
			if hasW {
				data[idx] = q.V[1]
			} else {
				data[idx] = euler[1]
			}
		case mmi.ChannelZRotation:
			if hasW {
				data[idx] = q.V[2]
			} else {
				data[idx] = euler[2]
			}
		}
	}
	return true
}

func readOffset(desc mmi.AvatarDescription, data []float64, joint mmi.JointType) (mgl64.Vec3, bool) {
	slot, ok := desc.Slot(joint)
	if !ok {
		return mgl64.Vec3{}, false
	}
	var out mgl64.Vec3
	found := false
	for i, c := range slot.Channels {
		idx := slot.Offset + i
		if idx >= len(data) {
			break
		}
		switch c {
		case mmi.ChannelXOffset:
			out[0], found = data[idx], true
		case mmi.ChannelYOffset:
			out[1], found = data[idx], true
		case mmi.ChannelZOffset:
			out[2], found = data[idx], true
		}
	}
	return out, found
}

func writeOffset(desc mmi.AvatarDescription, data []float64, joint mmi.JointType, p mgl64.Vec3) bool {
	slot, ok := desc.Slot(joint)
	if !ok {
		return false
	}
	wrote := false
	for i, c := range slot.Channels {
		idx := slot.Offset + i
		if idx >= len(data) {
			break
		}
		switch c {
		case mmi.ChannelXOffset:
			data[idx], wrote = p[0], true
		case mmi.ChannelYOffset:
			data[idx], wrote = p[1], true
		case mmi.ChannelZOffset:
			data[idx], wrote = p[2], true
		}
	}
	return wrote
}

func quatToEulerDeg(q mgl64.Quat) mgl64.Vec3 {
	q = q.Normalize()
	x, y, z, w := q.V[0], q.V[1], q.V[2], q.W
	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	sinp := 2 * (w*y - z*x)
	if sinp > 1 {
		sinp = 1
	} else if sinp < -1 {
		sinp = -1
	}
	pitch := math.Asin(sinp)
	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return mgl64.Vec3{mgl64.RadToDeg(roll), mgl64.RadToDeg(pitch), mgl64.RadToDeg(yaw)}
}

// parseVector reads "x,y,z".
func parseVector(s string) (mmi.Vector3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return mmi.Vector3{}, fmt.Errorf("expected x,y,z, got %q", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return mmi.Vector3{}, fmt.Errorf("component %d: %w", i, err)
		}
		v[i] = f
	}
	return mmi.Vector3{X: v[0], Y: v[1], Z: v[2]}, nil
}

func parseFloatProp(in mmi.Instruction, key string, def float64) (float64, error) {
	s, ok := in.Property(key)
	if !ok || strings.TrimSpace(s) == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// prepare copies the current posture for a step and reports whether its length
// matches the description.
func prepare(desc mmi.AvatarDescription, state mmi.SimulationState) (mmi.AvatarPostureValues, bool) {
	out := state.Current.Clone()
	out.PartialJointList = nil
	return out, desc.CheckValues(out) == nil
}
