package mmi

import (
	"fmt"
	"strings"
)

type JointType string

const (
	JointPelvisCentre  JointType = "PelvisCentre"
	JointS1L5          JointType = "S1L5Joint"
	JointT12L1         JointType = "T12L1Joint"
	JointT1T2          JointType = "T1T2Joint"
	JointC4C5          JointType = "C4C5Joint"
	JointHead          JointType = "HeadJoint"
	JointLeftEye       JointType = "LeftEye"
	JointRightEye      JointType = "RightEye"
	JointLeftShoulder  JointType = "LeftShoulder"
	JointLeftElbow     JointType = "LeftElbow"
	JointLeftWrist     JointType = "LeftWrist"
	JointRightShoulder JointType = "RightShoulder"
	JointRightElbow    JointType = "RightElbow"
	JointRightWrist    JointType = "RightWrist"
	JointLeftHip       JointType = "LeftHip"
	JointLeftKnee      JointType = "LeftKnee"
	JointLeftAnkle     JointType = "LeftAnkle"
	JointRightHip      JointType = "RightHip"
	JointRightKnee     JointType = "RightKnee"
	JointRightAnkle    JointType = "RightAnkle"
)

type Channel string

const (
	ChannelXOffset   Channel = "XOffset"
	ChannelYOffset   Channel = "YOffset"
	ChannelZOffset   Channel = "ZOffset"
	ChannelXRotation Channel = "XRotation"
	ChannelYRotation Channel = "YRotation"
	ChannelZRotation Channel = "ZRotation"
	ChannelWRotation Channel = "WRotation"
)

type Joint struct {
	ID       string     `json:"id"`
	Type     JointType  `json:"type"`
	Parent   string     `json:"parent,omitempty"`
	Position Vector3    `json:"position"`
	Rotation Quaternion `json:"rotation"`
	Channels []Channel  `json:"channels"`
}

type AvatarPosture struct {
	AvatarID string  `json:"avatar_id"`
	Joints   []Joint `json:"joints"`
}

type AvatarDescription struct {
	AvatarID    string            `json:"avatar_id"`
	ZeroPosture AvatarPosture     `json:"zero_posture"`
	Properties  map[string]string `json:"properties,omitempty"`
}

type AvatarPostureValues struct {
	AvatarID    string    `json:"avatar_id"`
	PostureData []float64 `json:"posture_data"`
	// PartialJointList names the joints this posture speaks for. Nil means all joints.
	PartialJointList []JointType `json:"partial_joint_list,omitempty"`
}

// JointSlot is the position of one joint's channels inside a posture vector.
type JointSlot struct {
	Type     JointType
	Offset   int
	Channels []Channel
}

// DOF is the number of values a posture of this avatar carries.
func (d AvatarDescription) DOF() int {
	n := 0
	for _, j := range d.ZeroPosture.Joints {
		n += len(j.Channels)
	}
	return n
}

// Layout returns the channel slots of every joint in declaration order.
func (d AvatarDescription) Layout() []JointSlot {
	out := make([]JointSlot, 0, len(d.ZeroPosture.Joints))
	off := 0
	for _, j := range d.ZeroPosture.Joints {
		out = append(out, JointSlot{Type: j.Type, Offset: off, Channels: j.Channels})
		off += len(j.Channels)
	}
	return out
}

// Slot finds the layout entry for a joint type.
func (d AvatarDescription) Slot(t JointType) (JointSlot, bool) {
	for _, s := range d.Layout() {
		if s.Type == t {
			return s, true
		}
	}
	return JointSlot{}, false
}

func (d AvatarDescription) Validate() error {
	if strings.TrimSpace(d.AvatarID) == "" {
		return fmt.Errorf("missing avatar_id")
	}
	if len(d.ZeroPosture.Joints) == 0 {
		return fmt.Errorf("zero posture has no joints")
	}
	seen := map[JointType]bool{}
	for i, j := range d.ZeroPosture.Joints {
		if j.Type == "" {
			return fmt.Errorf("joint %d: missing type", i)
		}
		if seen[j.Type] {
			return fmt.Errorf("joint %d: duplicate type %s", i, j.Type)
		}
		seen[j.Type] = true
		for _, c := range j.Channels {
			if !validChannel(c) {
				return fmt.Errorf("joint %s: unknown channel %q", j.Type, c)
			}
		}
	}
	return nil
}

// ZeroValues returns the rest posture as a values vector.
func (d AvatarDescription) ZeroValues() AvatarPostureValues {
	data := make([]float64, 0, d.DOF())
	for _, j := range d.ZeroPosture.Joints {
		for _, c := range j.Channels {
			switch c {
			case ChannelXOffset:
				data = append(data, j.Position.X)
			case ChannelYOffset:
				data = append(data, j.Position.Y)
			case ChannelZOffset:
				data = append(data, j.Position.Z)
			case ChannelWRotation:
				data = append(data, j.Rotation.W)
			default:
				data = append(data, 0)
			}
		}
	}
	return AvatarPostureValues{AvatarID: d.AvatarID, PostureData: data}
}

// CheckValues verifies the posture length invariant.
func (d AvatarDescription) CheckValues(v AvatarPostureValues) error {
	if len(v.PostureData) != d.DOF() {
		return fmt.Errorf("posture has %d values, avatar %s declares %d", len(v.PostureData), d.AvatarID, d.DOF())
	}
	return nil
}

func (v AvatarPostureValues) Clone() AvatarPostureValues {
	out := AvatarPostureValues{AvatarID: v.AvatarID}
	if v.PostureData != nil {
		out.PostureData = append([]float64(nil), v.PostureData...)
	}
	if v.PartialJointList != nil {
		out.PartialJointList = append([]JointType(nil), v.PartialJointList...)
	}
	return out
}

// Lists reports whether the partial joint list names t.
func (v AvatarPostureValues) Lists(t JointType) bool {
	for _, j := range v.PartialJointList {
		if j == t {
			return true
		}
	}
	return false
}

// Position reads the root translation (the first three values).
func (v AvatarPostureValues) Position() (Vector3, bool) {
	if len(v.PostureData) < 3 {
		return Vector3{}, false
	}
	return Vector3{X: v.PostureData[0], Y: v.PostureData[1], Z: v.PostureData[2]}, true
}

func validChannel(c Channel) bool {
	switch c {
	case ChannelXOffset, ChannelYOffset, ChannelZOffset,
		ChannelXRotation, ChannelYRotation, ChannelZRotation, ChannelWRotation:
		return true
	}
	return false
}

var quaternionChannels = []Channel{ChannelWRotation, ChannelXRotation, ChannelYRotation, ChannelZRotation}

// DefaultDescription is a 20 joint humanoid. The pelvis carries a translation and a
// quaternion, every other joint a quaternion.
func DefaultDescription(avatarID string) AvatarDescription {
	type spec struct {
		t      JointType
		parent JointType
		pos    Vector3
	}
	joints := []spec{
		{JointPelvisCentre, "", Vector3{Y: 1.0}},
		{JointS1L5, JointPelvisCentre, Vector3{Y: 0.1}},
		{JointT12L1, JointS1L5, Vector3{Y: 0.15}},
		{JointT1T2, JointT12L1, Vector3{Y: 0.25}},
		{JointC4C5, JointT1T2, Vector3{Y: 0.1}},
		{JointHead, JointC4C5, Vector3{Y: 0.1}},
		{JointLeftEye, JointHead, Vector3{X: -0.03, Y: 0.07, Z: 0.08}},
		{JointRightEye, JointHead, Vector3{X: 0.03, Y: 0.07, Z: 0.08}},
		{JointLeftShoulder, JointT1T2, Vector3{X: -0.18}},
		{JointLeftElbow, JointLeftShoulder, Vector3{X: -0.3}},
		{JointLeftWrist, JointLeftElbow, Vector3{X: -0.25}},
		{JointRightShoulder, JointT1T2, Vector3{X: 0.18}},
		{JointRightElbow, JointRightShoulder, Vector3{X: 0.3}},
		{JointRightWrist, JointRightElbow, Vector3{X: 0.25}},
		{JointLeftHip, JointPelvisCentre, Vector3{X: -0.1}},
		{JointLeftKnee, JointLeftHip, Vector3{Y: -0.45}},
		{JointLeftAnkle, JointLeftKnee, Vector3{Y: -0.42}},
		{JointRightHip, JointPelvisCentre, Vector3{X: 0.1}},
		{JointRightKnee, JointRightHip, Vector3{Y: -0.45}},
		{JointRightAnkle, JointRightKnee, Vector3{Y: -0.42}},
	}
	out := AvatarDescription{AvatarID: avatarID, ZeroPosture: AvatarPosture{AvatarID: avatarID}}
	for _, s := range joints {
		j := Joint{
			ID:       string(s.t),
			Type:     s.t,
			Parent:   string(s.parent),
			Position: s.pos,
			Rotation: IdentityQuaternion(),
			Channels: append([]Channel(nil), quaternionChannels...),
		}
		if s.t == JointPelvisCentre {
			j.Channels = append([]Channel{ChannelXOffset, ChannelYOffset, ChannelZOffset}, j.Channels...)
		}
		out.ZeroPosture.Joints = append(out.ZeroPosture.Joints, j)
	}
	return out
}
