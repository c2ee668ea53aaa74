// Package observerproto defines the messages of the frame observer stream.
package observerproto

import (
	"mosim.ai/internal/cosim"
	"mosim.ai/internal/mmi"
)

// Version is the observer protocol version (separate from the RPC protocol).
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// EveryN thins the stream to every n-th frame; 0 or 1 sends every frame.
	EveryN         int  `json:"every_n,omitempty"`
	IncludePosture bool `json:"include_posture,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	AvatarID        string      `json:"avatar_id"`
	Frame           uint64      `json:"frame"`
	TickRateHz      int         `json:"tick_rate_hz"`
	DOF             int         `json:"dof"`
	Joints          []JointInfo `json:"joints"`
}

// JointInfo tells a viewer where a joint's channels sit in the posture array.
type JointInfo struct {
	Type     mmi.JointType `json:"type"`
	Offset   int           `json:"offset"`
	Channels []mmi.Channel `json:"channels"`
}

// Server -> Client. Sent every (n-th) frame.
type FrameMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Frame           uint64  `json:"frame"`
	Time            float64 `json:"time"`

	Tasks    []cosim.Task          `json:"tasks"`
	Assigned []string              `json:"assigned,omitempty"`
	Aborted  []string              `json:"aborted,omitempty"`
	Events   []mmi.SimulationEvent `json:"events,omitempty"`
	Position *mmi.Vector3          `json:"position,omitempty"`
	Posture  []float64             `json:"posture,omitempty"`
	Digest   string                `json:"digest"`
}

// Joints lists the description's layout for BootstrapResponse.
func Joints(desc mmi.AvatarDescription) []JointInfo {
	layout := desc.Layout()
	out := make([]JointInfo, 0, len(layout))
	for _, s := range layout {
		out = append(out, JointInfo{Type: s.Type, Offset: s.Offset, Channels: append([]mmi.Channel(nil), s.Channels...)})
	}
	return out
}
