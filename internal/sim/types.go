// Package sim drives one avatar's co-simulation at a fixed tick rate and feeds
// the merged result into the scene.
package sim

import (
	"context"

	"mosim.ai/internal/cosim"
	"mosim.ai/internal/mmi"
)

type FrameLogger interface {
	WriteFrame(entry FrameLogEntry) error
}

type EventLogger interface {
	WriteEvent(entry EventLogEntry) error
}

// Indexer receives every frame for secondary indexing. It must not block.
type Indexer interface {
	RecordFrame(entry FrameLogEntry)
}

// ScenePublisher forwards scene deltas to the MMUs' adapters.
type ScenePublisher interface {
	PushScene(ctx context.Context, update mmi.SceneUpdate) bool
}

// FrameLogEntry carries enough to replay a frame: the instructions and aborts
// accepted at its tick boundary and the step length.
type FrameLogEntry struct {
	Frame    uint64                `json:"frame"`
	Time     float64               `json:"time"`
	DT       float64               `json:"dt"`
	AvatarID string                `json:"avatar_id"`
	Tasks    []cosim.Task          `json:"tasks,omitempty"`
	Assigned []mmi.Instruction     `json:"assigned,omitempty"`
	Aborted  []string              `json:"aborted,omitempty"`
	Events   []mmi.SimulationEvent `json:"events,omitempty"`
	Posture  []float64             `json:"posture"`
	LogData  []string              `json:"log_data,omitempty"`
	Digest   string                `json:"digest"`
}

type EventLogEntry struct {
	Frame    uint64              `json:"frame"`
	Time     float64             `json:"time"`
	AvatarID string              `json:"avatar_id"`
	Event    mmi.SimulationEvent `json:"event"`
}

type AssignRequest struct {
	Instruction mmi.Instruction
	Resp        chan mmi.BoolResponse
}

type AbortRequest struct {
	InstructionID string
	Resp          chan mmi.BoolResponse
}
