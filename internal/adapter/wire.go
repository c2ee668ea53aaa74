package adapter

import "mosim.ai/internal/mmi"

// Request params of the adapter.* RPC methods.

type sessionParams struct {
	SessionID string `json:"session_id"`
}

type routeParams struct {
	MMUID     string `json:"mmu_id"`
	SessionID string `json:"session_id"`
}

type initializeParams struct {
	MMUID       string                `json:"mmu_id"`
	SessionID   string                `json:"session_id"`
	Description mmi.AvatarDescription `json:"description"`
	Properties  map[string]string     `json:"properties,omitempty"`
}

type assignParams struct {
	MMUID       string              `json:"mmu_id"`
	SessionID   string              `json:"session_id"`
	Instruction mmi.Instruction     `json:"instruction"`
	State       mmi.SimulationState `json:"state"`
}

type instructionParams struct {
	MMUID       string          `json:"mmu_id"`
	SessionID   string          `json:"session_id"`
	Instruction mmi.Instruction `json:"instruction"`
}

type stepParams struct {
	MMUID     string              `json:"mmu_id"`
	SessionID string              `json:"session_id"`
	Time      float64             `json:"time"`
	State     mmi.SimulationState `json:"state"`
}

type restoreParams struct {
	MMUID     string `json:"mmu_id"`
	SessionID string `json:"session_id"`
	Data      []byte `json:"data"`
}

type abortParams struct {
	MMUID         string `json:"mmu_id"`
	SessionID     string `json:"session_id"`
	InstructionID string `json:"instruction_id"`
}

type functionParams struct {
	MMUID     string            `json:"mmu_id"`
	SessionID string            `json:"session_id"`
	Name      string            `json:"name"`
	Params    map[string]string `json:"params,omitempty"`
}

type loadParams struct {
	SessionID string   `json:"session_id"`
	IDs       []string `json:"ids"`
}

type pushSceneParams struct {
	SessionID string          `json:"session_id"`
	Update    mmi.SceneUpdate `json:"update"`
}
