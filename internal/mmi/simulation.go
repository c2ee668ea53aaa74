package mmi

// Well-known simulation event types.
const (
	EventStart     = "start"
	EventEnd       = "end"
	EventAbort     = "abort"
	EventInitError = "InitError"
	EventStepError = "StepError"
)

type Instruction struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	MotionType     string            `json:"motion_type"`
	Properties     map[string]string `json:"properties,omitempty"`
	Constraints    []Constraint      `json:"constraints,omitempty"`
	StartCondition string            `json:"start_condition,omitempty"`
	EndCondition   string            `json:"end_condition,omitempty"`
	Action         string            `json:"action,omitempty"`
	Instructions   []Instruction     `json:"instructions,omitempty"`
}

// Property returns a named parameter and whether it was present.
func (i Instruction) Property(key string) (string, bool) {
	if i.Properties == nil {
		return "", false
	}
	v, ok := i.Properties[key]
	return v, ok
}

type SimulationEvent struct {
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Reference  string            `json:"reference"`
	Properties map[string]string `json:"properties,omitempty"`
}

type SimulationState struct {
	Initial            AvatarPostureValues `json:"initial"`
	Current            AvatarPostureValues `json:"current"`
	Constraints        []Constraint        `json:"constraints,omitempty"`
	SceneManipulations []SceneManipulation `json:"scene_manipulations,omitempty"`
	Events             []SimulationEvent   `json:"events,omitempty"`
}

type SimulationResult struct {
	Posture            AvatarPostureValues `json:"posture"`
	Constraints        []Constraint        `json:"constraints,omitempty"`
	Events             []SimulationEvent   `json:"events,omitempty"`
	SceneManipulations []SceneManipulation `json:"scene_manipulations,omitempty"`
	DrawingCalls       []DrawingCall       `json:"drawing_calls,omitempty"`
	LogData            []string            `json:"log_data,omitempty"`
}

// DrawingCall is debug geometry forwarded untouched to a renderer.
type DrawingCall struct {
	Type       string            `json:"type"`
	Data       []float64         `json:"data,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Clone copies the result deeply enough that later mutation of the source slices
// cannot leak into recorded frames.
func (r SimulationResult) Clone() SimulationResult {
	out := SimulationResult{Posture: r.Posture.Clone()}
	out.Constraints = append([]Constraint(nil), r.Constraints...)
	out.Events = append([]SimulationEvent(nil), r.Events...)
	out.SceneManipulations = append([]SceneManipulation(nil), r.SceneManipulations...)
	out.DrawingCalls = append([]DrawingCall(nil), r.DrawingCalls...)
	out.LogData = append([]string(nil), r.LogData...)
	return out
}

type BoundaryConstraints []Constraint

type BoolResponse struct {
	Successful bool     `json:"successful"`
	LogData    []string `json:"log_data,omitempty"`
}

func OK(log ...string) BoolResponse { return BoolResponse{Successful: true, LogData: log} }

func Fail(log ...string) BoolResponse { return BoolResponse{Successful: false, LogData: log} }

type ParameterDescription struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

type MMUDescription struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	MotionType       string                 `json:"motion_type"`
	Language         string                 `json:"language"`
	Author           string                 `json:"author,omitempty"`
	Version          string                 `json:"version"`
	ShortDescription string                 `json:"short_description,omitempty"`
	LongDescription  string                 `json:"long_description,omitempty"`
	Parameters       []ParameterDescription `json:"parameters,omitempty"`
	Events           []string               `json:"events,omitempty"`
	Dependencies     []string               `json:"dependencies,omitempty"`
	Prerequisites    []Constraint           `json:"prerequisites,omitempty"`
	Properties       map[string]string      `json:"properties,omitempty"`
}

// MissingParameters lists required parameters the instruction does not carry.
func (d MMUDescription) MissingParameters(in Instruction) []string {
	var out []string
	for _, p := range d.Parameters {
		if !p.Required {
			continue
		}
		if _, ok := in.Property(p.Name); !ok {
			out = append(out, p.Name)
		}
	}
	return out
}
