package cosim

import "mosim.ai/internal/mmi"

// Solver post-processes a merged result. Its posture overwrites every joint it
// influences, after all MMU results.
type Solver interface {
	Name() string
	RequiresSolving(result mmi.SimulationResult, dt float64) bool
	Solve(result mmi.SimulationResult, dt float64) mmi.SimulationResult
}

// LocalPostureSolver enforces posture constraints carried by the merged result:
// the joints a constraint names take the constraint's values.
type LocalPostureSolver struct {
	Description mmi.AvatarDescription
}

func (s *LocalPostureSolver) Name() string { return "LocalPostureSolver" }

func (s *LocalPostureSolver) RequiresSolving(result mmi.SimulationResult, _ float64) bool {
	for _, c := range result.Constraints {
		if c.Posture != nil {
			return true
		}
	}
	return false
}

func (s *LocalPostureSolver) Solve(result mmi.SimulationResult, _ float64) mmi.SimulationResult {
	out := mmi.SimulationResult{Posture: result.Posture.Clone()}
	out.Posture.PartialJointList = []mmi.JointType{}
	dof := s.Description.DOF()
	if len(out.Posture.PostureData) != dof {
		out.LogData = append(out.LogData, "LocalPostureSolver: posture does not match avatar description")
		return out
	}
	seen := map[mmi.JointType]bool{}
	for _, c := range result.Constraints {
		if c.Posture == nil || len(c.Posture.Posture.PostureData) != dof {
			continue
		}
		joints := c.Posture.JointConstraints
		if joints == nil {
			joints = c.Posture.Posture.PartialJointList
		}
		if joints == nil {
			for _, slot := range s.Description.Layout() {
				joints = append(joints, slot.Type)
			}
		}
		for _, j := range joints {
			slot, ok := s.Description.Slot(j)
			if !ok {
				continue
			}
			n := len(slot.Channels)
			copy(out.Posture.PostureData[slot.Offset:slot.Offset+n], c.Posture.Posture.PostureData[slot.Offset:slot.Offset+n])
			if !seen[j] {
				seen[j] = true
				out.Posture.PartialJointList = append(out.Posture.PartialJointList, j)
			}
		}
	}
	return out
}
