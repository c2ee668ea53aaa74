package mmu

import (
	"errors"
	"math"
	"testing"

	"mosim.ai/internal/mmi"
)

type counterState struct {
	Steps  int
	Values []float64
}

func TestCheckpointRoundTrip(t *testing.T) {
	in := counterState{Steps: 7, Values: []float64{0.5, -1, 3.25}}
	b, err := EncodeCheckpoint(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(b) == 0 {
		t.Fatalf("empty checkpoint")
	}
	var out counterState
	if err := DecodeCheckpoint(b, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Steps != 7 || len(out.Values) != 3 || out.Values[2] != 3.25 {
		t.Fatalf("got %+v", out)
	}
}

func TestCheckpointKeepsExplicitZeroPointers(t *testing.T) {
	type state struct {
		Constraints []mmi.Constraint
		Unparent    mmi.TransformManipulation
		Values      []float64
	}
	in := state{
		Constraints: []mmi.Constraint{{ID: "c1", Velocity: &mmi.VelocityConstraint{ParentObjectID: "obj", WeightingFactor: mmi.Float(0)}}},
		Unparent:    mmi.TransformManipulation{Target: "cup", Parent: mmi.String("")},
		Values:      []float64{0.1, 1.0 / 3, -2.5e-7, 5e-324, 1.7976931348623157e308},
	}
	b, err := EncodeCheckpoint(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out state
	if err := DecodeCheckpoint(b, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w := out.Constraints[0].Velocity.WeightingFactor; w == nil || *w != 0 {
		t.Fatalf("weighting factor after round trip: %v", w)
	}
	if out.Constraints[0].Velocity.TranslationalVelocity != nil {
		t.Fatalf("absent field became present")
	}
	if p := out.Unparent.Parent; p == nil || *p != "" {
		t.Fatalf("unparent after round trip: %v", p)
	}
	for i, v := range in.Values {
		if math.Float64bits(out.Values[i]) != math.Float64bits(v) {
			t.Fatalf("value %d: %v became %v", i, v, out.Values[i])
		}
	}
}

func TestCheckpointCorruption(t *testing.T) {
	b, err := EncodeCheckpoint(counterState{Steps: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cases := map[string][]byte{
		"empty":     nil,
		"bad_magic": append([]byte("XXXX"), b[4:]...),
		"truncated": b[:len(b)/2],
		"version":   append(append([]byte(checkpointMagic), 9), b[5:]...),
	}
	for name, data := range cases {
		var out counterState
		err := DecodeCheckpoint(data, &out)
		if !errors.Is(err, ErrCorruptCheckpoint) {
			t.Fatalf("%s: expected ErrCorruptCheckpoint, got %v", name, err)
		}
	}
}

type nopUnit struct{ Base }

func (nopUnit) Initialize(mmi.AvatarDescription, map[string]string) mmi.BoolResponse { return mmi.OK() }
func (nopUnit) AssignInstruction(mmi.Instruction, mmi.SimulationState) mmi.BoolResponse {
	return mmi.OK()
}
func (nopUnit) DoStep(_ float64, s mmi.SimulationState) mmi.SimulationResult {
	return mmi.SimulationResult{Posture: s.Current}
}
func (nopUnit) Abort(string) mmi.BoolResponse     { return mmi.OK() }
func (nopUnit) CreateCheckpoint() ([]byte, error) { return EncodeCheckpoint(0) }
func (nopUnit) RestoreCheckpoint(data []byte) error {
	var v int
	return DecodeCheckpoint(data, &v)
}

func TestCatalogResolve(t *testing.T) {
	c := NewCatalog()
	f := Factory{
		Description: mmi.MMUDescription{ID: "nop-1", Name: "NopMMU", MotionType: "Pose/Nop"},
		New:         func(Env) MotionModelUnit { return nopUnit{} },
	}
	if err := c.Register(f); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.Register(f); !errors.Is(err, ErrDuplicateMMU) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	id, _, err := c.Resolve("NopMMU")
	if err != nil || id != "nop-1" {
		t.Fatalf("resolve by name: id=%q err=%v", id, err)
	}
	if _, _, err := c.Resolve("missing"); !errors.Is(err, ErrUnknownMMU) {
		t.Fatalf("expected unknown error, got %v", err)
	}
	if got := c.Descriptions(); len(got) != 1 || got[0].Name != "NopMMU" {
		t.Fatalf("descriptions=%+v", got)
	}
}
