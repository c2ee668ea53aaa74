package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "mem://mosim/"

// Routed adapter calls carry mmu_id and session_id in their params.
var routedMethods = map[string]bool{
	AdapterInitialize:             true,
	AdapterAssignInstruction:      true,
	AdapterCheckPrerequisites:     true,
	AdapterDoStep:                 true,
	AdapterCreateCheckpoint:       true,
	AdapterRestoreCheckpoint:      true,
	AdapterAbort:                  true,
	AdapterDispose:                true,
	AdapterGetBoundaryConstraints: true,
	AdapterExecuteFunction:        true,
}

// Validator checks inbound frames against the embedded JSON schemas before they
// reach a handler.
type Validator struct {
	request *jsonschema.Schema
	routing *jsonschema.Schema
	update  *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		b, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+e.Name(), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
	}
	compile := func(name string) (*jsonschema.Schema, error) {
		s, err := c.Compile(schemaBase + name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return s, nil
	}
	v := &Validator{}
	if v.request, err = compile("request.schema.json"); err != nil {
		return nil, err
	}
	if v.routing, err = compile("routing.schema.json"); err != nil {
		return nil, err
	}
	if v.update, err = compile("scene_update.schema.json"); err != nil {
		return nil, err
	}
	return v, nil
}

// MustValidator panics if the embedded schemas do not compile.
func MustValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// ValidateRequest checks the JSON-RPC envelope.
func (v *Validator) ValidateRequest(raw []byte) error {
	doc, err := decodeAny(raw)
	if err != nil {
		return err
	}
	return v.request.Validate(doc)
}

// ValidateParams checks method specific params. Methods without a schema pass.
func (v *Validator) ValidateParams(method string, raw json.RawMessage) error {
	var s *jsonschema.Schema
	switch {
	case routedMethods[method]:
		s = v.routing
	case method == SceneApplyUpdates:
		s = v.update
	default:
		return nil
	}
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	doc, err := decodeAny(raw)
	if err != nil {
		return err
	}
	return s.Validate(doc)
}

func decodeAny(raw []byte) (any, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
