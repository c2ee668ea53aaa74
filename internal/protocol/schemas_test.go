package protocol_test

import (
	"encoding/json"
	"testing"

	"mosim.ai/internal/protocol"
)

func TestValidator_Requests(t *testing.T) {
	v := protocol.MustValidator()

	ok := []string{
		`{"jsonrpc":"2.0","id":1,"method":"adapter.GetStatus"}`,
		`{"jsonrpc":"2.0","id":"a","method":"scene.ApplyUpdates","params":{"update":{}}}`,
	}
	for _, s := range ok {
		if err := v.ValidateRequest([]byte(s)); err != nil {
			t.Fatalf("validate %s: %v", s, err)
		}
	}

	bad := []string{
		`{"id":1,"method":"adapter.GetStatus"}`,
		`{"jsonrpc":"1.0","id":1,"method":"adapter.GetStatus"}`,
		`{"jsonrpc":"2.0","id":1,"method":"GetStatus"}`,
		`{"jsonrpc":"2.0","id":1,"method":"adapter.DoStep","params":[1,2]}`,
		`not json`,
	}
	for _, s := range bad {
		if err := v.ValidateRequest([]byte(s)); err == nil {
			t.Fatalf("expected %s rejected", s)
		}
	}
}

func TestValidator_Params(t *testing.T) {
	v := protocol.MustValidator()

	cases := []struct {
		method string
		params string
		ok     bool
	}{
		{protocol.AdapterDoStep, `{"mmu_id":"walk-1.0","session_id":"s:0","time":0.01}`, true},
		{protocol.AdapterDoStep, `{"mmu_id":"walk-1.0"}`, false},
		{protocol.AdapterDoStep, `{"mmu_id":"walk-1.0","session_id":"s:0","time":-1}`, false},
		{protocol.AdapterAbort, `{"mmu_id":"walk-1.0","session_id":""}`, false},
		{protocol.SceneApplyUpdates, `{"update":{"added_scene_objects":[{"id":"1"}],"removed_avatars":["2"]}}`, true},
		{protocol.SceneApplyUpdates, `{"update":{"added_scene_objects":[{"name":"no id"}]}}`, false},
		{protocol.SceneApplyUpdates, `{}`, false},
		{protocol.AdapterGetStatus, ``, true},
	}
	for _, c := range cases {
		err := v.ValidateParams(c.method, json.RawMessage(c.params))
		if (err == nil) != c.ok {
			t.Fatalf("%s %s: ok=%v err=%v", c.method, c.params, c.ok, err)
		}
	}
}
