package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrProtoVersion,
		ErrUnknownMethod,
		ErrBadParams,
		ErrClosed,
		ErrTimeout,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestRPCCode(t *testing.T) {
	if got := RPCCode(ErrUnknownMethod); got != RPCMethodNotFound {
		t.Fatalf("unknown method code=%d", got)
	}
	if got := RPCCode("E_NOT_DEFINED"); got != RPCInternalError {
		t.Fatalf("fallback code=%d", got)
	}
}
