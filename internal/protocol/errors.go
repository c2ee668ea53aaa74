package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"
	ErrUnknownMethod   = "E_UNKNOWN_METHOD"
	ErrBadParams       = "E_BAD_PARAMS"

	// Connection state.
	ErrClosed  = "E_CLOSED"
	ErrTimeout = "E_TIMEOUT"

	ErrInternal = "E_INTERNAL"
)

// JSON-RPC 2.0 numeric codes.
const (
	RPCParseError     = -32700
	RPCInvalidRequest = -32600
	RPCMethodNotFound = -32601
	RPCInvalidParams  = -32602
	RPCInternalError  = -32603
)

var knownCodes = map[string]int{
	ErrProtoBadRequest: RPCInvalidRequest,
	ErrProtoVersion:    RPCInvalidRequest,
	ErrUnknownMethod:   RPCMethodNotFound,
	ErrBadParams:       RPCInvalidParams,
	ErrClosed:          RPCInternalError,
	ErrTimeout:         RPCInternalError,
	ErrInternal:        RPCInternalError,
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// RPCCode maps a protocol code to its JSON-RPC numeric code.
func RPCCode(code string) int {
	if n, ok := knownCodes[code]; ok {
		return n
	}
	return RPCInternalError
}
