package extension

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/thundergraph/gateway/gwerrors"
)

// The wire envelopes below are the CBOR-encoded request/response shapes
// spec §6 names ("Extension wire... CBOR-encoded arguments and UTF-8
// header maps; responses are CBOR encoding of decision records or field
// data"). Field names are kept short since they cross the sandbox
// boundary on every call.

type prepareRequest struct {
	Kind string `cbor:"kind"`
	Type string `cbor:"type"`
	Field string `cbor:"field"`
}

type prepareResponse struct {
	Prepared []byte `cbor:"prepared"`
	Error    string `cbor:"error,omitempty"`
}

type sharedContextWire struct {
	RequestID string                 `cbor:"request_id"`
	TraceID   string                 `cbor:"trace_id"`
	Headers   map[string]string      `cbor:"headers"`
	Scratch   map[string]interface{} `cbor:"scratch,omitempty"`
}

type resolveArgWire struct {
	Arguments map[string]interface{} `cbor:"arguments"`
	Source    interface{}            `cbor:"source,omitempty"`
}

type resolveRequest struct {
	Kind     string            `cbor:"kind"`
	Prepared []byte            `cbor:"prepared"`
	Shared   sharedContextWire `cbor:"shared"`
	Args     []resolveArgWire  `cbor:"args"`
}

type resolveResultWire struct {
	Value interface{} `cbor:"value,omitempty"`
	Error string      `cbor:"error,omitempty"`
}

type resolveResponse struct {
	Results []resolveResultWire `cbor:"results"`
}

type createSubscriptionRequest struct {
	Prepared []byte            `cbor:"prepared"`
	Shared   sharedContextWire `cbor:"shared"`
	Arg      resolveArgWire    `cbor:"arg"`
}

type createSubscriptionResponse struct {
	StreamURL string `cbor:"stream_url"`
	DedupKey  []byte `cbor:"dedup_key,omitempty"`
	Error     string `cbor:"error,omitempty"`
}

// subscriptionItemWire is one frame of the subscription's upstream
// WebSocket stream.
type subscriptionItemWire struct {
	Item interface{} `cbor:"item,omitempty"`
	Done bool        `cbor:"done,omitempty"`
	Error string     `cbor:"error,omitempty"`
}

func encodeCBOR(v interface{}) ([]byte, error) {
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, gwerrors.Internal(err, "encoding extension wire message")
	}
	return b, nil
}

func decodeCBOR(b []byte, v interface{}) error {
	if err := cbor.Unmarshal(b, v); err != nil {
		return gwerrors.Internal(err, "decoding extension wire message")
	}
	return nil
}

func toSharedWire(s SharedContext) sharedContextWire {
	return sharedContextWire{RequestID: s.RequestID, TraceID: s.TraceID, Headers: s.Headers, Scratch: s.Scratch}
}

func toArgWire(a ResolveArg) resolveArgWire {
	return resolveArgWire{Arguments: a.Arguments, Source: a.Source}
}
