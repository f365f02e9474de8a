// Package observability attaches spans, counters, and structured
// access-log records at the pipeline's well-defined seams: operation
// received, plan ready, partition start/finish, response completed
// (spec §2 item 8). Grounded on hanpama-protograph's internal/otel
// (span lifecycle per request) and internal/reqid (context-carried
// request id), adapted from that repo's eventbus-subscriber style to
// direct method calls on a Hooks value threaded through the pipeline,
// since this module has no adopted eventbus package, and swapped from
// reqid's math/rand int64 to github.com/google/uuid per the domain
// stack's adopted identifier library.
package observability

import (
	"context"

	"github.com/google/uuid"
)

type reqIDKey struct{}

// NewRequestContext returns a copy of parent carrying a fresh request id,
// and the id itself.
func NewRequestContext(parent context.Context) (context.Context, uuid.UUID) {
	id := uuid.New()
	return context.WithValue(parent, reqIDKey{}, id), id
}

// RequestIDFromContext extracts the request id stored by
// NewRequestContext, if any.
func RequestIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(reqIDKey{}).(uuid.UUID)
	return id, ok
}
