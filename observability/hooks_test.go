package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/thundergraph/gateway/logger"
	"github.com/thundergraph/gateway/observability"
)

// With no global TracerProvider/MeterProvider configured, otel.Tracer and
// otel.Meter return no-op implementations -- enough to exercise Hooks
// without needing an exporter (exporter wiring is out of scope per spec
// §1, only hook emission is in scope).
func newTestHooks(t *testing.T) *observability.Hooks {
	t.Helper()
	h, err := observability.New(otel.Tracer("test"), otel.Meter("test"), logger.New())
	require.NoError(t, err)
	return h
}

func TestOperationLifecycle(t *testing.T) {
	h := newTestHooks(t)
	ctx, _ := observability.NewRequestContext(context.Background())

	ctx, finish := h.OperationReceived(ctx, "GetUser", "query")
	h.PlanReady(ctx, 3)
	endPartition := h.PartitionStart(ctx, "USERS", "query")
	endPartition(nil)
	endPartition2 := h.PartitionStart(ctx, "REVIEWS", "entity")
	endPartition2(errors.New("timeout"))
	finish(1)
}

func TestRequestIDRoundtrip(t *testing.T) {
	ctx, id := observability.NewRequestContext(context.Background())
	got, ok := observability.RequestIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, id, got)

	_, ok = observability.RequestIDFromContext(context.Background())
	require.False(t, ok)
}
