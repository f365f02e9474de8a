package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/thundergraph/gateway/logger"
)

// Hooks wires spans, counters, and access-log records into the pipeline
// at the seams spec §2 item 8 names: operation received, plan ready,
// partition start/finish, response completed. Unlike the teacher's
// eventbus-subscriber pattern (hanpama-protograph/internal/otel), which
// decouples producers from the telemetry subscriber via a bus this
// module doesn't carry, Hooks is called directly by the executor
// so the seams stay explicit and greppable in the pipeline code.
type Hooks struct {
	tracer trace.Tracer
	log    logger.Logger

	partitionCount  metric.Int64Counter
	partitionErrors metric.Int64Counter
	operationCount  metric.Int64Counter

	spans sync.Map // request id -> trace.Span, for the one operation-level span
}

// New builds a Hooks value from an already-configured tracer/meter (the
// exporter *wiring* is out of scope per §1 -- this package only emits).
func New(tracer trace.Tracer, meter metric.Meter, log logger.Logger) (*Hooks, error) {
	h := &Hooks{tracer: tracer, log: log}
	var err error
	if h.partitionCount, err = meter.Int64Counter("gateway.partitions.dispatched"); err != nil {
		return nil, err
	}
	if h.partitionErrors, err = meter.Int64Counter("gateway.partitions.errors"); err != nil {
		return nil, err
	}
	if h.operationCount, err = meter.Int64Counter("gateway.operations.received"); err != nil {
		return nil, err
	}
	return h, nil
}

// OperationReceived starts the root span for one bound operation and
// records an access-log entry. The returned context carries the span;
// callers must invoke the returned func once the response is complete,
// passing the final error count.
func (h *Hooks) OperationReceived(ctx context.Context, operationName, operationType string) (context.Context, func(errCount int)) {
	rid, _ := RequestIDFromContext(ctx)
	start := time.Now()

	ctx, span := h.tracer.Start(ctx, "graphql.operation")
	span.SetAttributes(
		attribute.String("graphql.operation.name", operationName),
		attribute.String("graphql.operation.type", operationType),
		attribute.String("request.id", rid.String()),
	)
	h.operationCount.Add(ctx, 1, metric.WithAttributes(attribute.String("graphql.operation.type", operationType)))

	h.log.Info("operation received",
		logger.KV("request_id", rid.String()), logger.KV("operation", operationName), logger.KV("type", operationType))

	return ctx, func(errCount int) {
		span.SetAttributes(attribute.Int("graphql.error_count", errCount))
		span.End()
		h.log.Info("response completed",
			logger.KV("request_id", rid.String()), logger.KV("operation", operationName),
			logger.KV("errors", errCount), logger.KV("duration_ms", time.Since(start).Milliseconds()))
	}
}

// PlanReady records that materialization succeeded and how many
// partitions the plan holds.
func (h *Hooks) PlanReady(ctx context.Context, partitionCount int) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("plan.ready", trace.WithAttributes(attribute.Int("plan.partitions", partitionCount)))
	h.log.Debug("plan ready", logger.KV("partitions", partitionCount))
}

// PartitionStart starts a span for one dispatched partition. The
// returned func must be invoked with the dispatch error (nil on
// success) once the partition has ingested or failed.
func (h *Hooks) PartitionStart(ctx context.Context, subgraph, form string) func(err error) {
	ctx, span := h.tracer.Start(ctx, "subgraph.partition",
		trace.WithAttributes(
			attribute.String("subgraph", subgraph),
			attribute.String("partition.form", form),
		))
	h.partitionCount.Add(ctx, 1, metric.WithAttributes(attribute.String("subgraph", subgraph)))
	start := time.Now()

	return func(err error) {
		if err != nil {
			span.RecordError(err)
			h.partitionErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("subgraph", subgraph)))
		}
		span.SetAttributes(attribute.Int64("partition.duration_ms", time.Since(start).Milliseconds()))
		span.End()
	}
}
