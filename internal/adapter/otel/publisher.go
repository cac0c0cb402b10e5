package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hollowbrook/stablekeep/internal/domain"
)

// TracingPublisher wraps a domain.MovementPublisher with OpenTelemetry tracing.
type TracingPublisher struct {
	next   domain.MovementPublisher
	tracer trace.Tracer
}

// Compile-time check: TracingPublisher implements domain.MovementPublisher.
var _ domain.MovementPublisher = (*TracingPublisher)(nil)

// NewTracingPublisher creates a tracing decorator around the given publisher.
func NewTracingPublisher(next domain.MovementPublisher) *TracingPublisher {
	return &TracingPublisher{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (p *TracingPublisher) PublishDeparture(ctx context.Context, record domain.MovementRecord) error {
	ctx, span := p.tracer.Start(ctx, "MovementPublisher.PublishDeparture",
		trace.WithAttributes(
			attribute.String("movement.type", record.Type),
			attribute.String("assignment.id", record.AssignmentID),
			attribute.String("entity.id", record.EntityID),
		),
	)
	defer span.End()

	err := p.next.PublishDeparture(ctx, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
