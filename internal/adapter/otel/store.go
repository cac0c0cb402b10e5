package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hollowbrook/stablekeep/internal/domain"
)

const tracerName = "github.com/hollowbrook/stablekeep/internal/adapter/otel"

// TracingStore wraps a domain.FacilityStore with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingStore struct {
	next   domain.FacilityStore
	tracer trace.Tracer
}

// Compile-time check: TracingStore implements domain.FacilityStore.
var _ domain.FacilityStore = (*TracingStore)(nil)

// NewTracingStore creates a tracing decorator around the given store.
func NewTracingStore(next domain.FacilityStore) *TracingStore {
	return &TracingStore{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingStore) CreateRoom(ctx context.Context, room domain.Room) error {
	ctx, span := s.tracer.Start(ctx, "FacilityStore.CreateRoom",
		trace.WithAttributes(
			attribute.String("room.id", room.ID),
			attribute.String("room.type", string(room.Type)),
		),
	)
	defer span.End()

	err := s.next.CreateRoom(ctx, room)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *TracingStore) GetRoom(ctx context.Context, id string) (domain.Room, error) {
	ctx, span := s.tracer.Start(ctx, "FacilityStore.GetRoom",
		trace.WithAttributes(attribute.String("room.id", id)),
	)
	defer span.End()

	room, err := s.next.GetRoom(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return room, err
}

func (s *TracingStore) ListRooms(ctx context.Context, filter domain.RoomFilter) ([]domain.Room, error) {
	ctx, span := s.tracer.Start(ctx, "FacilityStore.ListRooms")
	defer span.End()

	if filter.Status != nil {
		span.SetAttributes(attribute.String("filter.status", string(*filter.Status)))
	}
	if filter.Type != nil {
		span.SetAttributes(attribute.String("filter.type", string(*filter.Type)))
	}

	rooms, err := s.next.ListRooms(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(rooms)))
	}
	return rooms, err
}

func (s *TracingStore) UpdateRoom(ctx context.Context, room domain.Room) error {
	ctx, span := s.tracer.Start(ctx, "FacilityStore.UpdateRoom",
		trace.WithAttributes(
			attribute.String("room.id", room.ID),
			attribute.String("room.status", string(room.Status)),
		),
	)
	defer span.End()

	err := s.next.UpdateRoom(ctx, room)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *TracingStore) DeleteRoom(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "FacilityStore.DeleteRoom",
		trace.WithAttributes(attribute.String("room.id", id)),
	)
	defer span.End()

	err := s.next.DeleteRoom(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *TracingStore) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	ctx, span := s.tracer.Start(ctx, "FacilityStore.GetAssignment",
		trace.WithAttributes(attribute.String("assignment.id", id)),
	)
	defer span.End()

	assignment, err := s.next.GetAssignment(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return assignment, err
}

func (s *TracingStore) ListAssignments(ctx context.Context, filter domain.AssignmentFilter) ([]domain.Assignment, error) {
	ctx, span := s.tracer.Start(ctx, "FacilityStore.ListAssignments",
		trace.WithAttributes(
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer span.End()

	if filter.Status != nil {
		span.SetAttributes(attribute.String("filter.status", string(*filter.Status)))
	}

	assignments, err := s.next.ListAssignments(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(assignments)))
	}
	return assignments, err
}

func (s *TracingStore) ActiveAssignment(ctx context.Context, entityID string) (domain.Assignment, error) {
	ctx, span := s.tracer.Start(ctx, "FacilityStore.ActiveAssignment",
		trace.WithAttributes(attribute.String("entity.id", entityID)),
	)
	defer span.End()

	assignment, err := s.next.ActiveAssignment(ctx, entityID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return assignment, err
}

func (s *TracingStore) PlaceAssignment(ctx context.Context, assignment domain.Assignment) (domain.Assignment, domain.Room, error) {
	ctx, span := s.tracer.Start(ctx, "FacilityStore.PlaceAssignment",
		trace.WithAttributes(
			attribute.String("assignment.id", assignment.ID),
			attribute.String("entity.id", assignment.EntityID),
			attribute.String("room.id", assignment.RoomID),
		),
	)
	defer span.End()

	placed, room, err := s.next.PlaceAssignment(ctx, assignment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("room.occupancy", room.CurrentOccupancy))
	}
	return placed, room, err
}

func (s *TracingStore) CompleteTermination(ctx context.Context, commit domain.TerminationCommit) (domain.Assignment, domain.Room, error) {
	ctx, span := s.tracer.Start(ctx, "FacilityStore.CompleteTermination",
		trace.WithAttributes(
			attribute.String("assignment.id", commit.AssignmentID),
			attribute.String("termination.category", string(commit.Category)),
		),
	)
	defer span.End()

	assignment, room, err := s.next.CompleteTermination(ctx, commit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("room.occupancy", room.CurrentOccupancy))
	}
	return assignment, room, err
}
