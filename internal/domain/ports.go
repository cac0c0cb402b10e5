package domain

import "context"

// RoomFilter holds optional criteria for listing rooms.
type RoomFilter struct {
	Status *RoomStatus
	Type   *RoomType
}

// AssignmentFilter holds optional criteria for listing assignments. Status
// and entity type are exact matches; Search is a case-insensitive substring
// match over entity name and room ID.
type AssignmentFilter struct {
	Status     *AssignmentStatus
	EntityType *EntityType
	RoomID     string
	Search     string
	Limit      int
	Offset     int
}

// FacilityStore is the persistence contract for rooms and assignments. The
// two occupancy mutations, PlaceAssignment and CompleteTermination, touch
// both aggregates and must be executed as a single atomic unit: the
// capacity and duplicate guards are evaluated inside the same
// mutual-exclusion scope that applies the writes, and either every effect
// lands or none does.
type FacilityStore interface {
	CreateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context, filter RoomFilter) ([]Room, error)
	UpdateRoom(ctx context.Context, room Room) error
	DeleteRoom(ctx context.Context, id string) error

	GetAssignment(ctx context.Context, id string) (Assignment, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
	// ActiveAssignment returns the entity's single active assignment, or
	// ErrAssignmentNotFound when it has none.
	ActiveAssignment(ctx context.Context, entityID string) (Assignment, error)

	// PlaceAssignment atomically guards and creates an active assignment:
	// room lookup, capacity and duplicate checks, insert, occupancy
	// increment and status flip happen as one unit. Returns the created
	// assignment and the room as mutated.
	PlaceAssignment(ctx context.Context, assignment Assignment) (Assignment, Room, error)

	// CompleteTermination atomically commits a termination: the assignment
	// becomes completed with its rounded total cost and vacate date, and the
	// room slot is released. Partial application is never observable.
	CompleteTermination(ctx context.Context, commit TerminationCommit) (Assignment, Room, error)
}

// MovementPublisher is the fire-and-forget contract for emitting departure
// records to the external arrivals/departures system.
type MovementPublisher interface {
	PublishDeparture(ctx context.Context, record MovementRecord) error
}

// StepValidator checks wizard navigation against the step transition table.
type StepValidator interface {
	Apply(ctx context.Context, current Step, event StepEvent) (Step, error)
}
