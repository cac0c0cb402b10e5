package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType is the kind of thing occupying a room.
type EntityType string

const (
	EntityHorse     EntityType = "horse"
	EntityEquipment EntityType = "equipment"
	EntitySupplies  EntityType = "supplies"
)

// AssignmentStatus represents the lifecycle state of an assignment.
// Completed and cancelled are terminal.
type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

// Cost is the billing outcome of an assignment. TotalCost is authoritative
// only once the assignment has left the active state.
type Cost struct {
	DailyRate decimal.Decimal
	TotalCost decimal.Decimal
	Currency  string
}

// Assignment is a time-bounded occupancy relationship between an entity and
// a room. Invariant: at most one active assignment exists per entity.
type Assignment struct {
	ID             string
	RoomID         string
	EntityID       string
	EntityName     string
	EntityType     EntityType
	AssignedDate   time.Time
	ExpectedVacate *time.Time
	ActualVacate   *time.Time
	Status         AssignmentStatus
	AssignedBy     string
	DailyRate      decimal.Decimal
	Currency       string
	Cost           *Cost
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AssignmentSpec carries the caller-provided fields for creating an
// assignment.
type AssignmentSpec struct {
	RoomID         string
	EntityID       string
	EntityName     string
	EntityType     EntityType
	AssignedDate   time.Time
	ExpectedVacate *time.Time
	AssignedBy     string
	DailyRate      decimal.Decimal
	Currency       string
}

// NewAssignment creates an active assignment from a spec. Returns a
// *ValidationError when required fields are missing.
func NewAssignment(id string, spec AssignmentSpec) (Assignment, error) {
	if spec.RoomID == "" {
		return Assignment{}, &ValidationError{Field: "room_id", Reason: "must not be empty"}
	}
	if spec.EntityID == "" {
		return Assignment{}, &ValidationError{Field: "entity_id", Reason: "must not be empty"}
	}
	if spec.EntityName == "" {
		return Assignment{}, &ValidationError{Field: "entity_name", Reason: "must not be empty"}
	}
	switch spec.EntityType {
	case EntityHorse, EntityEquipment, EntitySupplies:
	default:
		return Assignment{}, &ValidationError{Field: "entity_type", Reason: "must be horse, equipment or supplies"}
	}
	if spec.AssignedDate.IsZero() {
		return Assignment{}, &ValidationError{Field: "assigned_date", Reason: "must be set"}
	}
	if spec.ExpectedVacate != nil && !spec.ExpectedVacate.After(spec.AssignedDate) {
		return Assignment{}, &ValidationError{Field: "expected_vacate", Reason: "must be after assigned date"}
	}
	if spec.DailyRate.IsNegative() {
		return Assignment{}, &ValidationError{Field: "daily_rate", Reason: "must not be negative"}
	}

	now := time.Now().UTC()
	return Assignment{
		ID:             id,
		RoomID:         spec.RoomID,
		EntityID:       spec.EntityID,
		EntityName:     spec.EntityName,
		EntityType:     spec.EntityType,
		AssignedDate:   spec.AssignedDate,
		ExpectedVacate: spec.ExpectedVacate,
		Status:         AssignmentActive,
		AssignedBy:     spec.AssignedBy,
		DailyRate:      spec.DailyRate,
		Currency:       spec.Currency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Terminal reports whether the assignment has left the active state.
func (a Assignment) Terminal() bool {
	return a.Status == AssignmentCompleted || a.Status == AssignmentCancelled
}
