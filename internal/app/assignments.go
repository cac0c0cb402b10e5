package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hollowbrook/stablekeep/internal/domain"
)

// AssignmentService is the assignment ledger: guarded creation and read-only
// projections. Assignments only leave the active state through the
// termination workflow.
type AssignmentService struct {
	store domain.FacilityStore
}

// NewAssignmentService creates a ledger backed by the given store.
func NewAssignmentService(store domain.FacilityStore) *AssignmentService {
	return &AssignmentService{store: store}
}

// Create places a new active assignment. The store evaluates the capacity
// and duplicate-active guards and applies the occupancy increment as one
// atomic unit, so two concurrent creates against a near-full room cannot
// both succeed.
func (s *AssignmentService) Create(ctx context.Context, spec domain.AssignmentSpec) (domain.Assignment, domain.Room, error) {
	id, err := generateID()
	if err != nil {
		return domain.Assignment{}, domain.Room{}, fmt.Errorf("generating assignment id: %w", err)
	}

	assignment, err := domain.NewAssignment(id, spec)
	if err != nil {
		return domain.Assignment{}, domain.Room{}, err
	}

	return s.store.PlaceAssignment(ctx, assignment)
}

// Get returns an assignment by ID.
func (s *AssignmentService) Get(ctx context.Context, id string) (domain.Assignment, error) {
	return s.store.GetAssignment(ctx, id)
}

// List returns assignments matching the filter.
func (s *AssignmentService) List(ctx context.Context, filter domain.AssignmentFilter) ([]domain.Assignment, error) {
	return s.store.ListAssignments(ctx, filter)
}

// Location describes where an entity currently is, in the vocabulary the
// housing service consumes.
type Location struct {
	LocationType string
	LocationID   string
}

// Locate resolves an entity's active assignment to a coarse location:
// "paddock" for paddock rooms, "stable" for any other room type, "unknown"
// when the entity has no active assignment.
func (s *AssignmentService) Locate(ctx context.Context, entityID string) (Location, error) {
	assignment, err := s.store.ActiveAssignment(ctx, entityID)
	if err != nil {
		if errors.Is(err, domain.ErrAssignmentNotFound) {
			return Location{LocationType: "unknown"}, nil
		}
		return Location{}, err
	}

	room, err := s.store.GetRoom(ctx, assignment.RoomID)
	if err != nil {
		return Location{}, err
	}

	locationType := "stable"
	if room.Type == domain.RoomPaddock {
		locationType = "paddock"
	}
	return Location{LocationType: locationType, LocationID: room.ID}, nil
}
