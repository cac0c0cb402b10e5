package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hollowbrook/stablekeep/internal/domain"
)

// Compile-time check: Store implements domain.FacilityStore.
var _ domain.FacilityStore = (*Store)(nil)

// Store is the in-memory FacilityStore adapter. A single mutex serializes
// every mutation, so the check-and-mutate occupancy operations are atomic by
// construction: no caller can observe the gap between a capacity check and
// the increment it guards.
type Store struct {
	mu          sync.Mutex
	rooms       map[string]domain.Room
	assignments map[string]domain.Assignment
	seq         int
	order       map[string]int
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		rooms:       make(map[string]domain.Room),
		assignments: make(map[string]domain.Assignment),
		order:       make(map[string]int),
	}
}

func (s *Store) CreateRoom(_ context.Context, room domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms[room.ID] = copyRoom(room)
	s.seq++
	s.order[room.ID] = s.seq
	return nil
}

func (s *Store) GetRoom(_ context.Context, id string) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return copyRoom(room), nil
}

func (s *Store) ListRooms(_ context.Context, filter domain.RoomFilter) ([]domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if filter.Status != nil && room.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && room.Type != *filter.Type {
			continue
		}
		out = append(out, copyRoom(room))
	}
	sort.Slice(out, func(i, j int) bool {
		return s.order[out[i].ID] < s.order[out[j].ID]
	})
	return out, nil
}

func (s *Store) UpdateRoom(_ context.Context, room domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rooms[room.ID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	// Re-verify the capacity bound against the live occupancy; the caller's
	// read-modify-write may have raced a placement.
	if room.Capacity < current.CurrentOccupancy {
		return &domain.CapacityReductionError{
			RoomID:    room.ID,
			Requested: room.Capacity,
			Occupancy: current.CurrentOccupancy,
		}
	}
	// Occupancy fields are owned by the placement/termination paths.
	room.CurrentOccupancy = current.CurrentOccupancy
	room.Occupants = current.Occupants
	s.rooms[room.ID] = copyRoom(room)
	return nil
}

func (s *Store) DeleteRoom(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if room.CurrentOccupancy > 0 {
		return &domain.RoomOccupiedError{RoomID: id, Occupancy: room.CurrentOccupancy}
	}
	delete(s.rooms, id)
	delete(s.order, id)
	return nil
}

func (s *Store) GetAssignment(_ context.Context, id string) (domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assignment, ok := s.assignments[id]
	if !ok {
		return domain.Assignment{}, domain.ErrAssignmentNotFound
	}
	return copyAssignment(assignment), nil
}

func (s *Store) ListAssignments(_ context.Context, filter domain.AssignmentFilter) ([]domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Assignment, 0, len(s.assignments))
	for _, assignment := range s.assignments {
		if !matches(assignment, filter) {
			continue
		}
		out = append(out, copyAssignment(assignment))
	}
	sort.Slice(out, func(i, j int) bool {
		return s.order[out[i].ID] < s.order[out[j].ID]
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matches(a domain.Assignment, filter domain.AssignmentFilter) bool {
	if filter.Status != nil && a.Status != *filter.Status {
		return false
	}
	if filter.EntityType != nil && a.EntityType != *filter.EntityType {
		return false
	}
	if filter.RoomID != "" && a.RoomID != filter.RoomID {
		return false
	}
	if filter.Search != "" {
		q := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(a.EntityName), q) &&
			!strings.Contains(strings.ToLower(a.RoomID), q) {
			return false
		}
	}
	return true
}

func (s *Store) ActiveAssignment(_ context.Context, entityID string) (domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assignment, ok := s.activeAssignmentLocked(entityID)
	if !ok {
		return domain.Assignment{}, domain.ErrAssignmentNotFound
	}
	return copyAssignment(assignment), nil
}

func (s *Store) activeAssignmentLocked(entityID string) (domain.Assignment, bool) {
	for _, assignment := range s.assignments {
		if assignment.EntityID == entityID && assignment.Status == domain.AssignmentActive {
			return assignment, true
		}
	}
	return domain.Assignment{}, false
}

func (s *Store) PlaceAssignment(_ context.Context, assignment domain.Assignment) (domain.Assignment, domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[assignment.RoomID]
	if !ok {
		return domain.Assignment{}, domain.Room{}, domain.ErrRoomNotFound
	}

	_, hasActive := s.activeAssignmentLocked(assignment.EntityID)
	if err := domain.ValidatePlacement(room, assignment.EntityID, hasActive); err != nil {
		return domain.Assignment{}, domain.Room{}, err
	}

	room = domain.PlaceInRoom(room, domain.EntityRef{
		EntityID:   assignment.EntityID,
		EntityName: assignment.EntityName,
	})
	s.rooms[room.ID] = room
	s.assignments[assignment.ID] = copyAssignment(assignment)
	s.seq++
	s.order[assignment.ID] = s.seq

	return copyAssignment(assignment), copyRoom(room), nil
}

func (s *Store) CompleteTermination(_ context.Context, commit domain.TerminationCommit) (domain.Assignment, domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assignment, ok := s.assignments[commit.AssignmentID]
	if !ok {
		return domain.Assignment{}, domain.Room{}, domain.ErrAssignmentNotFound
	}
	if assignment.Status != domain.AssignmentActive {
		return domain.Assignment{}, domain.Room{}, &domain.CommitError{
			AssignmentID: commit.AssignmentID,
			Err:          errors.New("assignment is not active"),
		}
	}
	room, ok := s.rooms[assignment.RoomID]
	if !ok {
		return domain.Assignment{}, domain.Room{}, &domain.CommitError{
			AssignmentID: commit.AssignmentID,
			Err:          domain.ErrRoomNotFound,
		}
	}

	// Both writes happen under the lock; no caller can observe one without
	// the other.
	vacate := commit.ActualVacate
	assignment.Status = domain.AssignmentCompleted
	assignment.ActualVacate = &vacate
	assignment.Cost = &domain.Cost{
		DailyRate: assignment.DailyRate,
		TotalCost: commit.TotalCost,
		Currency:  assignment.Currency,
	}
	assignment.UpdatedAt = time.Now().UTC()

	room = domain.ReleaseFromRoom(room, assignment.EntityID)

	s.assignments[assignment.ID] = assignment
	s.rooms[room.ID] = room

	return copyAssignment(assignment), copyRoom(room), nil
}

func copyRoom(room domain.Room) domain.Room {
	room.Occupants = append([]domain.EntityRef(nil), room.Occupants...)
	if room.Pricing != nil {
		pricing := *room.Pricing
		room.Pricing = &pricing
	}
	return room
}

func copyAssignment(a domain.Assignment) domain.Assignment {
	if a.ExpectedVacate != nil {
		v := *a.ExpectedVacate
		a.ExpectedVacate = &v
	}
	if a.ActualVacate != nil {
		v := *a.ActualVacate
		a.ActualVacate = &v
	}
	if a.Cost != nil {
		c := *a.Cost
		a.Cost = &c
	}
	return a
}
