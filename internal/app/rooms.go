package app

import (
	"context"
	"fmt"
	"iter"

	"github.com/hollowbrook/stablekeep/internal/domain"
)

// RoomService is the room registry: it owns room creation and structural
// edits. Occupancy counts are only ever moved by the assignment side of the
// store.
type RoomService struct {
	store domain.FacilityStore
}

// NewRoomService creates a registry backed by the given store.
func NewRoomService(store domain.FacilityStore) *RoomService {
	return &RoomService{store: store}
}

// Create validates the room details and persists a new vacant room.
func (s *RoomService) Create(ctx context.Context, spec domain.RoomSpec) (domain.Room, error) {
	id, err := generateID()
	if err != nil {
		return domain.Room{}, fmt.Errorf("generating room id: %w", err)
	}

	room, err := domain.NewRoom(id, spec)
	if err != nil {
		return domain.Room{}, err
	}

	if err := s.store.CreateRoom(ctx, room); err != nil {
		return domain.Room{}, fmt.Errorf("creating room: %w", err)
	}

	return room, nil
}

// Get returns a room by ID.
func (s *RoomService) Get(ctx context.Context, id string) (domain.Room, error) {
	return s.store.GetRoom(ctx, id)
}

// List returns rooms matching the filter.
func (s *RoomService) List(ctx context.Context, filter domain.RoomFilter) ([]domain.Room, error) {
	return s.store.ListRooms(ctx, filter)
}

// Update applies a structural patch to a room. Capacity may not shrink below
// the current occupancy; the store re-verifies that bound inside its own
// critical section.
func (s *RoomService) Update(ctx context.Context, id string, patch domain.RoomPatch) (domain.Room, error) {
	room, err := s.store.GetRoom(ctx, id)
	if err != nil {
		return domain.Room{}, err
	}

	updated, err := domain.ApplyRoomPatch(room, patch)
	if err != nil {
		return domain.Room{}, err
	}

	if err := s.store.UpdateRoom(ctx, updated); err != nil {
		return domain.Room{}, fmt.Errorf("updating room: %w", err)
	}

	return updated, nil
}

// Delete removes a vacant room. Rooms with occupants are refused.
func (s *RoomService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteRoom(ctx, id)
}

// Available returns a lazy, restartable sequence over the rooms that can
// still accept an assignment, snapshotted at call time.
func (s *RoomService) Available(ctx context.Context) (iter.Seq[domain.Room], error) {
	rooms, err := s.store.ListRooms(ctx, domain.RoomFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	return domain.AvailableRooms(rooms), nil
}

// Stats summarizes occupancy across all rooms.
func (s *RoomService) Stats(ctx context.Context) (domain.OccupancyStats, error) {
	rooms, err := s.store.ListRooms(ctx, domain.RoomFilter{})
	if err != nil {
		return domain.OccupancyStats{}, fmt.Errorf("listing rooms: %w", err)
	}
	return domain.ComputeOccupancyStats(rooms), nil
}
