package domain

// Capacity guard: pure predicates consulted before any occupancy mutation.
// Adapters must evaluate these inside the same critical section that applies
// the mutation; a check outside the lock is a time-of-check/time-of-use race.

// RemainingCapacity returns how many more occupants the room can hold.
func RemainingCapacity(room Room) int {
	return room.Capacity - room.CurrentOccupancy
}

// CanAccept reports whether the room may take one more assignment. Rooms in
// a manual status (maintenance, reserved, out_of_order) never accept, and a
// partially occupied room only accepts when its type allows sharing. The
// sharing rule keys off the occupancy count, not the status, so it holds
// even for rows written before status patching was normalized.
func CanAccept(room Room) bool {
	switch room.Status {
	case RoomAvailable, RoomOccupied:
	default:
		return false
	}
	if room.CurrentOccupancy > 0 && !AllowsSharing(room.Type) {
		return false
	}
	return RemainingCapacity(room) > 0
}

// ValidatePlacement is the combined precondition for creating an assignment
// in the given room. hasActive is whether the entity already holds an active
// assignment anywhere.
func ValidatePlacement(room Room, entityID string, hasActive bool) error {
	if hasActive {
		return &DuplicateAssignmentError{EntityID: entityID}
	}
	if !CanAccept(room) {
		return &CapacityExceededError{
			RoomID:    room.ID,
			Capacity:  room.Capacity,
			Occupancy: room.CurrentOccupancy,
			Status:    room.Status,
		}
	}
	return nil
}
