package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoomType classifies what a physical space is used for.
type RoomType string

const (
	RoomStall       RoomType = "stall"
	RoomPaddock     RoomType = "paddock"
	RoomQuarantine  RoomType = "quarantine"
	RoomBreeding    RoomType = "breeding"
	RoomFoaling     RoomType = "foaling"
	RoomRecovery    RoomType = "recovery"
	RoomWarehouse   RoomType = "warehouse"
	RoomFeedStorage RoomType = "feed_storage"
	RoomEquipment   RoomType = "equipment"
	RoomOffice      RoomType = "office"
	RoomMedical     RoomType = "medical"
)

// RoomStatus represents the operational state of a room. Available and
// occupied are automatic states driven by occupancy; maintenance, reserved
// and out_of_order are set manually and are never overwritten by occupancy
// changes.
type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomOccupied    RoomStatus = "occupied"
	RoomMaintenance RoomStatus = "maintenance"
	RoomReserved    RoomStatus = "reserved"
	RoomOutOfOrder  RoomStatus = "out_of_order"
)

// EntityRef is a back-reference from a room to one of its occupants.
type EntityRef struct {
	EntityID   string
	EntityName string
}

// Pricing holds the optional rates attached to a room.
type Pricing struct {
	DailyRate   decimal.Decimal
	MonthlyRate decimal.Decimal
	Currency    string
}

// Room is a physical space unit with finite capacity.
// Invariant: 0 <= CurrentOccupancy <= Capacity and
// len(Occupants) == CurrentOccupancy at all times.
type Room struct {
	ID               string
	Number           string
	Name             string
	Type             RoomType
	Building         string
	SizeSqm          float64
	Capacity         int
	CurrentOccupancy int
	Status           RoomStatus
	Occupants        []EntityRef
	Pricing          *Pricing
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RoomSpec carries the caller-provided fields for creating a room.
type RoomSpec struct {
	Number   string
	Name     string
	Type     RoomType
	Building string
	SizeSqm  float64
	Capacity int
	Pricing  *Pricing
}

// NewRoom creates a vacant, available room from a spec. Returns a
// *ValidationError when required fields are missing or capacity is not
// positive.
func NewRoom(id string, spec RoomSpec) (Room, error) {
	if spec.Number == "" {
		return Room{}, &ValidationError{Field: "number", Reason: "must not be empty"}
	}
	if spec.Name == "" {
		return Room{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if spec.Type == "" {
		return Room{}, &ValidationError{Field: "type", Reason: "must not be empty"}
	}
	if spec.Building == "" {
		return Room{}, &ValidationError{Field: "building", Reason: "must not be empty"}
	}
	if spec.SizeSqm <= 0 {
		return Room{}, &ValidationError{Field: "size_sqm", Reason: "must be positive"}
	}
	if spec.Capacity < 1 {
		return Room{}, &ValidationError{Field: "capacity", Reason: "must be at least 1"}
	}
	if spec.Pricing != nil && spec.Pricing.DailyRate.IsNegative() {
		return Room{}, &ValidationError{Field: "pricing.daily_rate", Reason: "must not be negative"}
	}

	now := time.Now().UTC()
	return Room{
		ID:        id,
		Number:    spec.Number,
		Name:      spec.Name,
		Type:      spec.Type,
		Building:  spec.Building,
		SizeSqm:   spec.SizeSqm,
		Capacity:  spec.Capacity,
		Status:    RoomAvailable,
		Pricing:   spec.Pricing,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RoomPatch carries optional structural edits. Nil fields are left unchanged.
// Occupancy is never patched directly; only assignment placement and
// termination move it.
type RoomPatch struct {
	Number   *string
	Name     *string
	Building *string
	SizeSqm  *float64
	Capacity *int
	Status   *RoomStatus
	Pricing  *Pricing
}

// ApplyRoomPatch returns the room with the patch applied. Shrinking capacity
// below the current occupancy is rejected with a *CapacityReductionError.
// Status patches may only set the manual states; patching to available or
// occupied hands the room back to automatic tracking, where the state is
// derived from the occupancy count.
func ApplyRoomPatch(room Room, patch RoomPatch) (Room, error) {
	if patch.Capacity != nil {
		if *patch.Capacity < 1 {
			return Room{}, &ValidationError{Field: "capacity", Reason: "must be at least 1"}
		}
		if *patch.Capacity < room.CurrentOccupancy {
			return Room{}, &CapacityReductionError{
				RoomID:    room.ID,
				Requested: *patch.Capacity,
				Occupancy: room.CurrentOccupancy,
			}
		}
		room.Capacity = *patch.Capacity
	}
	if patch.Number != nil {
		room.Number = *patch.Number
	}
	if patch.Name != nil {
		room.Name = *patch.Name
	}
	if patch.Building != nil {
		room.Building = *patch.Building
	}
	if patch.SizeSqm != nil {
		if *patch.SizeSqm <= 0 {
			return Room{}, &ValidationError{Field: "size_sqm", Reason: "must be positive"}
		}
		room.SizeSqm = *patch.SizeSqm
	}
	if patch.Status != nil {
		switch *patch.Status {
		case RoomMaintenance, RoomReserved, RoomOutOfOrder:
			room.Status = *patch.Status
		case RoomAvailable, RoomOccupied:
			// The automatic states are never set directly; they follow the
			// occupancy count.
			if room.CurrentOccupancy > 0 {
				room.Status = RoomOccupied
			} else {
				room.Status = RoomAvailable
			}
		default:
			return Room{}, &ValidationError{Field: "status", Reason: "unknown status " + string(*patch.Status)}
		}
	}
	if patch.Pricing != nil {
		room.Pricing = patch.Pricing
	}
	room.UpdatedAt = time.Now().UTC()
	return room, nil
}

// AllowsSharing reports whether a room type admits more than one occupant at
// a time. Quarantine spaces isolate a single occupant regardless of their
// nominal capacity.
func AllowsSharing(t RoomType) bool {
	return t != RoomQuarantine
}

// PlaceInRoom returns the room with one more occupant. The caller must have
// validated placement (see ValidatePlacement) inside the same critical
// section. Flips an available room to occupied; manual statuses are kept.
func PlaceInRoom(room Room, ref EntityRef) Room {
	room.CurrentOccupancy++
	room.Occupants = append(append([]EntityRef(nil), room.Occupants...), ref)
	if room.Status == RoomAvailable {
		room.Status = RoomOccupied
	}
	room.UpdatedAt = time.Now().UTC()
	return room
}

// ReleaseFromRoom returns the room with the given occupant removed. When the
// last occupant leaves, an occupied room becomes available again; rooms held
// in a manual status (maintenance, reserved, out_of_order) keep it.
func ReleaseFromRoom(room Room, entityID string) Room {
	kept := make([]EntityRef, 0, len(room.Occupants))
	for _, ref := range room.Occupants {
		if ref.EntityID != entityID {
			kept = append(kept, ref)
		}
	}
	if len(kept) < len(room.Occupants) {
		room.CurrentOccupancy--
	}
	room.Occupants = kept
	if room.CurrentOccupancy == 0 && room.Status == RoomOccupied {
		room.Status = RoomAvailable
	}
	room.UpdatedAt = time.Now().UTC()
	return room
}
