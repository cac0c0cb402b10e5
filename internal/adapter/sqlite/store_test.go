package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hollowbrook/stablekeep/internal/adapter/sqlite"
	"github.com/hollowbrook/stablekeep/internal/domain"
)

// newTestStore creates an in-memory SQLite store for testing.
func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustRoom(t *testing.T, store *sqlite.Store, id string, capacity int) domain.Room {
	t.Helper()
	room, err := domain.NewRoom(id, domain.RoomSpec{
		Number:   "S-" + id,
		Name:     "Stall " + id,
		Type:     domain.RoomStall,
		Building: "North Barn",
		SizeSqm:  12,
		Capacity: capacity,
		Pricing: &domain.Pricing{
			DailyRate:   decimal.NewFromInt(40),
			MonthlyRate: decimal.NewFromInt(900),
			Currency:    "EUR",
		},
	})
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	if err := store.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return room
}

func mustPlace(t *testing.T, store *sqlite.Store, id, roomID, entityID, entityName string) domain.Assignment {
	t.Helper()
	expected := time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
	assignment, err := domain.NewAssignment(id, domain.AssignmentSpec{
		RoomID:         roomID,
		EntityID:       entityID,
		EntityName:     entityName,
		EntityType:     domain.EntityHorse,
		AssignedDate:   time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		ExpectedVacate: &expected,
		AssignedBy:     "stable-manager",
		DailyRate:      decimal.NewFromInt(40),
		Currency:       "EUR",
	})
	if err != nil {
		t.Fatalf("NewAssignment: %v", err)
	}
	placed, _, err := store.PlaceAssignment(context.Background(), assignment)
	if err != nil {
		t.Fatalf("PlaceAssignment: %v", err)
	}
	return placed
}

func TestCreateRoom_And_GetRoom(t *testing.T) {
	store := newTestStore(t)
	mustRoom(t, store, "r-1", 2)

	got, err := store.GetRoom(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}

	if got.Number != "S-r-1" {
		t.Errorf("Number = %q, want %q", got.Number, "S-r-1")
	}
	if got.Status != domain.RoomAvailable {
		t.Errorf("Status = %q, want %q", got.Status, domain.RoomAvailable)
	}
	if got.Pricing == nil || !got.Pricing.DailyRate.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Pricing = %+v, want daily rate 40", got.Pricing)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should not be zero")
	}
}

func TestGetRoom_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRoom(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestPlaceAssignment_Guards(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustRoom(t, store, "r-1", 2)

	mustPlace(t, store, "a-1", "r-1", "h-1", "Thunder")
	mustPlace(t, store, "a-2", "r-1", "h-2", "Storm")

	// Capacity is exhausted.
	third, _ := domain.NewAssignment("a-3", domain.AssignmentSpec{
		RoomID:       "r-1",
		EntityID:     "h-3",
		EntityName:   "Blaze",
		EntityType:   domain.EntityHorse,
		AssignedDate: time.Now().UTC(),
		DailyRate:    decimal.NewFromInt(40),
	})
	_, _, err := store.PlaceAssignment(ctx, third)
	var capErr *domain.CapacityExceededError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapacityExceededError, got %v", err)
	}

	room, _ := store.GetRoom(ctx, "r-1")
	if room.CurrentOccupancy != 2 {
		t.Errorf("occupancy = %d, want 2", room.CurrentOccupancy)
	}
	if len(room.Occupants) != 2 {
		t.Errorf("occupants = %d, want 2", len(room.Occupants))
	}
	if room.Status != domain.RoomOccupied {
		t.Errorf("status = %q, want %q", room.Status, domain.RoomOccupied)
	}
}

func TestPlaceAssignment_DuplicateEntityAcrossRooms(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustRoom(t, store, "r-x", 2)
	mustRoom(t, store, "r-y", 2)

	mustPlace(t, store, "a-1", "r-x", "h-1", "Grace")

	dup, _ := domain.NewAssignment("a-2", domain.AssignmentSpec{
		RoomID:       "r-y",
		EntityID:     "h-1",
		EntityName:   "Grace",
		EntityType:   domain.EntityHorse,
		AssignedDate: time.Now().UTC(),
		DailyRate:    decimal.NewFromInt(40),
	})
	_, _, err := store.PlaceAssignment(ctx, dup)
	var dupErr *domain.DuplicateAssignmentError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateAssignmentError, got %v", err)
	}

	roomY, _ := store.GetRoom(ctx, "r-y")
	if roomY.CurrentOccupancy != 0 {
		t.Errorf("room Y occupancy = %d, want 0", roomY.CurrentOccupancy)
	}
}

func TestCompleteTermination_Atomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustRoom(t, store, "r-1", 1)
	mustPlace(t, store, "a-1", "r-1", "h-1", "Thunder")

	vacate := time.Date(2026, time.January, 11, 0, 0, 0, 0, time.UTC)
	assignment, room, err := store.CompleteTermination(ctx, domain.TerminationCommit{
		AssignmentID: "a-1",
		ActualVacate: vacate,
		Reason:       "seasonal move",
		Category:     domain.CategoryPlanned,
		TotalCost:    decimal.RequireFromString("400"),
		Notes:        "left in good condition",
	})
	if err != nil {
		t.Fatalf("CompleteTermination: %v", err)
	}

	if assignment.Status != domain.AssignmentCompleted {
		t.Errorf("assignment status = %q, want %q", assignment.Status, domain.AssignmentCompleted)
	}
	if room.CurrentOccupancy != 0 {
		t.Errorf("room occupancy = %d, want 0", room.CurrentOccupancy)
	}
	if room.Status != domain.RoomAvailable {
		t.Errorf("room status = %q, want %q", room.Status, domain.RoomAvailable)
	}

	// Re-read both aggregates; neither effect may be missing.
	storedAssignment, err := store.GetAssignment(ctx, "a-1")
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if storedAssignment.Status != domain.AssignmentCompleted {
		t.Errorf("stored status = %q, want %q", storedAssignment.Status, domain.AssignmentCompleted)
	}
	if storedAssignment.Cost == nil || !storedAssignment.Cost.TotalCost.Equal(decimal.NewFromInt(400)) {
		t.Errorf("stored cost = %+v, want total 400", storedAssignment.Cost)
	}
	if storedAssignment.ActualVacate == nil || !storedAssignment.ActualVacate.Equal(vacate) {
		t.Errorf("stored vacate = %v, want %v", storedAssignment.ActualVacate, vacate)
	}

	storedRoom, _ := store.GetRoom(ctx, "r-1")
	if storedRoom.CurrentOccupancy != 0 {
		t.Errorf("stored occupancy = %d, want 0", storedRoom.CurrentOccupancy)
	}
	if len(storedRoom.Occupants) != 0 {
		t.Errorf("stored occupants = %d, want 0", len(storedRoom.Occupants))
	}
}

func TestCompleteTermination_AlreadyCompleted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustRoom(t, store, "r-1", 1)
	mustPlace(t, store, "a-1", "r-1", "h-1", "Thunder")

	commit := domain.TerminationCommit{
		AssignmentID: "a-1",
		ActualVacate: time.Now().UTC(),
		TotalCost:    decimal.NewFromInt(40),
	}
	if _, _, err := store.CompleteTermination(ctx, commit); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	_, _, err := store.CompleteTermination(ctx, commit)
	var commitErr *domain.CommitError
	if !errors.As(err, &commitErr) {
		t.Fatalf("expected CommitError, got %v", err)
	}
}

func TestDeleteRoom(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustRoom(t, store, "r-1", 1)
	mustPlace(t, store, "a-1", "r-1", "h-1", "Thunder")

	err := store.DeleteRoom(ctx, "r-1")
	var occErr *domain.RoomOccupiedError
	if !errors.As(err, &occErr) {
		t.Fatalf("expected RoomOccupiedError, got %v", err)
	}

	// After termination the room is vacant and may be deleted.
	if _, _, err := store.CompleteTermination(ctx, domain.TerminationCommit{
		AssignmentID: "a-1",
		ActualVacate: time.Now().UTC(),
		TotalCost:    decimal.NewFromInt(40),
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteRoom(ctx, "r-1"); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	if _, err := store.GetRoom(ctx, "r-1"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound after delete, got %v", err)
	}
}

func TestUpdateRoom_CapacityBelowOccupancy(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	room := mustRoom(t, store, "r-1", 2)
	mustPlace(t, store, "a-1", "r-1", "h-1", "Thunder")

	room.Capacity = 0
	err := store.UpdateRoom(ctx, room)
	var capErr *domain.CapacityReductionError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapacityReductionError, got %v", err)
	}
}

func TestListRooms_Filter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustRoom(t, store, "r-1", 2)
	mustRoom(t, store, "r-2", 2)
	mustPlace(t, store, "a-1", "r-1", "h-1", "Thunder")

	available := domain.RoomAvailable
	rooms, err := store.ListRooms(ctx, domain.RoomFilter{Status: &available})
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != "r-2" {
		t.Errorf("available rooms = %v, want [r-2]", rooms)
	}
}

func TestListAssignments_SearchAndPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustRoom(t, store, "r-1", 4)
	mustPlace(t, store, "a-1", "r-1", "h-1", "Thunder")
	mustPlace(t, store, "a-2", "r-1", "h-2", "Thunderbolt")
	mustPlace(t, store, "a-3", "r-1", "h-3", "Storm")

	got, err := store.ListAssignments(ctx, domain.AssignmentFilter{Search: "THUNDER"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("search count = %d, want 2", len(got))
	}

	got, err = store.ListAssignments(ctx, domain.AssignmentFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("page count = %d, want 2", len(got))
	}
}

func TestActiveAssignment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustRoom(t, store, "r-1", 1)
	mustPlace(t, store, "a-1", "r-1", "h-1", "Thunder")

	got, err := store.ActiveAssignment(ctx, "h-1")
	if err != nil {
		t.Fatalf("ActiveAssignment: %v", err)
	}
	if got.ID != "a-1" {
		t.Errorf("ID = %q, want %q", got.ID, "a-1")
	}

	_, err = store.ActiveAssignment(ctx, "h-9")
	if !errors.Is(err, domain.ErrAssignmentNotFound) {
		t.Errorf("expected ErrAssignmentNotFound, got %v", err)
	}
}

func TestGetRoom_CorruptTimestampSurfaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustRoom(t, store, "r-1", 2)

	if _, err := store.DB().ExecContext(ctx,
		`UPDATE rooms SET created_at = 'garbage' WHERE id = 'r-1'`); err != nil {
		t.Fatalf("corrupting row: %v", err)
	}

	if _, err := store.GetRoom(ctx, "r-1"); err == nil {
		t.Fatal("expected error for corrupt created_at, got nil")
	}
}

func TestGetAssignment_CorruptVacateDateSurfaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustRoom(t, store, "r-1", 1)
	mustPlace(t, store, "a-1", "r-1", "h-1", "Thunder")

	if _, err := store.DB().ExecContext(ctx,
		`UPDATE assignments SET expected_vacate = 'not-a-date' WHERE id = 'a-1'`); err != nil {
		t.Fatalf("corrupting row: %v", err)
	}

	if _, err := store.GetAssignment(ctx, "a-1"); err == nil {
		t.Fatal("expected error for corrupt expected_vacate, got nil")
	}
}
