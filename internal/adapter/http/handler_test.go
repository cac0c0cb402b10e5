package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/hollowbrook/stablekeep/internal/adapter/fsm"
	adapter "github.com/hollowbrook/stablekeep/internal/adapter/http"
	"github.com/hollowbrook/stablekeep/internal/adapter/sqlite"
	"github.com/hollowbrook/stablekeep/internal/app"
	"github.com/hollowbrook/stablekeep/internal/domain"
)

// noopPublisher is a no-op MovementPublisher for tests.
type noopPublisher struct{}

func (p *noopPublisher) PublishDeparture(_ context.Context, _ domain.MovementRecord) error {
	return nil
}

// newTestServer creates a full-stack httptest.Server with SQLite in-memory.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rooms := app.NewRoomService(store)
	assignments := app.NewAssignmentService(store)
	workflow := app.NewTerminationWorkflow(store, &noopPublisher{}, fsm.New())

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("stablekeep", "0.1.0"))
	adapter.Register(api, rooms, assignments, workflow)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv
}

// doRequest performs an HTTP request with context (avoids noctx linter).
func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}

	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

// mustCreateRoom creates a stall via the API and returns its response.
func mustCreateRoom(t *testing.T, srv *httptest.Server, number string, capacity int) adapter.RoomResponse {
	t.Helper()

	body := fmt.Sprintf(`{"number":%q,"name":"Stall %s","type":"stall","building":"North Barn","size_sqm":12.5,"capacity":%d}`, number, number, capacity)
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/rooms", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create room: status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	return decodeBody[adapter.RoomResponse](t, resp)
}

type assignmentEnvelope struct {
	Assignment adapter.AssignmentResponse `json:"assignment"`
	Room       adapter.RoomResponse       `json:"room"`
}

// mustCreateAssignment places an entity via the API.
func mustCreateAssignment(t *testing.T, srv *httptest.Server, roomID, entityID, entityName string) assignmentEnvelope {
	t.Helper()

	body := fmt.Sprintf(`{"room_id":%q,"entity_id":%q,"entity_name":%q,"entity_type":"horse","assigned_date":"2026-01-01T00:00:00Z","assigned_by":"manager","daily_rate":"40","currency":"USD"}`,
		roomID, entityID, entityName)
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/assignments", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create assignment: status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	return decodeBody[assignmentEnvelope](t, resp)
}

// --- Rooms ---

func TestCreateRoom(t *testing.T) {
	srv := newTestServer(t)
	room := mustCreateRoom(t, srv, "S-01", 2)

	if room.ID == "" {
		t.Error("ID should not be empty")
	}
	if room.Number != "S-01" {
		t.Errorf("Number = %q, want %q", room.Number, "S-01")
	}
	if room.Status != "available" {
		t.Errorf("Status = %q, want %q", room.Status, "available")
	}
	if room.CurrentOccupancy != 0 {
		t.Errorf("CurrentOccupancy = %d, want 0", room.CurrentOccupancy)
	}
}

func TestCreateRoom_WithPricing(t *testing.T) {
	srv := newTestServer(t)

	body := `{"number":"S-02","name":"Stall S-02","type":"stall","building":"North Barn","size_sqm":12.5,"capacity":1,"pricing":{"daily_rate":"45.50","monthly_rate":"1200","currency":"USD"}}`
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/rooms", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	room := decodeBody[adapter.RoomResponse](t, resp)
	if room.Pricing == nil {
		t.Fatal("Pricing should not be nil")
	}
	if room.Pricing.DailyRate != "45.5" {
		t.Errorf("DailyRate = %q, want %q", room.Pricing.DailyRate, "45.5")
	}
}

func TestCreateRoom_InvalidPricing(t *testing.T) {
	srv := newTestServer(t)

	body := `{"number":"S-03","name":"Stall S-03","type":"stall","building":"North Barn","size_sqm":12.5,"capacity":1,"pricing":{"daily_rate":"not-a-number","currency":"USD"}}`
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/rooms", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestGetRoom_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/rooms/missing", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestUpdateRoom_Status(t *testing.T) {
	srv := newTestServer(t)
	room := mustCreateRoom(t, srv, "S-04", 2)

	resp := doRequest(t, http.MethodPatch, srv.URL+"/api/v1/rooms/"+room.ID, `{"status":"maintenance"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	updated := decodeBody[adapter.RoomResponse](t, resp)
	if updated.Status != "maintenance" {
		t.Errorf("Status = %q, want %q", updated.Status, "maintenance")
	}
}

func TestUpdateRoom_CapacityBelowOccupancy(t *testing.T) {
	srv := newTestServer(t)
	room := mustCreateRoom(t, srv, "S-05", 2)
	mustCreateAssignment(t, srv, room.ID, "h-1", "Thunder")
	mustCreateAssignment(t, srv, room.ID, "h-2", "Storm")

	resp := doRequest(t, http.MethodPatch, srv.URL+"/api/v1/rooms/"+room.ID, `{"capacity":1}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestUpdateRoom_StatusPatchCannotUnlockQuarantine(t *testing.T) {
	srv := newTestServer(t)

	body := `{"number":"Q-01","name":"Quarantine Q-01","type":"quarantine","building":"Isolation Wing","size_sqm":16,"capacity":2}`
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/rooms", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create room: status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	room := decodeBody[adapter.RoomResponse](t, resp)
	mustCreateAssignment(t, srv, room.ID, "h-1", "Thunder")

	// Declaring the room available does not override occupancy tracking.
	resp = doRequest(t, http.MethodPatch, srv.URL+"/api/v1/rooms/"+room.ID, `{"status":"available"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch room: status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	patched := decodeBody[adapter.RoomResponse](t, resp)
	if patched.Status != "occupied" {
		t.Errorf("Status = %q, want %q", patched.Status, "occupied")
	}

	// Isolation still holds: a second occupant is refused.
	body = fmt.Sprintf(`{"room_id":%q,"entity_id":"h-2","entity_name":"Storm","entity_type":"horse","assigned_date":"2026-01-01T00:00:00Z","assigned_by":"manager","daily_rate":"40","currency":"USD"}`, room.ID)
	resp = doRequest(t, http.MethodPost, srv.URL+"/api/v1/assignments", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestDeleteRoom_Occupied(t *testing.T) {
	srv := newTestServer(t)
	room := mustCreateRoom(t, srv, "S-06", 1)
	mustCreateAssignment(t, srv, room.ID, "h-1", "Thunder")

	resp := doRequest(t, http.MethodDelete, srv.URL+"/api/v1/rooms/"+room.ID, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestDeleteRoom_Vacant(t *testing.T) {
	srv := newTestServer(t)
	room := mustCreateRoom(t, srv, "S-07", 1)

	resp := doRequest(t, http.MethodDelete, srv.URL+"/api/v1/rooms/"+room.ID, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestAvailableRooms_ExcludesFull(t *testing.T) {
	srv := newTestServer(t)
	full := mustCreateRoom(t, srv, "S-08", 1)
	open := mustCreateRoom(t, srv, "S-09", 2)
	mustCreateAssignment(t, srv, full.ID, "h-1", "Thunder")

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/rooms/available", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	rooms := decodeBody[[]adapter.RoomResponse](t, resp)
	if len(rooms) != 1 {
		t.Fatalf("got %d available rooms, want 1", len(rooms))
	}
	if rooms[0].ID != open.ID {
		t.Errorf("available room = %q, want %q", rooms[0].ID, open.ID)
	}
}

func TestRoomStats(t *testing.T) {
	srv := newTestServer(t)
	room := mustCreateRoom(t, srv, "S-10", 2)
	mustCreateRoom(t, srv, "S-11", 2)
	mustCreateAssignment(t, srv, room.ID, "h-1", "Thunder")

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/rooms/stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	stats := decodeBody[struct {
		TotalRooms    int     `json:"total_rooms"`
		TotalCapacity int     `json:"total_capacity"`
		TotalOccupied int     `json:"total_occupied"`
		OccupancyRate float64 `json:"occupancy_rate"`
	}](t, resp)

	if stats.TotalRooms != 2 {
		t.Errorf("TotalRooms = %d, want 2", stats.TotalRooms)
	}
	if stats.TotalCapacity != 4 {
		t.Errorf("TotalCapacity = %d, want 4", stats.TotalCapacity)
	}
	if stats.TotalOccupied != 1 {
		t.Errorf("TotalOccupied = %d, want 1", stats.TotalOccupied)
	}
	if stats.OccupancyRate != 0.25 {
		t.Errorf("OccupancyRate = %v, want 0.25", stats.OccupancyRate)
	}
}

// --- Assignments ---

func TestCreateAssignment(t *testing.T) {
	srv := newTestServer(t)
	room := mustCreateRoom(t, srv, "S-12", 2)
	env := mustCreateAssignment(t, srv, room.ID, "h-1", "Thunder")

	if env.Assignment.ID == "" {
		t.Error("ID should not be empty")
	}
	if env.Assignment.Status != "active" {
		t.Errorf("Status = %q, want %q", env.Assignment.Status, "active")
	}
	if env.Assignment.DailyRate != "40" {
		t.Errorf("DailyRate = %q, want %q", env.Assignment.DailyRate, "40")
	}
	if env.Room.CurrentOccupancy != 1 {
		t.Errorf("Room.CurrentOccupancy = %d, want 1", env.Room.CurrentOccupancy)
	}
	if env.Room.Status != "occupied" {
		t.Errorf("Room.Status = %q, want %q", env.Room.Status, "occupied")
	}
}

func TestCreateAssignment_FullRoom(t *testing.T) {
	srv := newTestServer(t)
	room := mustCreateRoom(t, srv, "S-13", 1)
	mustCreateAssignment(t, srv, room.ID, "h-1", "Thunder")

	body := fmt.Sprintf(`{"room_id":%q,"entity_id":"h-2","entity_name":"Storm","entity_type":"horse","assigned_date":"2026-01-01T00:00:00Z","assigned_by":"manager","daily_rate":"40","currency":"USD"}`, room.ID)
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/assignments", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestCreateAssignment_DuplicateEntity(t *testing.T) {
	srv := newTestServer(t)
	roomA := mustCreateRoom(t, srv, "S-14", 2)
	roomB := mustCreateRoom(t, srv, "S-15", 2)
	mustCreateAssignment(t, srv, roomA.ID, "h-1", "Thunder")

	body := fmt.Sprintf(`{"room_id":%q,"entity_id":"h-1","entity_name":"Thunder","entity_type":"horse","assigned_date":"2026-01-01T00:00:00Z","assigned_by":"manager","daily_rate":"40","currency":"USD"}`, roomB.ID)
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/assignments", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestListAssignments_FilterByStatus(t *testing.T) {
	srv := newTestServer(t)
	room := mustCreateRoom(t, srv, "S-16", 2)
	mustCreateAssignment(t, srv, room.ID, "h-1", "Thunder")

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/assignments?status=active", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	assignments := decodeBody[[]adapter.AssignmentResponse](t, resp)
	if len(assignments) != 1 {
		t.Fatalf("got %d assignments, want 1", len(assignments))
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/assignments?status=completed", "")
	completed := decodeBody[[]adapter.AssignmentResponse](t, resp)
	if len(completed) != 0 {
		t.Errorf("got %d completed assignments, want 0", len(completed))
	}
}

func TestLocateEntity(t *testing.T) {
	srv := newTestServer(t)
	room := mustCreateRoom(t, srv, "S-17", 2)
	mustCreateAssignment(t, srv, room.ID, "h-1", "Thunder")

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/entities/h-1/location", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	location := decodeBody[struct {
		LocationType string `json:"location_type"`
		LocationID   string `json:"location_id"`
	}](t, resp)

	if location.LocationType != "stable" {
		t.Errorf("LocationType = %q, want %q", location.LocationType, "stable")
	}
	if location.LocationID != room.ID {
		t.Errorf("LocationID = %q, want %q", location.LocationID, room.ID)
	}
}

func TestLocateEntity_Unknown(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/entities/stray/location", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	location := decodeBody[struct {
		LocationType string `json:"location_type"`
	}](t, resp)

	if location.LocationType != "unknown" {
		t.Errorf("LocationType = %q, want %q", location.LocationType, "unknown")
	}
}
