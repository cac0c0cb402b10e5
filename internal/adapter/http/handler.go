package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/hollowbrook/stablekeep/internal/app"
	"github.com/hollowbrook/stablekeep/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// PricingBody carries room pricing on the wire. Monetary amounts travel as
// decimal strings so the API never round-trips through float64.
type PricingBody struct {
	DailyRate   string `json:"daily_rate" doc:"Daily rate as a decimal string"`
	MonthlyRate string `json:"monthly_rate,omitempty" doc:"Monthly rate as a decimal string"`
	Currency    string `json:"currency" minLength:"3" maxLength:"3" doc:"ISO 4217 currency code"`
}

func parsePricing(body *PricingBody) (*domain.Pricing, error) {
	if body == nil {
		return nil, nil
	}
	daily, err := decimal.NewFromString(body.DailyRate)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid daily_rate: " + body.DailyRate)
	}
	monthly := decimal.Zero
	if body.MonthlyRate != "" {
		monthly, err = decimal.NewFromString(body.MonthlyRate)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid monthly_rate: " + body.MonthlyRate)
		}
	}
	return &domain.Pricing{DailyRate: daily, MonthlyRate: monthly, Currency: body.Currency}, nil
}

// OccupantResponse identifies one entity currently housed in a room.
type OccupantResponse struct {
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
}

// RoomResponse is the API representation of a room.
type RoomResponse struct {
	ID               string             `json:"id" doc:"Unique identifier"`
	Number           string             `json:"number" doc:"Room number"`
	Name             string             `json:"name" doc:"Display name"`
	Type             string             `json:"type" doc:"Room type"`
	Building         string             `json:"building" doc:"Building or barn name"`
	SizeSqm          float64            `json:"size_sqm" doc:"Floor area in square meters"`
	Capacity         int                `json:"capacity" doc:"Maximum occupants"`
	CurrentOccupancy int                `json:"current_occupancy" doc:"Occupants right now"`
	Status           string             `json:"status" doc:"Room status"`
	Occupants        []OccupantResponse `json:"occupants" doc:"Entities currently housed here"`
	Pricing          *PricingBody       `json:"pricing,omitempty" doc:"Optional pricing"`
	CreatedAt        string             `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt        string             `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toRoomResponse(r domain.Room) RoomResponse {
	occupants := make([]OccupantResponse, len(r.Occupants))
	for i, o := range r.Occupants {
		occupants[i] = OccupantResponse{EntityID: o.EntityID, EntityName: o.EntityName}
	}

	resp := RoomResponse{
		ID:               r.ID,
		Number:           r.Number,
		Name:             r.Name,
		Type:             string(r.Type),
		Building:         r.Building,
		SizeSqm:          r.SizeSqm,
		Capacity:         r.Capacity,
		CurrentOccupancy: r.CurrentOccupancy,
		Status:           string(r.Status),
		Occupants:        occupants,
		CreatedAt:        r.CreatedAt.Format(timeFormat),
		UpdatedAt:        r.UpdatedAt.Format(timeFormat),
	}
	if r.Pricing != nil {
		resp.Pricing = &PricingBody{
			DailyRate:   r.Pricing.DailyRate.String(),
			MonthlyRate: r.Pricing.MonthlyRate.String(),
			Currency:    r.Pricing.Currency,
		}
	}
	return resp
}

// CostResponse is the settled cost of a completed assignment.
type CostResponse struct {
	DailyRate string `json:"daily_rate" doc:"Daily rate as a decimal string"`
	TotalCost string `json:"total_cost" doc:"Total cost as a decimal string"`
	Currency  string `json:"currency"`
}

// AssignmentResponse is the API representation of an assignment.
type AssignmentResponse struct {
	ID             string        `json:"id" doc:"Unique identifier"`
	RoomID         string        `json:"room_id" doc:"Assigned room"`
	EntityID       string        `json:"entity_id" doc:"Housed entity"`
	EntityName     string        `json:"entity_name" doc:"Entity display name"`
	EntityType     string        `json:"entity_type" doc:"horse, equipment or supplies"`
	AssignedDate   string        `json:"assigned_date" doc:"Start of the stay (ISO 8601)"`
	ExpectedVacate string        `json:"expected_vacate,omitempty" doc:"Planned end of the stay"`
	ActualVacate   string        `json:"actual_vacate,omitempty" doc:"Actual end of the stay"`
	Status         string        `json:"status" doc:"active, completed or cancelled"`
	AssignedBy     string        `json:"assigned_by" doc:"Operator who placed the assignment"`
	DailyRate      string        `json:"daily_rate" doc:"Daily rate as a decimal string"`
	Currency       string        `json:"currency"`
	Cost           *CostResponse `json:"cost,omitempty" doc:"Settled cost, present after termination"`
	CreatedAt      string        `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt      string        `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toAssignmentResponse(a domain.Assignment) AssignmentResponse {
	resp := AssignmentResponse{
		ID:           a.ID,
		RoomID:       a.RoomID,
		EntityID:     a.EntityID,
		EntityName:   a.EntityName,
		EntityType:   string(a.EntityType),
		AssignedDate: a.AssignedDate.Format(timeFormat),
		Status:       string(a.Status),
		AssignedBy:   a.AssignedBy,
		DailyRate:    a.DailyRate.String(),
		Currency:     a.Currency,
		CreatedAt:    a.CreatedAt.Format(timeFormat),
		UpdatedAt:    a.UpdatedAt.Format(timeFormat),
	}
	if a.ExpectedVacate != nil {
		resp.ExpectedVacate = a.ExpectedVacate.Format(timeFormat)
	}
	if a.ActualVacate != nil {
		resp.ActualVacate = a.ActualVacate.Format(timeFormat)
	}
	if a.Cost != nil {
		resp.Cost = &CostResponse{
			DailyRate: a.Cost.DailyRate.String(),
			TotalCost: a.Cost.TotalCost.String(),
			Currency:  a.Cost.Currency,
		}
	}
	return resp
}

// --- Create Room ---

type CreateRoomInput struct {
	Body struct {
		Number   string       `json:"number" minLength:"1" maxLength:"50" doc:"Room number"`
		Name     string       `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
		Type     string       `json:"type" enum:"stall,paddock,quarantine,breeding,foaling,recovery,warehouse,feed_storage,equipment,office,medical" doc:"Room type"`
		Building string       `json:"building" minLength:"1" maxLength:"255" doc:"Building or barn name"`
		SizeSqm  float64      `json:"size_sqm" exclusiveMinimum:"0" doc:"Floor area in square meters"`
		Capacity int          `json:"capacity" minimum:"1" doc:"Maximum occupants"`
		Pricing  *PricingBody `json:"pricing,omitempty" doc:"Optional pricing"`
	}
}

type CreateRoomOutput struct {
	Body RoomResponse
}

// --- Get / Delete Room ---

type GetRoomInput struct {
	ID string `path:"id" doc:"Room ID"`
}

type GetRoomOutput struct {
	Body RoomResponse
}

type DeleteRoomInput struct {
	ID string `path:"id" doc:"Room ID"`
}

// --- List Rooms ---

type ListRoomsInput struct {
	Status string `query:"status" required:"false" doc:"Filter by status"`
	Type   string `query:"type" required:"false" doc:"Filter by room type"`
}

type ListRoomsOutput struct {
	Body []RoomResponse
}

// --- Update Room ---

type UpdateRoomInput struct {
	ID   string `path:"id" doc:"Room ID"`
	Body struct {
		Number   *string      `json:"number,omitempty" doc:"Room number"`
		Name     *string      `json:"name,omitempty" doc:"Display name"`
		Building *string      `json:"building,omitempty" doc:"Building or barn name"`
		SizeSqm  *float64     `json:"size_sqm,omitempty" doc:"Floor area in square meters"`
		Capacity *int         `json:"capacity,omitempty" doc:"Maximum occupants"`
		Status   *string      `json:"status,omitempty" enum:"available,occupied,maintenance,reserved,out_of_order" doc:"Room status"`
		Pricing  *PricingBody `json:"pricing,omitempty" doc:"Pricing"`
	}
}

type UpdateRoomOutput struct {
	Body RoomResponse
}

// --- Available Rooms ---

type AvailableRoomsOutput struct {
	Body []RoomResponse
}

// --- Occupancy Stats ---

type TypeStatsResponse struct {
	Rooms    int `json:"rooms"`
	Capacity int `json:"capacity"`
	Occupied int `json:"occupied"`
}

type StatsOutput struct {
	Body struct {
		TotalRooms    int                          `json:"total_rooms"`
		TotalCapacity int                          `json:"total_capacity"`
		TotalOccupied int                          `json:"total_occupied"`
		OccupancyRate float64                      `json:"occupancy_rate" doc:"Occupied over capacity, in [0,1]"`
		ByType        map[string]TypeStatsResponse `json:"by_type"`
	}
}

// --- Create Assignment ---

type CreateAssignmentInput struct {
	Body struct {
		RoomID         string     `json:"room_id" minLength:"1" doc:"Target room ID"`
		EntityID       string     `json:"entity_id" minLength:"1" doc:"Entity to house"`
		EntityName     string     `json:"entity_name" minLength:"1" maxLength:"255" doc:"Entity display name"`
		EntityType     string     `json:"entity_type" enum:"horse,equipment,supplies" doc:"Entity type"`
		AssignedDate   time.Time  `json:"assigned_date" doc:"Start of the stay"`
		ExpectedVacate *time.Time `json:"expected_vacate,omitempty" doc:"Planned end of the stay"`
		AssignedBy     string     `json:"assigned_by" minLength:"1" doc:"Operator placing the assignment"`
		DailyRate      string     `json:"daily_rate" doc:"Daily rate as a decimal string"`
		Currency       string     `json:"currency" minLength:"3" maxLength:"3" doc:"ISO 4217 currency code"`
	}
}

type CreateAssignmentOutput struct {
	Body struct {
		Assignment AssignmentResponse `json:"assignment"`
		Room       RoomResponse       `json:"room" doc:"Room state after placement"`
	}
}

// --- Get / List Assignments ---

type GetAssignmentInput struct {
	ID string `path:"id" doc:"Assignment ID"`
}

type GetAssignmentOutput struct {
	Body AssignmentResponse
}

type ListAssignmentsInput struct {
	Status     string `query:"status" required:"false" doc:"Filter by status"`
	EntityType string `query:"entity_type" required:"false" doc:"Filter by entity type"`
	RoomID     string `query:"room_id" required:"false" doc:"Filter by room"`
	Search     string `query:"search" required:"false" doc:"Substring match over entity name and room"`
	Limit      int    `query:"limit" required:"false" default:"50" doc:"Max results"`
	Offset     int    `query:"offset" required:"false" default:"0" doc:"Pagination offset"`
}

type ListAssignmentsOutput struct {
	Body []AssignmentResponse
}

// --- Entity Location ---

type LocateEntityInput struct {
	ID string `path:"id" doc:"Entity ID"`
}

type LocateEntityOutput struct {
	Body struct {
		LocationType string `json:"location_type" doc:"paddock, stable or unknown"`
		LocationID   string `json:"location_id,omitempty" doc:"Room ID when known"`
	}
}

// Register adds all facility API routes to the Huma API.
func Register(api huma.API, rooms *app.RoomService, assignments *app.AssignmentService, workflow *app.TerminationWorkflow) {
	registerRooms(api, rooms)
	registerAssignments(api, assignments)
	registerTermination(api, workflow)
}

func registerRooms(api huma.API, svc *app.RoomService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-room",
		Method:      http.MethodPost,
		Path:        "/api/v1/rooms",
		Summary:     "Create a new room",
		Tags:        []string{"Rooms"},
	}, func(ctx context.Context, input *CreateRoomInput) (*CreateRoomOutput, error) {
		pricing, err := parsePricing(input.Body.Pricing)
		if err != nil {
			return nil, err
		}

		room, err := svc.Create(ctx, domain.RoomSpec{
			Number:   input.Body.Number,
			Name:     input.Body.Name,
			Type:     domain.RoomType(input.Body.Type),
			Building: input.Body.Building,
			SizeSqm:  input.Body.SizeSqm,
			Capacity: input.Body.Capacity,
			Pricing:  pricing,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateRoomOutput{Body: toRoomResponse(room)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-rooms",
		Method:      http.MethodGet,
		Path:        "/api/v1/rooms",
		Summary:     "List rooms",
		Tags:        []string{"Rooms"},
	}, func(ctx context.Context, input *ListRoomsInput) (*ListRoomsOutput, error) {
		filter := domain.RoomFilter{}
		if input.Status != "" {
			s := domain.RoomStatus(input.Status)
			filter.Status = &s
		}
		if input.Type != "" {
			t := domain.RoomType(input.Type)
			filter.Type = &t
		}

		rooms, err := svc.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]RoomResponse, len(rooms))
		for i, r := range rooms {
			resp[i] = toRoomResponse(r)
		}
		return &ListRoomsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-available-rooms",
		Method:      http.MethodGet,
		Path:        "/api/v1/rooms/available",
		Summary:     "List rooms that can accept an assignment",
		Tags:        []string{"Rooms"},
	}, func(ctx context.Context, _ *struct{}) (*AvailableRoomsOutput, error) {
		seq, err := svc.Available(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := []RoomResponse{}
		for room := range seq {
			resp = append(resp, toRoomResponse(room))
		}
		return &AvailableRoomsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "room-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/rooms/stats",
		Summary:     "Facility-wide occupancy statistics",
		Tags:        []string{"Rooms"},
	}, func(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
		stats, err := svc.Stats(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &StatsOutput{}
		out.Body.TotalRooms = stats.TotalRooms
		out.Body.TotalCapacity = stats.TotalCapacity
		out.Body.TotalOccupied = stats.TotalOccupied
		out.Body.OccupancyRate = stats.OccupancyRate
		out.Body.ByType = make(map[string]TypeStatsResponse, len(stats.ByType))
		for roomType, ts := range stats.ByType {
			out.Body.ByType[string(roomType)] = TypeStatsResponse{
				Rooms:    ts.Rooms,
				Capacity: ts.Capacity,
				Occupied: ts.Occupied,
			}
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-room",
		Method:      http.MethodGet,
		Path:        "/api/v1/rooms/{id}",
		Summary:     "Get a room by ID",
		Tags:        []string{"Rooms"},
	}, func(ctx context.Context, input *GetRoomInput) (*GetRoomOutput, error) {
		room, err := svc.Get(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetRoomOutput{Body: toRoomResponse(room)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-room",
		Method:      http.MethodPatch,
		Path:        "/api/v1/rooms/{id}",
		Summary:     "Update a room",
		Tags:        []string{"Rooms"},
	}, func(ctx context.Context, input *UpdateRoomInput) (*UpdateRoomOutput, error) {
		pricing, err := parsePricing(input.Body.Pricing)
		if err != nil {
			return nil, err
		}

		patch := domain.RoomPatch{
			Number:   input.Body.Number,
			Name:     input.Body.Name,
			Building: input.Body.Building,
			SizeSqm:  input.Body.SizeSqm,
			Capacity: input.Body.Capacity,
			Pricing:  pricing,
		}
		if input.Body.Status != nil {
			s := domain.RoomStatus(*input.Body.Status)
			patch.Status = &s
		}

		room, err := svc.Update(ctx, input.ID, patch)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &UpdateRoomOutput{Body: toRoomResponse(room)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-room",
		Method:        http.MethodDelete,
		Path:          "/api/v1/rooms/{id}",
		Summary:       "Delete a vacant room",
		Tags:          []string{"Rooms"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteRoomInput) (*struct{}, error) {
		if err := svc.Delete(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return nil, nil
	})
}

func registerAssignments(api huma.API, svc *app.AssignmentService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-assignment",
		Method:      http.MethodPost,
		Path:        "/api/v1/assignments",
		Summary:     "Place an entity in a room",
		Tags:        []string{"Assignments"},
	}, func(ctx context.Context, input *CreateAssignmentInput) (*CreateAssignmentOutput, error) {
		rate, err := decimal.NewFromString(input.Body.DailyRate)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid daily_rate: " + input.Body.DailyRate)
		}

		assignment, room, err := svc.Create(ctx, domain.AssignmentSpec{
			RoomID:         input.Body.RoomID,
			EntityID:       input.Body.EntityID,
			EntityName:     input.Body.EntityName,
			EntityType:     domain.EntityType(input.Body.EntityType),
			AssignedDate:   input.Body.AssignedDate,
			ExpectedVacate: input.Body.ExpectedVacate,
			AssignedBy:     input.Body.AssignedBy,
			DailyRate:      rate,
			Currency:       input.Body.Currency,
		})
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &CreateAssignmentOutput{}
		out.Body.Assignment = toAssignmentResponse(assignment)
		out.Body.Room = toRoomResponse(room)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-assignments",
		Method:      http.MethodGet,
		Path:        "/api/v1/assignments",
		Summary:     "List assignments",
		Tags:        []string{"Assignments"},
	}, func(ctx context.Context, input *ListAssignmentsInput) (*ListAssignmentsOutput, error) {
		filter := domain.AssignmentFilter{
			RoomID: input.RoomID,
			Search: input.Search,
			Limit:  input.Limit,
			Offset: input.Offset,
		}
		if input.Status != "" {
			s := domain.AssignmentStatus(input.Status)
			filter.Status = &s
		}
		if input.EntityType != "" {
			t := domain.EntityType(input.EntityType)
			filter.EntityType = &t
		}

		assignments, err := svc.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]AssignmentResponse, len(assignments))
		for i, a := range assignments {
			resp[i] = toAssignmentResponse(a)
		}
		return &ListAssignmentsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-assignment",
		Method:      http.MethodGet,
		Path:        "/api/v1/assignments/{id}",
		Summary:     "Get an assignment by ID",
		Tags:        []string{"Assignments"},
	}, func(ctx context.Context, input *GetAssignmentInput) (*GetAssignmentOutput, error) {
		assignment, err := svc.Get(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetAssignmentOutput{Body: toAssignmentResponse(assignment)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "locate-entity",
		Method:      http.MethodGet,
		Path:        "/api/v1/entities/{id}/location",
		Summary:     "Resolve an entity's current location",
		Tags:        []string{"Assignments"},
	}, func(ctx context.Context, input *LocateEntityInput) (*LocateEntityOutput, error) {
		location, err := svc.Locate(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &LocateEntityOutput{}
		out.Body.LocationType = location.LocationType
		out.Body.LocationID = location.LocationID
		return out, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrRoomNotFound) {
		return huma.Error404NotFound("room not found")
	}
	if errors.Is(err, domain.ErrAssignmentNotFound) {
		return huma.Error404NotFound("assignment not found")
	}
	if errors.Is(err, domain.ErrNoTermination) {
		return huma.Error404NotFound("no termination in progress")
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		return huma.Error422UnprocessableEntity(valErr.Error())
	}

	var gateErr *domain.GateError
	if errors.As(err, &gateErr) {
		return huma.Error422UnprocessableEntity(gateErr.Error())
	}

	var navErr *domain.NavigationError
	if errors.As(err, &navErr) {
		return huma.Error422UnprocessableEntity(navErr.Error())
	}

	var capErr *domain.CapacityExceededError
	if errors.As(err, &capErr) {
		return huma.Error409Conflict(capErr.Error())
	}

	var dupErr *domain.DuplicateAssignmentError
	if errors.As(err, &dupErr) {
		return huma.Error409Conflict(dupErr.Error())
	}

	var occErr *domain.RoomOccupiedError
	if errors.As(err, &occErr) {
		return huma.Error409Conflict(occErr.Error())
	}

	var redErr *domain.CapacityReductionError
	if errors.As(err, &redErr) {
		return huma.Error409Conflict(redErr.Error())
	}

	var commitErr *domain.CommitError
	if errors.As(err, &commitErr) {
		return huma.Error500InternalServerError(commitErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
