package http

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/hollowbrook/stablekeep/internal/app"
	"github.com/hollowbrook/stablekeep/internal/domain"
)

// MovementBody carries the optional departure record details collected during
// the transportation step.
type MovementBody struct {
	Destination        string    `json:"destination" doc:"Where the entity is moving to"`
	TransportMethod    string    `json:"transport_method,omitempty" doc:"How the entity travels"`
	ContactPerson      string    `json:"contact_person,omitempty" doc:"Contact at the destination"`
	EstimatedDeparture time.Time `json:"estimated_departure,omitempty" doc:"Planned departure time"`
}

// TerminationRecordResponse mirrors the wizard's working record.
type TerminationRecordResponse struct {
	AssignmentID string          `json:"assignment_id"`
	Reason       string          `json:"reason,omitempty" doc:"Free-text termination reason"`
	Category     string          `json:"category,omitempty" doc:"Termination category"`
	ActualVacate string          `json:"actual_vacate" doc:"Departure date used for costing"`
	FinalCost    string          `json:"final_cost,omitempty" doc:"Operator cost override as a decimal string"`
	Notes        string          `json:"notes,omitempty"`
	Checklist    map[string]bool `json:"checklist" doc:"Checkout checklist items"`
	Documents    map[string]bool `json:"documents" doc:"Collected documents"`
	Movement     *MovementBody   `json:"movement,omitempty" doc:"Departure record details"`
}

// ReviewResponse carries the cost figures shown on the review step.
type ReviewResponse struct {
	EstimatedCost string `json:"estimated_cost" doc:"Computed stay cost as a decimal string"`
	Savings       string `json:"savings,omitempty" doc:"Early-departure savings, when applicable"`
	FinalCost     string `json:"final_cost" doc:"Cost that will be settled on commit"`
	Currency      string `json:"currency"`
}

// TerminationStateResponse is a snapshot of a wizard session.
type TerminationStateResponse struct {
	AssignmentID string                    `json:"assignment_id"`
	Step         string                    `json:"step" doc:"Current wizard step"`
	Record       TerminationRecordResponse `json:"record"`
	Review       ReviewResponse            `json:"review"`
}

func toStateResponse(s app.State) TerminationStateResponse {
	record := TerminationRecordResponse{
		AssignmentID: s.Record.AssignmentID,
		Reason:       s.Record.Reason,
		Category:     string(s.Record.Category),
		ActualVacate: s.Record.ActualVacate.Format(timeFormat),
		Notes:        s.Record.Notes,
		Checklist:    s.Record.Checklist,
		Documents:    s.Record.Documents,
	}
	if !s.Record.FinalCost.IsZero() {
		record.FinalCost = s.Record.FinalCost.String()
	}
	if s.Record.Movement != nil {
		record.Movement = &MovementBody{
			Destination:        s.Record.Movement.Destination,
			TransportMethod:    s.Record.Movement.TransportMethod,
			ContactPerson:      s.Record.Movement.ContactPerson,
			EstimatedDeparture: s.Record.Movement.EstimatedDeparture,
		}
	}

	review := ReviewResponse{
		EstimatedCost: s.Review.EstimatedCost.String(),
		FinalCost:     s.Review.FinalCost.String(),
		Currency:      s.Review.Currency,
	}
	if s.Review.Savings != nil {
		review.Savings = s.Review.Savings.String()
	}

	return TerminationStateResponse{
		AssignmentID: s.AssignmentID,
		Step:         string(s.Step),
		Record:       record,
		Review:       review,
	}
}

// --- Inputs / Outputs ---

type TerminationInput struct {
	ID string `path:"id" doc:"Assignment ID"`
}

type TerminationStateOutput struct {
	Body TerminationStateResponse
}

type UpdateTerminationInput struct {
	ID   string `path:"id" doc:"Assignment ID"`
	Body struct {
		Reason        *string         `json:"reason,omitempty" doc:"Free-text termination reason"`
		Category      *string         `json:"category,omitempty" enum:"planned,emergency,medical,behavioral,contract,owner_request" doc:"Termination category"`
		ActualVacate  *time.Time      `json:"actual_vacate,omitempty" doc:"Departure date used for costing"`
		FinalCost     *string         `json:"final_cost,omitempty" doc:"Operator cost override as a decimal string"`
		Notes         *string         `json:"notes,omitempty"`
		Checklist     map[string]bool `json:"checklist,omitempty" doc:"Checklist entries to merge"`
		Documents     map[string]bool `json:"documents,omitempty" doc:"Document entries to merge"`
		Movement      *MovementBody   `json:"movement,omitempty" doc:"Departure record details"`
		ClearMovement bool            `json:"clear_movement,omitempty" doc:"Remove the departure record details"`
	}
}

type CommitTerminationOutput struct {
	Body struct {
		Assignment AssignmentResponse `json:"assignment"`
		Room       RoomResponse       `json:"room" doc:"Room state after release"`
		Warning    string             `json:"warning,omitempty" doc:"Set when the departure record was not emitted"`
	}
}

func registerTermination(api huma.API, workflow *app.TerminationWorkflow) {
	huma.Register(api, huma.Operation{
		OperationID: "begin-termination",
		Method:      http.MethodPost,
		Path:        "/api/v1/assignments/{id}/termination",
		Summary:     "Begin or resume the termination wizard",
		Tags:        []string{"Termination"},
	}, func(ctx context.Context, input *TerminationInput) (*TerminationStateOutput, error) {
		state, err := workflow.Begin(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TerminationStateOutput{Body: toStateResponse(state)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-termination",
		Method:      http.MethodGet,
		Path:        "/api/v1/assignments/{id}/termination",
		Summary:     "Get the current wizard state",
		Tags:        []string{"Termination"},
	}, func(ctx context.Context, input *TerminationInput) (*TerminationStateOutput, error) {
		state, err := workflow.Snapshot(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TerminationStateOutput{Body: toStateResponse(state)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-termination",
		Method:      http.MethodPatch,
		Path:        "/api/v1/assignments/{id}/termination",
		Summary:     "Update the wizard record",
		Tags:        []string{"Termination"},
	}, func(ctx context.Context, input *UpdateTerminationInput) (*TerminationStateOutput, error) {
		patch := app.RecordPatch{
			Reason:        input.Body.Reason,
			ActualVacate:  input.Body.ActualVacate,
			Notes:         input.Body.Notes,
			Checklist:     input.Body.Checklist,
			Documents:     input.Body.Documents,
			ClearMovement: input.Body.ClearMovement,
		}
		if input.Body.Category != nil {
			c := domain.TerminationCategory(*input.Body.Category)
			patch.Category = &c
		}
		if input.Body.FinalCost != nil {
			cost, err := decimal.NewFromString(*input.Body.FinalCost)
			if err != nil {
				return nil, huma.Error422UnprocessableEntity("invalid final_cost: " + *input.Body.FinalCost)
			}
			patch.FinalCost = &cost
		}
		if input.Body.Movement != nil {
			patch.Movement = &domain.MovementRequest{
				Destination:        input.Body.Movement.Destination,
				TransportMethod:    input.Body.Movement.TransportMethod,
				ContactPerson:      input.Body.Movement.ContactPerson,
				EstimatedDeparture: input.Body.Movement.EstimatedDeparture,
			}
		}

		state, err := workflow.Update(ctx, input.ID, patch)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TerminationStateOutput{Body: toStateResponse(state)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-termination",
		Method:      http.MethodPost,
		Path:        "/api/v1/assignments/{id}/termination/advance",
		Summary:     "Advance the wizard one step",
		Tags:        []string{"Termination"},
	}, func(ctx context.Context, input *TerminationInput) (*TerminationStateOutput, error) {
		state, err := workflow.Advance(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TerminationStateOutput{Body: toStateResponse(state)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "back-termination",
		Method:      http.MethodPost,
		Path:        "/api/v1/assignments/{id}/termination/back",
		Summary:     "Move the wizard one step back",
		Tags:        []string{"Termination"},
	}, func(ctx context.Context, input *TerminationInput) (*TerminationStateOutput, error) {
		state, err := workflow.Back(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TerminationStateOutput{Body: toStateResponse(state)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "cancel-termination",
		Method:        http.MethodPost,
		Path:          "/api/v1/assignments/{id}/termination/cancel",
		Summary:       "Cancel the wizard and discard the record",
		Tags:          []string{"Termination"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *TerminationInput) (*struct{}, error) {
		if err := workflow.Cancel(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "commit-termination",
		Method:      http.MethodPost,
		Path:        "/api/v1/assignments/{id}/termination/commit",
		Summary:     "Commit the termination",
		Tags:        []string{"Termination"},
	}, func(ctx context.Context, input *TerminationInput) (*CommitTerminationOutput, error) {
		result, err := workflow.Commit(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &CommitTerminationOutput{}
		out.Body.Assignment = toAssignmentResponse(result.Assignment)
		out.Body.Room = toRoomResponse(result.Room)
		out.Body.Warning = result.Warning
		return out, nil
	})
}
