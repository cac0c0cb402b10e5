package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Step is one state of the termination wizard. The five working steps are
// strictly ordered; committed and cancelled are terminal.
type Step string

const (
	StepReason        Step = "reason"
	StepChecklist     Step = "checklist"
	StepVacation      Step = "vacation"
	StepDocumentation Step = "documentation"
	StepReview        Step = "review"
	StepCommitted     Step = "committed"
	StepCancelled     Step = "cancelled"
)

// StepEvent is a navigation action on the wizard.
type StepEvent string

const (
	EventAdvance StepEvent = "advance"
	EventBack    StepEvent = "back"
	EventCommit  StepEvent = "commit"
	EventCancel  StepEvent = "cancel"
)

// StepTransition defines a valid wizard move: an event takes the wizard from
// Src to Dst.
type StepTransition struct {
	Event StepEvent
	Src   Step
	Dst   Step
}

// StepTransitions defines every valid wizard move. Forward navigation is
// additionally gated per step (see TerminationRecord.Gate); backward
// navigation is always permitted; cancel is possible from any working step.
// This is domain knowledge consumed by the FSM adapter.
var StepTransitions = []StepTransition{
	{Event: EventAdvance, Src: StepReason, Dst: StepChecklist},
	{Event: EventAdvance, Src: StepChecklist, Dst: StepVacation},
	{Event: EventAdvance, Src: StepVacation, Dst: StepDocumentation},
	{Event: EventAdvance, Src: StepDocumentation, Dst: StepReview},
	{Event: EventBack, Src: StepChecklist, Dst: StepReason},
	{Event: EventBack, Src: StepVacation, Dst: StepChecklist},
	{Event: EventBack, Src: StepDocumentation, Dst: StepVacation},
	{Event: EventBack, Src: StepReview, Dst: StepDocumentation},
	{Event: EventCommit, Src: StepReview, Dst: StepCommitted},
	{Event: EventCancel, Src: StepReason, Dst: StepCancelled},
	{Event: EventCancel, Src: StepChecklist, Dst: StepCancelled},
	{Event: EventCancel, Src: StepVacation, Dst: StepCancelled},
	{Event: EventCancel, Src: StepDocumentation, Dst: StepCancelled},
	{Event: EventCancel, Src: StepReview, Dst: StepCancelled},
}

// TerminationCategory is the reason class for ending an assignment.
type TerminationCategory string

const (
	CategoryPlanned      TerminationCategory = "planned"
	CategoryEmergency    TerminationCategory = "emergency"
	CategoryMedical      TerminationCategory = "medical"
	CategoryBehavioral   TerminationCategory = "behavioral"
	CategoryContract     TerminationCategory = "contract"
	CategoryOwnerRequest TerminationCategory = "owner_request"
)

// Checklist item identifiers. The required set is the minimum safe exit;
// the tracked set is recorded but never blocks the wizard.
const (
	ChecklistRoomInspection   = "room_inspection"
	ChecklistEquipmentCheck   = "equipment_check"
	ChecklistBillingCleared   = "billing_cleared"
	ChecklistDocumentation    = "documentation_collected"
	ChecklistTransportation   = "transportation_arranged"
	ChecklistInsurance        = "insurance_notified"
	ChecklistEmergencyContact = "emergency_contacts"
)

// RequiredChecklist must all be true before the wizard may leave the
// checklist step.
var RequiredChecklist = []string{
	ChecklistRoomInspection,
	ChecklistEquipmentCheck,
	ChecklistBillingCleared,
}

// TrackedChecklist items are recorded alongside the required ones but are
// non-blocking.
var TrackedChecklist = []string{
	ChecklistDocumentation,
	ChecklistTransportation,
	ChecklistInsurance,
	ChecklistEmergencyContact,
}

// MovementRequest is the operator's ask to notify the arrivals/departures
// system once the termination commits.
type MovementRequest struct {
	Destination        string
	TransportMethod    string
	ContactPerson      string
	EstimatedDeparture time.Time
}

// TerminationRecord is the ephemeral wizard state. It is never persisted;
// a successful commit converts it into a TerminationCommit and the record is
// discarded, as it is on cancel.
type TerminationRecord struct {
	AssignmentID string
	Reason       string
	Category     TerminationCategory
	ActualVacate time.Time
	// FinalCost is the operator override; zero means "use the computed
	// estimate".
	FinalCost decimal.Decimal
	Notes     string
	Checklist map[string]bool
	Documents map[string]bool
	Movement  *MovementRequest
}

// NewTerminationRecord starts a fresh record for an assignment, with every
// known checklist item unchecked and the vacate date defaulted to now.
func NewTerminationRecord(assignmentID string, now time.Time) TerminationRecord {
	checklist := make(map[string]bool, len(RequiredChecklist)+len(TrackedChecklist))
	for _, item := range RequiredChecklist {
		checklist[item] = false
	}
	for _, item := range TrackedChecklist {
		checklist[item] = false
	}
	return TerminationRecord{
		AssignmentID: assignmentID,
		ActualVacate: now,
		Checklist:    checklist,
		Documents:    make(map[string]bool),
	}
}

// Gate returns nil when the record satisfies the forward gate of the given
// step, or a *GateError naming what is missing. Vacation, documentation and
// review have no gate.
func (r TerminationRecord) Gate(step Step) error {
	switch step {
	case StepReason:
		if r.Category == "" {
			return &GateError{Step: step, Reason: "category is required"}
		}
		if r.Reason == "" {
			return &GateError{Step: step, Reason: "reason is required"}
		}
	case StepChecklist:
		for _, item := range RequiredChecklist {
			if !r.Checklist[item] {
				return &GateError{Step: step, Reason: "required checklist item " + item + " is not complete"}
			}
		}
	}
	return nil
}

// TerminationCommit is the outcome handed to the store for the atomic
// commit: complete the assignment, record the rounded total, release the
// room slot.
type TerminationCommit struct {
	AssignmentID string
	ActualVacate time.Time
	Reason       string
	Category     TerminationCategory
	TotalCost    decimal.Decimal
	Notes        string
}

// MovementRecord is the departure payload emitted to the external
// arrivals/departures system after a successful commit. Emission is
// best-effort and never rolls back the termination.
type MovementRecord struct {
	Type               string
	AssignmentID       string
	EntityID           string
	EntityName         string
	Destination        string
	TransportMethod    string
	ContactPerson      string
	EstimatedDeparture time.Time
	Reason             string
}

// MovementDeparture is the only movement record type this engine emits.
const MovementDeparture = "departure"
