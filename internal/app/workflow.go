package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hollowbrook/stablekeep/internal/domain"
)

// movementTimeout bounds the departure-record enqueue. The emission is
// fire-and-forget: one attempt, no retry that could duplicate a departure
// record.
const movementTimeout = 3 * time.Second

// TerminationWorkflow manages the guarded five-step termination wizard. One
// session exists per assignment; the record it holds is ephemeral until the
// commit, and discarded on cancel. All occupancy mutation is delegated to
// the store's atomic CompleteTermination.
type TerminationWorkflow struct {
	store     domain.FacilityStore
	publisher domain.MovementPublisher
	steps     domain.StepValidator

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	step   domain.Step
	record domain.TerminationRecord
}

// NewTerminationWorkflow creates a workflow with the given adapters.
func NewTerminationWorkflow(store domain.FacilityStore, publisher domain.MovementPublisher, steps domain.StepValidator) *TerminationWorkflow {
	return &TerminationWorkflow{
		store:     store,
		publisher: publisher,
		steps:     steps,
		sessions:  make(map[string]*session),
	}
}

// State is a snapshot of a wizard session.
type State struct {
	AssignmentID string
	Step         domain.Step
	Record       domain.TerminationRecord
	Review       Review
}

// Review carries the cost figures shown before submission. Savings is only
// set when an expected vacate date exists and the actual departure precedes
// it.
type Review struct {
	EstimatedCost decimal.Decimal
	Savings       *decimal.Decimal
	FinalCost     decimal.Decimal
	Currency      string
}

// RecordPatch updates wizard record fields. Nil fields are left unchanged;
// checklist and document entries are merged key by key.
type RecordPatch struct {
	Reason        *string
	Category      *domain.TerminationCategory
	ActualVacate  *time.Time
	FinalCost     *decimal.Decimal
	Notes         *string
	Checklist     map[string]bool
	Documents     map[string]bool
	Movement      *domain.MovementRequest
	ClearMovement bool
}

// CommitResult is the outcome of a successful commit. Warning is non-empty
// when the movement record could not be emitted; the termination itself
// still succeeded.
type CommitResult struct {
	Assignment domain.Assignment
	Room       domain.Room
	Warning    string
}

// Begin starts (or resumes) a termination wizard for an active assignment.
func (w *TerminationWorkflow) Begin(ctx context.Context, assignmentID string) (State, error) {
	assignment, err := w.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return State{}, err
	}
	if assignment.Terminal() {
		return State{}, &domain.ValidationError{Field: "assignment", Reason: "already " + string(assignment.Status)}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if sess, ok := w.sessions[assignmentID]; ok {
		return w.state(assignmentID, sess, assignment), nil
	}

	sess := &session{
		step:   domain.StepReason,
		record: domain.NewTerminationRecord(assignmentID, time.Now().UTC()),
	}
	w.sessions[assignmentID] = sess

	return w.state(assignmentID, sess, assignment), nil
}

// Snapshot returns the current wizard state, or ErrNoTermination when no
// wizard is in progress for the assignment.
func (w *TerminationWorkflow) Snapshot(ctx context.Context, assignmentID string) (State, error) {
	assignment, err := w.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return State{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	sess, ok := w.sessions[assignmentID]
	if !ok {
		return State{}, domain.ErrNoTermination
	}
	return w.state(assignmentID, sess, assignment), nil
}

// Update merges a patch into the wizard record. Allowed from any step; the
// gates only apply when advancing.
func (w *TerminationWorkflow) Update(ctx context.Context, assignmentID string, patch RecordPatch) (State, error) {
	assignment, err := w.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return State{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	sess, ok := w.sessions[assignmentID]
	if !ok {
		return State{}, domain.ErrNoTermination
	}

	rec := &sess.record
	if patch.Reason != nil {
		rec.Reason = *patch.Reason
	}
	if patch.Category != nil {
		rec.Category = *patch.Category
	}
	if patch.ActualVacate != nil {
		rec.ActualVacate = *patch.ActualVacate
	}
	if patch.FinalCost != nil {
		if patch.FinalCost.IsNegative() {
			return State{}, &domain.ValidationError{Field: "final_cost", Reason: "must not be negative"}
		}
		rec.FinalCost = *patch.FinalCost
	}
	if patch.Notes != nil {
		rec.Notes = *patch.Notes
	}
	for item, done := range patch.Checklist {
		rec.Checklist[item] = done
	}
	for doc, keep := range patch.Documents {
		if keep {
			rec.Documents[doc] = true
		} else {
			delete(rec.Documents, doc)
		}
	}
	if patch.ClearMovement {
		rec.Movement = nil
	} else if patch.Movement != nil {
		rec.Movement = patch.Movement
	}

	return w.state(assignmentID, sess, assignment), nil
}

// Advance moves the wizard one step forward. The current step's gate must be
// satisfied; an unsatisfied gate returns a *domain.GateError and the wizard
// does not move.
func (w *TerminationWorkflow) Advance(ctx context.Context, assignmentID string) (State, error) {
	assignment, err := w.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return State{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	sess, ok := w.sessions[assignmentID]
	if !ok {
		return State{}, domain.ErrNoTermination
	}

	if err := sess.record.Gate(sess.step); err != nil {
		return State{}, err
	}

	next, err := w.steps.Apply(ctx, sess.step, domain.EventAdvance)
	if err != nil {
		return State{}, err
	}
	sess.step = next

	return w.state(assignmentID, sess, assignment), nil
}

// Back moves the wizard one step backward. Always permitted between working
// steps; no gate applies.
func (w *TerminationWorkflow) Back(ctx context.Context, assignmentID string) (State, error) {
	assignment, err := w.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return State{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	sess, ok := w.sessions[assignmentID]
	if !ok {
		return State{}, domain.ErrNoTermination
	}

	prev, err := w.steps.Apply(ctx, sess.step, domain.EventBack)
	if err != nil {
		return State{}, err
	}
	sess.step = prev

	return w.state(assignmentID, sess, assignment), nil
}

// Cancel discards the in-progress record. No ledger or registry state is
// touched; beginning again starts a fresh record.
func (w *TerminationWorkflow) Cancel(ctx context.Context, assignmentID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sess, ok := w.sessions[assignmentID]
	if !ok {
		return domain.ErrNoTermination
	}

	if _, err := w.steps.Apply(ctx, sess.step, domain.EventCancel); err != nil {
		return err
	}
	delete(w.sessions, assignmentID)
	return nil
}

// Commit performs the terminal transition: recompute the final cost, apply
// the atomic assignment+room mutation, and best-effort emit the departure
// record. Only reachable from the review step.
func (w *TerminationWorkflow) Commit(ctx context.Context, assignmentID string) (CommitResult, error) {
	assignment, err := w.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return CommitResult{}, err
	}

	w.mu.Lock()
	sess, ok := w.sessions[assignmentID]
	if !ok {
		w.mu.Unlock()
		return CommitResult{}, domain.ErrNoTermination
	}

	if _, err := w.steps.Apply(ctx, sess.step, domain.EventCommit); err != nil {
		w.mu.Unlock()
		return CommitResult{}, err
	}
	record := sess.record
	w.mu.Unlock()

	estimated := domain.EstimatedCost(assignment.DailyRate, assignment.AssignedDate, record.ActualVacate)
	total := domain.RoundMoney(domain.FinalCost(record.FinalCost, estimated))

	completed, room, err := w.store.CompleteTermination(ctx, domain.TerminationCommit{
		AssignmentID: assignmentID,
		ActualVacate: record.ActualVacate,
		Reason:       record.Reason,
		Category:     record.Category,
		TotalCost:    total,
		Notes:        record.Notes,
	})
	if err != nil {
		return CommitResult{}, err
	}

	// The commit succeeded; the session is spent either way.
	w.mu.Lock()
	delete(w.sessions, assignmentID)
	w.mu.Unlock()

	result := CommitResult{Assignment: completed, Room: room}

	if record.Movement != nil {
		if err := w.emitMovement(ctx, completed, record); err != nil {
			slog.WarnContext(ctx, "departure record not emitted",
				"assignment_id", assignmentID,
				"entity_id", completed.EntityID,
				"error", err,
			)
			result.Warning = fmt.Sprintf("departure record not emitted: %v", err)
		}
	}

	return result, nil
}

func (w *TerminationWorkflow) emitMovement(ctx context.Context, assignment domain.Assignment, record domain.TerminationRecord) error {
	ctx, cancel := context.WithTimeout(ctx, movementTimeout)
	defer cancel()

	return w.publisher.PublishDeparture(ctx, domain.MovementRecord{
		Type:               domain.MovementDeparture,
		AssignmentID:       assignment.ID,
		EntityID:           assignment.EntityID,
		EntityName:         assignment.EntityName,
		Destination:        record.Movement.Destination,
		TransportMethod:    record.Movement.TransportMethod,
		ContactPerson:      record.Movement.ContactPerson,
		EstimatedDeparture: record.Movement.EstimatedDeparture,
		Reason:             record.Reason,
	})
}

// state builds a State under w.mu.
func (w *TerminationWorkflow) state(assignmentID string, sess *session, assignment domain.Assignment) State {
	estimated := domain.EstimatedCost(assignment.DailyRate, assignment.AssignedDate, sess.record.ActualVacate)
	review := Review{
		EstimatedCost: estimated,
		FinalCost:     domain.FinalCost(sess.record.FinalCost, estimated),
		Currency:      assignment.Currency,
	}
	if assignment.ExpectedVacate != nil && sess.record.ActualVacate.Before(*assignment.ExpectedVacate) {
		savings := domain.EarlyDepartureSavings(assignment.DailyRate, *assignment.ExpectedVacate, sess.record.ActualVacate)
		review.Savings = &savings
	}

	return State{
		AssignmentID: assignmentID,
		Step:         sess.step,
		Record:       sess.record,
		Review:       review,
	}
}
