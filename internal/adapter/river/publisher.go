package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/hollowbrook/stablekeep/internal/domain"
)

// Compile-time check: Publisher implements domain.MovementPublisher.
var _ domain.MovementPublisher = (*Publisher)(nil)

// DepartureJobArgs carries a departure movement record into the job queue.
// River serializes this as JSON into its job table. The payload is a full
// snapshot taken at commit time, so the worker never needs to query the
// facility store.
type DepartureJobArgs struct {
	Type               string    `json:"type"`
	AssignmentID       string    `json:"assignment_id"`
	EntityID           string    `json:"entity_id"`
	EntityName         string    `json:"entity_name"`
	Destination        string    `json:"destination"`
	TransportMethod    string    `json:"transport_method"`
	ContactPerson      string    `json:"contact_person"`
	EstimatedDeparture time.Time `json:"estimated_departure"`
	Reason             string    `json:"reason"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (DepartureJobArgs) Kind() string { return "movement.departure" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.MovementPublisher by enqueuing River jobs.
// A single enqueue, no retries from the caller side: a duplicate departure
// record is worse than a missing one, which the commit path reports as a
// warning.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// PublishDeparture enqueues a departure record as an async job in River.
func (p *Publisher) PublishDeparture(ctx context.Context, record domain.MovementRecord) error {
	_, err := p.client.Insert(ctx, DepartureJobArgs{
		Type:               record.Type,
		AssignmentID:       record.AssignmentID,
		EntityID:           record.EntityID,
		EntityName:         record.EntityName,
		Destination:        record.Destination,
		TransportMethod:    record.TransportMethod,
		ContactPerson:      record.ContactPerson,
		EstimatedDeparture: record.EstimatedDeparture,
		Reason:             record.Reason,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing departure job: %w", err)
	}
	return nil
}
