package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/flowtrail/flowtrail/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// MovementJobArgs carries a committed ledger record for async processing.
// River serializes this as JSON into its job queue table. It snapshots the
// record and entity at publish time, so the worker never needs to query the
// database — and can never observe or trigger further transitions.
type MovementJobArgs struct {
	RecordID      string `json:"record_id"`
	EntityID      string `json:"entity_id"`
	TenantID      string `json:"tenant_id"`
	EntityType    string `json:"entity_type"`
	EntityCode    string `json:"entity_code"`
	Action        string `json:"action"`
	PreviousState string `json:"previous_state,omitempty"`
	NewState      string `json:"new_state"`
	ActorID       string `json:"actor_id"`
	Location      string `json:"location,omitempty"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (MovementJobArgs) Kind() string { return "movement.recorded" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a movement notification as an async job in River.
func (p *Publisher) Publish(ctx context.Context, record domain.TransitionRecord, entity domain.Entity) error {
	args := MovementJobArgs{
		RecordID:   record.ID,
		EntityID:   record.EntityID,
		TenantID:   record.TenantID,
		EntityType: string(record.EntityType),
		EntityCode: entity.Code,
		Action:     string(record.Action),
		NewState:   string(record.NewState),
		ActorID:    record.ActorID,
		Location:   record.Location,
	}
	if record.PreviousState != nil {
		args.PreviousState = string(*record.PreviousState)
	}

	if _, err := p.client.Insert(ctx, args, nil); err != nil {
		return fmt.Errorf("enqueuing movement job: %w", err)
	}
	return nil
}
