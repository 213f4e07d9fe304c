/*
SPDX-License-Identifier: Apache-2.0

Copyright 2025 ConfigButler

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package eventstream

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/model"
)

// PostgresStream stores events in the event_queue table, one row per
// (event, consumer) pair. Acknowledgement deletes the row, so the backlog of
// a consumer is exactly its unacknowledged rows. Inserts are idempotent
// (primary key on consumer_id + id), which makes replayed sends safe.
type PostgresStream struct {
	pool      *pgxpool.Pool
	consumers []string
}

var _ Stream = (*PostgresStream)(nil)

// NewPostgresStream creates a stream fanning out to the given consumer ids.
func NewPostgresStream(pool *pgxpool.Pool, consumerIDs ...string) *PostgresStream {
	return &PostgresStream{pool: pool, consumers: consumerIDs}
}

const insertEventSQL = `
	INSERT INTO event_queue
		(id, consumer_id, event_timestamp, operation_id, event_type, model_type, previous_model, current_model)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (consumer_id, id) DO NOTHING`

// Send appends the event for every consumer in a single transaction.
func (s *PostgresStream) Send(ctx context.Context, ev *model.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errdefs.Unavailablef("failed to begin event transaction: %v", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.SendTx(ctx, tx, ev); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errdefs.Unavailablef("failed to commit event: %v", err)
	}
	return nil
}

// SendTx appends the event inside a caller-owned transaction. The relational
// persistence layer uses it so an entity write and its event land atomically.
func (s *PostgresStream) SendTx(ctx context.Context, tx pgx.Tx, ev *model.Event) error {
	for _, consumerID := range s.consumers {
		_, err := tx.Exec(ctx, insertEventSQL,
			ev.ID, consumerID, ev.Timestamp, ev.OperationID,
			string(ev.EventType), string(ev.ModelType), ev.Previous, ev.Current)
		if err != nil {
			return errdefs.Unavailablef("failed to append event for consumer %s: %v", consumerID, err)
		}
	}
	return nil
}

// Receive returns up to maxN unacknowledged events in (timestamp, id) order.
func (s *PostgresStream) Receive(ctx context.Context, consumerID string, maxN int) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_timestamp, operation_id, event_type, model_type, previous_model, current_model
		FROM event_queue
		WHERE consumer_id = $1
		ORDER BY event_timestamp ASC, id ASC
		LIMIT $2`, consumerID, maxN)
	if err != nil {
		return nil, errdefs.Unavailablef("failed to receive events for consumer %s: %v", consumerID, err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var eventType, modelType string
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.OperationID, &eventType, &modelType, &ev.Previous, &ev.Current); err != nil {
			return nil, errdefs.Unavailablef("failed to scan event row: %v", err)
		}
		ev.EventType = model.EventType(eventType)
		ev.ModelType = model.ModelType(modelType)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errdefs.Unavailablef("failed to read event rows: %v", err)
	}
	return events, nil
}

// Ack deletes the consumer's copy of one event.
func (s *PostgresStream) Ack(ctx context.Context, consumerID, eventID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM event_queue WHERE consumer_id = $1 AND id = $2`, consumerID, eventID)
	if err != nil {
		return errdefs.Unavailablef("failed to ack event %s for consumer %s: %v", eventID, consumerID, err)
	}
	return nil
}

// Pending counts the consumer's unacknowledged events.
func (s *PostgresStream) Pending(ctx context.Context, consumerID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM event_queue WHERE consumer_id = $1`, consumerID).Scan(&n)
	if err != nil {
		return 0, errdefs.Unavailablef("failed to count events for consumer %s: %v", consumerID, err)
	}
	return n, nil
}
