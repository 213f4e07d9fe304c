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

// Package postgres backs the persistence contracts with PostgreSQL. Entity
// writes and their events share one transaction via the stream's SendTx.
package postgres

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/eventstream"
	"github.com/ConfigButler/deployplane/internal/model"
	"github.com/ConfigButler/deployplane/internal/persistence"
)

//go:embed schema.sql
var schema string

// Migrate applies the schema. Statements are idempotent, so it is safe to run
// on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return errdefs.Unavailablef("failed to apply schema: %v", err)
	}
	return nil
}

type store struct {
	pool   *pgxpool.Pool
	stream *eventstream.PostgresStream
}

// NewStore creates a relational store whose mutations append their events to
// stream inside the same transaction.
func NewStore(pool *pgxpool.Pool, stream *eventstream.PostgresStream) *persistence.Store {
	st := &store{pool: pool, stream: stream}
	return &persistence.Store{
		Workspaces:  workspaceRepo{st},
		Workloads:   workloadRepo{st},
		Templates:   templateRepo{st},
		Targets:     targetRepo{st},
		Hosts:       hostRepo{st},
		Deployments: deploymentRepo{st},
		Assignments: assignmentRepo{st},
		Configs:     configRepo{st},
	}
}

// withEvent runs fn and the event append in one transaction.
func (st *store) withEvent(ctx context.Context, ev *model.Event, fn func(pgx.Tx) error) error {
	tx, err := st.pool.Begin(ctx)
	if err != nil {
		return errdefs.Unavailablef("failed to begin transaction: %v", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := st.stream.SendTx(ctx, tx, ev); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errdefs.Unavailablef("failed to commit transaction: %v", err)
	}
	return nil
}

// deleteByID deletes one row and reports NotFound when nothing matched.
func deleteByID(ctx context.Context, tx pgx.Tx, table string, kind model.ModelType, id string) error {
	ct, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return wrapPgError(err, kind, id)
	}
	if ct.RowsAffected() == 0 {
		return errdefs.NotFoundf("%s %s", kind, id)
	}
	return nil
}

// wrapPgError translates driver failures onto the shared error kinds.
// Constraint violations are conflicts; everything else is transient.
func wrapPgError(err error, kind model.ModelType, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errdefs.NotFoundf("%s %s", kind, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503": // unique_violation, foreign_key_violation
			return errdefs.Conflictf("%s %s: %s", kind, id, pgErr.Message)
		}
	}
	return errdefs.Unavailablef("%s %s: %v", kind, id, err)
}
