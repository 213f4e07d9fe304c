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

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ConfigButler/deployplane/internal/model"
)

type hostRepo struct{ st *store }

func (r hostRepo) Upsert(ctx context.Context, h *model.Host, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO hosts (id, labels) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET labels = EXCLUDED.labels`,
			h.ID, h.Labels)
		return wrapPgError(err, model.ModelHost, h.ID)
	})
}

func (r hostRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		return deleteByID(ctx, tx, "hosts", model.ModelHost, id)
	})
}

func (r hostRepo) GetByID(ctx context.Context, id string) (*model.Host, error) {
	var h model.Host
	err := r.st.pool.QueryRow(ctx, `SELECT id, labels FROM hosts WHERE id = $1`, id).
		Scan(&h.ID, &h.Labels)
	if err != nil {
		return nil, wrapPgError(err, model.ModelHost, id)
	}
	return &h, nil
}

func (r hostRepo) List(ctx context.Context) ([]model.Host, error) {
	return r.query(ctx, `SELECT id, labels FROM hosts ORDER BY id`)
}

// ListMatchingLabels relies on the GIN index over labels; the array
// containment operator expresses "host carries every wanted label".
func (r hostRepo) ListMatchingLabels(ctx context.Context, want []string) ([]model.Host, error) {
	if len(want) == 0 {
		return r.List(ctx)
	}
	return r.query(ctx, `SELECT id, labels FROM hosts WHERE labels @> $1 ORDER BY id`, want)
}

func (r hostRepo) query(ctx context.Context, sql string, args ...any) ([]model.Host, error) {
	rows, err := r.st.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapPgError(err, model.ModelHost, "")
	}
	defer rows.Close()

	var out []model.Host
	for rows.Next() {
		var h model.Host
		if err := rows.Scan(&h.ID, &h.Labels); err != nil {
			return nil, wrapPgError(err, model.ModelHost, "")
		}
		out = append(out, h)
	}
	return out, wrapPgError(rows.Err(), model.ModelHost, "")
}
