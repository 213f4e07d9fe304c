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

type targetRepo struct{ st *store }

func (r targetRepo) Upsert(ctx context.Context, t *model.Target, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO targets (id, labels) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET labels = EXCLUDED.labels`,
			t.ID, t.Labels)
		return wrapPgError(err, model.ModelTarget, t.ID)
	})
}

func (r targetRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		return deleteByID(ctx, tx, "targets", model.ModelTarget, id)
	})
}

func (r targetRepo) GetByID(ctx context.Context, id string) (*model.Target, error) {
	var t model.Target
	err := r.st.pool.QueryRow(ctx, `SELECT id, labels FROM targets WHERE id = $1`, id).
		Scan(&t.ID, &t.Labels)
	if err != nil {
		return nil, wrapPgError(err, model.ModelTarget, id)
	}
	return &t, nil
}

func (r targetRepo) List(ctx context.Context) ([]model.Target, error) {
	rows, err := r.st.pool.Query(ctx, `SELECT id, labels FROM targets ORDER BY id`)
	if err != nil {
		return nil, wrapPgError(err, model.ModelTarget, "")
	}
	defer rows.Close()

	var out []model.Target
	for rows.Next() {
		var t model.Target
		if err := rows.Scan(&t.ID, &t.Labels); err != nil {
			return nil, wrapPgError(err, model.ModelTarget, "")
		}
		out = append(out, t)
	}
	return out, wrapPgError(rows.Err(), model.ModelTarget, "")
}
