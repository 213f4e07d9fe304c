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

type templateRepo struct{ st *store }

func (r templateRepo) Upsert(ctx context.Context, t *model.Template, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO templates (id, repository, git_ref, path)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET repository = EXCLUDED.repository, git_ref = EXCLUDED.git_ref, path = EXCLUDED.path`,
			t.ID, t.Repository, t.GitRef, t.Path)
		return wrapPgError(err, model.ModelTemplate, t.ID)
	})
}

func (r templateRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		return deleteByID(ctx, tx, "templates", model.ModelTemplate, id)
	})
}

func (r templateRepo) GetByID(ctx context.Context, id string) (*model.Template, error) {
	var t model.Template
	err := r.st.pool.QueryRow(ctx,
		`SELECT id, repository, git_ref, path FROM templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Repository, &t.GitRef, &t.Path)
	if err != nil {
		return nil, wrapPgError(err, model.ModelTemplate, id)
	}
	return &t, nil
}

func (r templateRepo) List(ctx context.Context) ([]model.Template, error) {
	rows, err := r.st.pool.Query(ctx,
		`SELECT id, repository, git_ref, path FROM templates ORDER BY id`)
	if err != nil {
		return nil, wrapPgError(err, model.ModelTemplate, "")
	}
	return scanTemplates(rows)
}

func scanTemplates(rows pgx.Rows) ([]model.Template, error) {
	defer rows.Close()
	var out []model.Template
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.ID, &t.Repository, &t.GitRef, &t.Path); err != nil {
			return nil, wrapPgError(err, model.ModelTemplate, "")
		}
		out = append(out, t)
	}
	return out, wrapPgError(rows.Err(), model.ModelTemplate, "")
}
