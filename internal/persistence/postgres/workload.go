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

type workloadRepo struct{ st *store }

func (r workloadRepo) Upsert(ctx context.Context, w *model.Workload, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO workloads (id, name, workspace_id, template_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, workspace_id = EXCLUDED.workspace_id, template_id = EXCLUDED.template_id`,
			w.ID, w.Name, w.WorkspaceID, w.TemplateID)
		return wrapPgError(err, model.ModelWorkload, w.ID)
	})
}

func (r workloadRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		return deleteByID(ctx, tx, "workloads", model.ModelWorkload, id)
	})
}

func (r workloadRepo) GetByID(ctx context.Context, id string) (*model.Workload, error) {
	var w model.Workload
	err := r.st.pool.QueryRow(ctx,
		`SELECT id, name, workspace_id, template_id FROM workloads WHERE id = $1`, id).
		Scan(&w.ID, &w.Name, &w.WorkspaceID, &w.TemplateID)
	if err != nil {
		return nil, wrapPgError(err, model.ModelWorkload, id)
	}
	return &w, nil
}

func (r workloadRepo) List(ctx context.Context) ([]model.Workload, error) {
	return r.query(ctx, `SELECT id, name, workspace_id, template_id FROM workloads ORDER BY id`)
}

func (r workloadRepo) ListByWorkspace(ctx context.Context, workspaceID string) ([]model.Workload, error) {
	return r.query(ctx,
		`SELECT id, name, workspace_id, template_id FROM workloads WHERE workspace_id = $1 ORDER BY id`,
		workspaceID)
}

func (r workloadRepo) ListByTemplate(ctx context.Context, templateID string) ([]model.Workload, error) {
	return r.query(ctx,
		`SELECT id, name, workspace_id, template_id FROM workloads WHERE template_id = $1 ORDER BY id`,
		templateID)
}

func (r workloadRepo) query(ctx context.Context, sql string, args ...any) ([]model.Workload, error) {
	rows, err := r.st.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapPgError(err, model.ModelWorkload, "")
	}
	defer rows.Close()

	var out []model.Workload
	for rows.Next() {
		var w model.Workload
		if err := rows.Scan(&w.ID, &w.Name, &w.WorkspaceID, &w.TemplateID); err != nil {
			return nil, wrapPgError(err, model.ModelWorkload, "")
		}
		out = append(out, w)
	}
	return out, wrapPgError(rows.Err(), model.ModelWorkload, "")
}
