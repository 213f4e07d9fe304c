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

type workspaceRepo struct{ st *store }

func (r workspaceRepo) Upsert(ctx context.Context, ws *model.Workspace, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO workspaces (id) VALUES ($1)
			ON CONFLICT (id) DO NOTHING`, ws.ID)
		return wrapPgError(err, model.ModelWorkspace, ws.ID)
	})
}

func (r workspaceRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		return deleteByID(ctx, tx, "workspaces", model.ModelWorkspace, id)
	})
}

func (r workspaceRepo) GetByID(ctx context.Context, id string) (*model.Workspace, error) {
	var ws model.Workspace
	err := r.st.pool.QueryRow(ctx, `SELECT id FROM workspaces WHERE id = $1`, id).Scan(&ws.ID)
	if err != nil {
		return nil, wrapPgError(err, model.ModelWorkspace, id)
	}
	return &ws, nil
}

func (r workspaceRepo) List(ctx context.Context) ([]model.Workspace, error) {
	rows, err := r.st.pool.Query(ctx, `SELECT id FROM workspaces ORDER BY id`)
	if err != nil {
		return nil, wrapPgError(err, model.ModelWorkspace, "")
	}
	defer rows.Close()

	var out []model.Workspace
	for rows.Next() {
		var ws model.Workspace
		if err := rows.Scan(&ws.ID); err != nil {
			return nil, wrapPgError(err, model.ModelWorkspace, "")
		}
		out = append(out, ws)
	}
	return out, wrapPgError(rows.Err(), model.ModelWorkspace, "")
}
