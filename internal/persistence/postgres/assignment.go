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

type assignmentRepo struct{ st *store }

func (r assignmentRepo) Upsert(ctx context.Context, a *model.Assignment, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO assignments (id, deployment_id, host_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING`,
			a.ID, a.DeploymentID, a.HostID)
		return wrapPgError(err, model.ModelAssignment, a.ID)
	})
}

func (r assignmentRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		return deleteByID(ctx, tx, "assignments", model.ModelAssignment, id)
	})
}

func (r assignmentRepo) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	var a model.Assignment
	err := r.st.pool.QueryRow(ctx,
		`SELECT id, deployment_id, host_id FROM assignments WHERE id = $1`, id).
		Scan(&a.ID, &a.DeploymentID, &a.HostID)
	if err != nil {
		return nil, wrapPgError(err, model.ModelAssignment, id)
	}
	return &a, nil
}

func (r assignmentRepo) List(ctx context.Context) ([]model.Assignment, error) {
	return r.query(ctx, `SELECT id, deployment_id, host_id FROM assignments ORDER BY id`)
}

func (r assignmentRepo) ListByDeployment(ctx context.Context, deploymentID string) ([]model.Assignment, error) {
	return r.query(ctx,
		`SELECT id, deployment_id, host_id FROM assignments WHERE deployment_id = $1 ORDER BY id`,
		deploymentID)
}

func (r assignmentRepo) ListByHost(ctx context.Context, hostID string) ([]model.Assignment, error) {
	return r.query(ctx,
		`SELECT id, deployment_id, host_id FROM assignments WHERE host_id = $1 ORDER BY id`,
		hostID)
}

func (r assignmentRepo) query(ctx context.Context, sql string, args ...any) ([]model.Assignment, error) {
	rows, err := r.st.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapPgError(err, model.ModelAssignment, "")
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ID, &a.DeploymentID, &a.HostID); err != nil {
			return nil, wrapPgError(err, model.ModelAssignment, "")
		}
		out = append(out, a)
	}
	return out, wrapPgError(rows.Err(), model.ModelAssignment, "")
}
