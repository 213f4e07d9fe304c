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

type deploymentRepo struct{ st *store }

func (r deploymentRepo) Upsert(ctx context.Context, d *model.Deployment, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO deployments (id, name, workload_id, target_id, template_id, host_count)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, workload_id = EXCLUDED.workload_id,
			    target_id = EXCLUDED.target_id, template_id = EXCLUDED.template_id,
			    host_count = EXCLUDED.host_count`,
			d.ID, d.Name, d.WorkloadID, d.TargetID, d.TemplateID, d.HostCount)
		return wrapPgError(err, model.ModelDeployment, d.ID)
	})
}

func (r deploymentRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		return deleteByID(ctx, tx, "deployments", model.ModelDeployment, id)
	})
}

func (r deploymentRepo) GetByID(ctx context.Context, id string) (*model.Deployment, error) {
	var d model.Deployment
	err := r.st.pool.QueryRow(ctx, `
		SELECT id, name, workload_id, target_id, COALESCE(template_id, ''), host_count
		FROM deployments WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.WorkloadID, &d.TargetID, &d.TemplateID, &d.HostCount)
	if err != nil {
		return nil, wrapPgError(err, model.ModelDeployment, id)
	}
	return &d, nil
}

func (r deploymentRepo) List(ctx context.Context) ([]model.Deployment, error) {
	return r.query(ctx, deploymentSelect+` ORDER BY id`)
}

func (r deploymentRepo) ListByTarget(ctx context.Context, targetID string) ([]model.Deployment, error) {
	return r.query(ctx, deploymentSelect+` WHERE target_id = $1 ORDER BY id`, targetID)
}

func (r deploymentRepo) ListByWorkload(ctx context.Context, workloadID string) ([]model.Deployment, error) {
	return r.query(ctx, deploymentSelect+` WHERE workload_id = $1 ORDER BY id`, workloadID)
}

func (r deploymentRepo) ListByTemplate(ctx context.Context, templateID string) ([]model.Deployment, error) {
	return r.query(ctx, deploymentSelect+` WHERE template_id = $1 ORDER BY id`, templateID)
}

const deploymentSelect = `
	SELECT id, name, workload_id, target_id, COALESCE(template_id, ''), host_count
	FROM deployments`

func (r deploymentRepo) query(ctx context.Context, sql string, args ...any) ([]model.Deployment, error) {
	rows, err := r.st.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapPgError(err, model.ModelDeployment, "")
	}
	defer rows.Close()

	var out []model.Deployment
	for rows.Next() {
		var d model.Deployment
		if err := rows.Scan(&d.ID, &d.Name, &d.WorkloadID, &d.TargetID, &d.TemplateID, &d.HostCount); err != nil {
			return nil, wrapPgError(err, model.ModelDeployment, "")
		}
		out = append(out, d)
	}
	return out, wrapPgError(rows.Err(), model.ModelDeployment, "")
}
