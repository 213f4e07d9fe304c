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

type configRepo struct{ st *store }

func (r configRepo) Upsert(ctx context.Context, c *model.Config, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO configs (id, owning_model, key, value, value_type)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET owning_model = EXCLUDED.owning_model, key = EXCLUDED.key,
			    value = EXCLUDED.value, value_type = EXCLUDED.value_type`,
			c.ID, c.OwningModel, c.Key, c.Value, string(c.ValueType))
		return wrapPgError(err, model.ModelConfig, c.ID)
	})
}

func (r configRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return r.st.withEvent(ctx, ev, func(tx pgx.Tx) error {
		return deleteByID(ctx, tx, "configs", model.ModelConfig, id)
	})
}

func (r configRepo) GetByID(ctx context.Context, id string) (*model.Config, error) {
	var c model.Config
	var valueType string
	err := r.st.pool.QueryRow(ctx,
		`SELECT id, owning_model, key, value, value_type FROM configs WHERE id = $1`, id).
		Scan(&c.ID, &c.OwningModel, &c.Key, &c.Value, &valueType)
	if err != nil {
		return nil, wrapPgError(err, model.ModelConfig, id)
	}
	c.ValueType = model.ValueType(valueType)
	return &c, nil
}

func (r configRepo) List(ctx context.Context) ([]model.Config, error) {
	return r.query(ctx, `SELECT id, owning_model, key, value, value_type FROM configs ORDER BY id`)
}

func (r configRepo) ListByOwningModel(ctx context.Context, owningModel string) ([]model.Config, error) {
	return r.query(ctx,
		`SELECT id, owning_model, key, value, value_type FROM configs WHERE owning_model = $1 ORDER BY id`,
		owningModel)
}

func (r configRepo) query(ctx context.Context, sql string, args ...any) ([]model.Config, error) {
	rows, err := r.st.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapPgError(err, model.ModelConfig, "")
	}
	defer rows.Close()

	var out []model.Config
	for rows.Next() {
		var c model.Config
		var valueType string
		if err := rows.Scan(&c.ID, &c.OwningModel, &c.Key, &c.Value, &valueType); err != nil {
			return nil, wrapPgError(err, model.ModelConfig, "")
		}
		c.ValueType = model.ValueType(valueType)
		out = append(out, c)
	}
	return out, wrapPgError(rows.Err(), model.ModelConfig, "")
}
