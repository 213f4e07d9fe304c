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

package service

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/model"
	"github.com/ConfigButler/deployplane/internal/persistence"
)

// TargetService manages the label selectors that deployments point at.
type TargetService struct {
	store *persistence.Store
	log   logr.Logger
}

func (s *TargetService) Upsert(ctx context.Context, t *model.Target, operationID string) (string, error) {
	if t == nil || t.ID == "" {
		return "", errdefs.InvalidArgumentf("target id is required")
	}
	if err := model.ValidateLabels(t.Labels); err != nil {
		return "", errdefs.InvalidArgumentf("target %s: %v", t.ID, err)
	}

	operationID = model.EnsureOperationID(operationID)
	prev, hadPrev, err := snapshotPrevious(ctx, s.store.Targets.GetByID, t.ID)
	if err != nil {
		return "", err
	}
	ev, err := changeEvent(prev, t, hadPrev, model.ModelTarget, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Targets.Upsert(ctx, t, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("upserted target", "id", t.ID, "operationID", operationID)
	return operationID, nil
}

// Delete refuses to remove a target that deployments still point at.
func (s *TargetService) Delete(ctx context.Context, id, operationID string) (string, error) {
	prev, err := s.store.Targets.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	deployments, err := s.store.Deployments.ListByTarget(ctx, id)
	if err != nil {
		return "", err
	}
	if len(deployments) > 0 {
		return "", errdefs.Conflictf("target %s is still used by %d deployments", id, len(deployments))
	}

	operationID = model.EnsureOperationID(operationID)
	ev, err := deleteEvent(prev, model.ModelTarget, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Targets.Delete(ctx, id, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("deleted target", "id", id, "operationID", operationID)
	return operationID, nil
}

func (s *TargetService) GetByID(ctx context.Context, id string) (*model.Target, error) {
	return s.store.Targets.GetByID(ctx, id)
}

func (s *TargetService) List(ctx context.Context) ([]model.Target, error) {
	return s.store.Targets.List(ctx)
}
