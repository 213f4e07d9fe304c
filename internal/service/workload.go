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

// WorkloadService manages workloads and cascades their deployments on delete.
type WorkloadService struct {
	store       *persistence.Store
	log         logr.Logger
	deployments *DeploymentService
}

func (s *WorkloadService) Upsert(ctx context.Context, w *model.Workload, operationID string) (string, error) {
	if w == nil || w.ID == "" {
		return "", errdefs.InvalidArgumentf("workload id is required")
	}
	if w.Name == "" {
		return "", errdefs.InvalidArgumentf("workload %s needs a name", w.ID)
	}
	if _, err := s.store.Workspaces.GetByID(ctx, w.WorkspaceID); err != nil {
		return "", err
	}
	if _, err := s.store.Templates.GetByID(ctx, w.TemplateID); err != nil {
		return "", err
	}

	operationID = model.EnsureOperationID(operationID)
	prev, hadPrev, err := snapshotPrevious(ctx, s.store.Workloads.GetByID, w.ID)
	if err != nil {
		return "", err
	}
	ev, err := changeEvent(prev, w, hadPrev, model.ModelWorkload, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Workloads.Upsert(ctx, w, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("upserted workload", "id", w.ID, "operationID", operationID)
	return operationID, nil
}

// Delete removes the workload and every deployment under it. The cascade runs
// first so each deployment gets its own Deleted event, all sharing one
// operation id.
func (s *WorkloadService) Delete(ctx context.Context, id, operationID string) (string, error) {
	prev, err := s.store.Workloads.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	operationID = model.EnsureOperationID(operationID)
	deployments, err := s.store.Deployments.ListByWorkload(ctx, id)
	if err != nil {
		return "", err
	}
	for _, d := range deployments {
		if _, err := s.deployments.Delete(ctx, d.ID, operationID); err != nil {
			return "", err
		}
	}

	ev, err := deleteEvent(prev, model.ModelWorkload, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Workloads.Delete(ctx, id, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("deleted workload", "id", id, "deployments", len(deployments), "operationID", operationID)
	return operationID, nil
}

func (s *WorkloadService) GetByID(ctx context.Context, id string) (*model.Workload, error) {
	return s.store.Workloads.GetByID(ctx, id)
}

func (s *WorkloadService) List(ctx context.Context) ([]model.Workload, error) {
	return s.store.Workloads.List(ctx)
}

func (s *WorkloadService) ListByWorkspace(ctx context.Context, workspaceID string) ([]model.Workload, error) {
	return s.store.Workloads.ListByWorkspace(ctx, workspaceID)
}
