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

// WorkspaceService manages the teams that own workloads.
type WorkspaceService struct {
	store *persistence.Store
	log   logr.Logger
}

func (s *WorkspaceService) Upsert(ctx context.Context, ws *model.Workspace, operationID string) (string, error) {
	if ws == nil || ws.ID == "" {
		return "", errdefs.InvalidArgumentf("workspace id is required")
	}

	operationID = model.EnsureOperationID(operationID)
	prev, hadPrev, err := snapshotPrevious(ctx, s.store.Workspaces.GetByID, ws.ID)
	if err != nil {
		return "", err
	}
	ev, err := changeEvent(prev, ws, hadPrev, model.ModelWorkspace, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Workspaces.Upsert(ctx, ws, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("upserted workspace", "id", ws.ID, "operationID", operationID)
	return operationID, nil
}

// Delete removes a workspace. It is rejected while workloads still reference
// it, so a team cannot disappear under its applications.
func (s *WorkspaceService) Delete(ctx context.Context, id, operationID string) (string, error) {
	prev, err := s.store.Workspaces.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	workloads, err := s.store.Workloads.ListByWorkspace(ctx, id)
	if err != nil {
		return "", err
	}
	if len(workloads) > 0 {
		return "", errdefs.Conflictf("workspace %s still owns %d workloads", id, len(workloads))
	}

	operationID = model.EnsureOperationID(operationID)
	ev, err := deleteEvent(prev, model.ModelWorkspace, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Workspaces.Delete(ctx, id, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("deleted workspace", "id", id, "operationID", operationID)
	return operationID, nil
}

func (s *WorkspaceService) GetByID(ctx context.Context, id string) (*model.Workspace, error) {
	return s.store.Workspaces.GetByID(ctx, id)
}

func (s *WorkspaceService) List(ctx context.Context) ([]model.Workspace, error) {
	return s.store.Workspaces.List(ctx)
}
