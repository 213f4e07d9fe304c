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

// AssignmentService manages the derived deployment-to-host placements. The
// reconciler is its only mutating caller; the API exposes reads only.
type AssignmentService struct {
	store *persistence.Store
	log   logr.Logger
}

// Upsert records a placement. Creating an assignment that already exists is a
// no-op at the storage layer but still emits an event, so replays stay
// harmless for consumers that dedupe by id.
func (s *AssignmentService) Upsert(ctx context.Context, a *model.Assignment, operationID string) (string, error) {
	if a == nil || a.DeploymentID == "" || a.HostID == "" {
		return "", errdefs.InvalidArgumentf("assignment needs a deployment id and a host id")
	}
	if want := model.MakeAssignmentID(a.DeploymentID, a.HostID); a.ID != want {
		return "", errdefs.InvalidArgumentf("assignment id %q does not match its pair id %q", a.ID, want)
	}
	if _, err := s.store.Deployments.GetByID(ctx, a.DeploymentID); err != nil {
		return "", err
	}
	if _, err := s.store.Hosts.GetByID(ctx, a.HostID); err != nil {
		return "", err
	}

	operationID = model.EnsureOperationID(operationID)
	prev, hadPrev, err := snapshotPrevious(ctx, s.store.Assignments.GetByID, a.ID)
	if err != nil {
		return "", err
	}
	ev, err := changeEvent(prev, a, hadPrev, model.ModelAssignment, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Assignments.Upsert(ctx, a, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("upserted assignment", "id", a.ID, "operationID", operationID)
	return operationID, nil
}

func (s *AssignmentService) Delete(ctx context.Context, id, operationID string) (string, error) {
	prev, err := s.store.Assignments.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	operationID = model.EnsureOperationID(operationID)
	ev, err := deleteEvent(prev, model.ModelAssignment, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Assignments.Delete(ctx, id, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("deleted assignment", "id", id, "operationID", operationID)
	return operationID, nil
}

func (s *AssignmentService) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	return s.store.Assignments.GetByID(ctx, id)
}

func (s *AssignmentService) List(ctx context.Context) ([]model.Assignment, error) {
	return s.store.Assignments.List(ctx)
}

func (s *AssignmentService) ListByDeployment(ctx context.Context, deploymentID string) ([]model.Assignment, error) {
	return s.store.Assignments.ListByDeployment(ctx, deploymentID)
}

func (s *AssignmentService) ListByHost(ctx context.Context, hostID string) ([]model.Assignment, error) {
	return s.store.Assignments.ListByHost(ctx, hostID)
}
