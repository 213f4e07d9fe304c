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

// DeploymentService manages the bindings between workloads and targets.
type DeploymentService struct {
	store *persistence.Store
	log   logr.Logger
}

func (s *DeploymentService) Upsert(ctx context.Context, d *model.Deployment, operationID string) (string, error) {
	if d == nil || d.ID == "" {
		return "", errdefs.InvalidArgumentf("deployment id is required")
	}
	if d.Name == "" {
		return "", errdefs.InvalidArgumentf("deployment %s needs a name", d.ID)
	}
	if d.HostCount < model.HostCountAll {
		return "", errdefs.InvalidArgumentf("deployment %s host count %d is invalid", d.ID, d.HostCount)
	}
	if _, err := s.store.Workloads.GetByID(ctx, d.WorkloadID); err != nil {
		return "", err
	}
	if _, err := s.store.Targets.GetByID(ctx, d.TargetID); err != nil {
		return "", err
	}
	if d.TemplateID != "" {
		if _, err := s.store.Templates.GetByID(ctx, d.TemplateID); err != nil {
			return "", err
		}
	}

	operationID = model.EnsureOperationID(operationID)
	prev, hadPrev, err := snapshotPrevious(ctx, s.store.Deployments.GetByID, d.ID)
	if err != nil {
		return "", err
	}
	ev, err := changeEvent(prev, d, hadPrev, model.ModelDeployment, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Deployments.Upsert(ctx, d, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("upserted deployment", "id", d.ID, "operationID", operationID)
	return operationID, nil
}

// Delete removes the deployment. Its assignments are not touched here: the
// reconciler tears them down when it consumes the deletion event, so the
// event order downstream is deployment first, assignments after.
func (s *DeploymentService) Delete(ctx context.Context, id, operationID string) (string, error) {
	prev, err := s.store.Deployments.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	operationID = model.EnsureOperationID(operationID)
	ev, err := deleteEvent(prev, model.ModelDeployment, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Deployments.Delete(ctx, id, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("deleted deployment", "id", id, "operationID", operationID)
	return operationID, nil
}

func (s *DeploymentService) GetByID(ctx context.Context, id string) (*model.Deployment, error) {
	return s.store.Deployments.GetByID(ctx, id)
}

func (s *DeploymentService) List(ctx context.Context) ([]model.Deployment, error) {
	return s.store.Deployments.List(ctx)
}

func (s *DeploymentService) ListByTarget(ctx context.Context, targetID string) ([]model.Deployment, error) {
	return s.store.Deployments.ListByTarget(ctx, targetID)
}

func (s *DeploymentService) ListByWorkload(ctx context.Context, workloadID string) ([]model.Deployment, error) {
	return s.store.Deployments.ListByWorkload(ctx, workloadID)
}
