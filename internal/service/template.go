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

// TemplateService manages the Git-backed manifest templates.
type TemplateService struct {
	store *persistence.Store
	log   logr.Logger
}

func (s *TemplateService) Upsert(ctx context.Context, t *model.Template, operationID string) (string, error) {
	if t == nil || t.ID == "" {
		return "", errdefs.InvalidArgumentf("template id is required")
	}
	if t.Repository == "" || t.GitRef == "" || t.Path == "" {
		return "", errdefs.InvalidArgumentf("template %s needs repository, gitRef and path", t.ID)
	}

	operationID = model.EnsureOperationID(operationID)
	prev, hadPrev, err := snapshotPrevious(ctx, s.store.Templates.GetByID, t.ID)
	if err != nil {
		return "", err
	}
	ev, err := changeEvent(prev, t, hadPrev, model.ModelTemplate, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Templates.Upsert(ctx, t, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("upserted template", "id", t.ID, "operationID", operationID)
	return operationID, nil
}

// Delete refuses to remove a template that workloads or deployments still
// reference.
func (s *TemplateService) Delete(ctx context.Context, id, operationID string) (string, error) {
	prev, err := s.store.Templates.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	workloads, err := s.store.Workloads.ListByTemplate(ctx, id)
	if err != nil {
		return "", err
	}
	if len(workloads) > 0 {
		return "", errdefs.Conflictf("template %s is still used by %d workloads", id, len(workloads))
	}
	deployments, err := s.store.Deployments.ListByTemplate(ctx, id)
	if err != nil {
		return "", err
	}
	if len(deployments) > 0 {
		return "", errdefs.Conflictf("template %s is still used by %d deployments", id, len(deployments))
	}

	operationID = model.EnsureOperationID(operationID)
	ev, err := deleteEvent(prev, model.ModelTemplate, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Templates.Delete(ctx, id, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("deleted template", "id", id, "operationID", operationID)
	return operationID, nil
}

func (s *TemplateService) GetByID(ctx context.Context, id string) (*model.Template, error) {
	return s.store.Templates.GetByID(ctx, id)
}

func (s *TemplateService) List(ctx context.Context) ([]model.Template, error) {
	return s.store.Templates.List(ctx)
}
