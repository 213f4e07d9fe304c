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

// HostService manages the machines that manifests are rendered for.
type HostService struct {
	store       *persistence.Store
	log         logr.Logger
	assignments *AssignmentService
}

func (s *HostService) Upsert(ctx context.Context, h *model.Host, operationID string) (string, error) {
	if h == nil || h.ID == "" {
		return "", errdefs.InvalidArgumentf("host id is required")
	}
	if err := model.ValidateLabels(h.Labels); err != nil {
		return "", errdefs.InvalidArgumentf("host %s: %v", h.ID, err)
	}

	operationID = model.EnsureOperationID(operationID)
	prev, hadPrev, err := snapshotPrevious(ctx, s.store.Hosts.GetByID, h.ID)
	if err != nil {
		return "", err
	}
	ev, err := changeEvent(prev, h, hadPrev, model.ModelHost, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Hosts.Upsert(ctx, h, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("upserted host", "id", h.ID, "operationID", operationID)
	return operationID, nil
}

// Delete removes the host and cascades its assignments first, so downstream
// consumers see assignment deletions before the host deletion, all under one
// operation id.
func (s *HostService) Delete(ctx context.Context, id, operationID string) (string, error) {
	prev, err := s.store.Hosts.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	operationID = model.EnsureOperationID(operationID)
	assignments, err := s.store.Assignments.ListByHost(ctx, id)
	if err != nil {
		return "", err
	}
	for _, a := range assignments {
		if _, err := s.assignments.Delete(ctx, a.ID, operationID); err != nil {
			return "", err
		}
	}

	ev, err := deleteEvent(prev, model.ModelHost, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Hosts.Delete(ctx, id, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("deleted host", "id", id, "assignments", len(assignments), "operationID", operationID)
	return operationID, nil
}

func (s *HostService) GetByID(ctx context.Context, id string) (*model.Host, error) {
	return s.store.Hosts.GetByID(ctx, id)
}

func (s *HostService) List(ctx context.Context) ([]model.Host, error) {
	return s.store.Hosts.List(ctx)
}

// ListMatchingTarget returns the hosts eligible for a target.
func (s *HostService) ListMatchingTarget(ctx context.Context, t *model.Target) ([]model.Host, error) {
	return s.store.Hosts.ListMatchingLabels(ctx, t.Labels)
}
