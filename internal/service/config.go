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
	"sort"

	"github.com/go-logr/logr"

	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/model"
	"github.com/ConfigButler/deployplane/internal/persistence"
)

// ConfigService manages config entries and resolves the inheritance chain
// deployment -> workload -> workspace -> template, nearest owner winning per
// key.
type ConfigService struct {
	store *persistence.Store
	log   logr.Logger
}

func (s *ConfigService) Upsert(ctx context.Context, c *model.Config, operationID string) (string, error) {
	if c == nil || c.ID == "" {
		return "", errdefs.InvalidArgumentf("config id is required")
	}
	if c.Key == "" {
		return "", errdefs.InvalidArgumentf("config %s needs a key", c.ID)
	}
	switch c.ValueType {
	case model.ValueTypeString, model.ValueTypeKeyValue, model.ValueTypeKeyValueList:
	default:
		return "", errdefs.InvalidArgumentf("config %s has unknown value type %q", c.ID, c.ValueType)
	}
	owner, err := model.ParseOwnerRef(c.OwningModel)
	if err != nil {
		return "", errdefs.InvalidArgumentf("config %s: %v", c.ID, err)
	}
	if err := s.ownerExists(ctx, owner); err != nil {
		return "", err
	}

	operationID = model.EnsureOperationID(operationID)
	prev, hadPrev, err := snapshotPrevious(ctx, s.store.Configs.GetByID, c.ID)
	if err != nil {
		return "", err
	}
	ev, err := changeEvent(prev, c, hadPrev, model.ModelConfig, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Configs.Upsert(ctx, c, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("upserted config", "id", c.ID, "owner", c.OwningModel, "operationID", operationID)
	return operationID, nil
}

func (s *ConfigService) Delete(ctx context.Context, id, operationID string) (string, error) {
	prev, err := s.store.Configs.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	operationID = model.EnsureOperationID(operationID)
	ev, err := deleteEvent(prev, model.ModelConfig, operationID)
	if err != nil {
		return "", err
	}
	if err := s.store.Configs.Delete(ctx, id, ev); err != nil {
		return "", err
	}
	s.log.V(1).Info("deleted config", "id", id, "operationID", operationID)
	return operationID, nil
}

func (s *ConfigService) GetByID(ctx context.Context, id string) (*model.Config, error) {
	return s.store.Configs.GetByID(ctx, id)
}

func (s *ConfigService) List(ctx context.Context) ([]model.Config, error) {
	return s.store.Configs.List(ctx)
}

// ListByOwner returns the entries directly attached to one owner, without
// inheritance.
func (s *ConfigService) ListByOwner(ctx context.Context, owningModel string) ([]model.Config, error) {
	if _, err := model.ParseOwnerRef(owningModel); err != nil {
		return nil, errdefs.InvalidArgumentf("%v", err)
	}
	return s.store.Configs.ListByOwningModel(ctx, owningModel)
}

// ResolveForDeployment returns the effective config of a deployment: its own
// entries, then its workload's, then the workspace's, then the template's,
// with closer owners shadowing farther ones per key. The result is sorted by
// key.
func (s *ConfigService) ResolveForDeployment(ctx context.Context, deploymentID string) ([]model.Config, error) {
	d, err := s.store.Deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, err
	}
	w, err := s.store.Workloads.GetByID(ctx, d.WorkloadID)
	if err != nil {
		return nil, err
	}
	templateID := d.TemplateID
	if templateID == "" {
		templateID = w.TemplateID
	}

	owners := []model.OwnerRef{
		{Kind: model.ModelDeployment, ID: d.ID},
		{Kind: model.ModelWorkload, ID: w.ID},
		{Kind: model.ModelWorkspace, ID: w.WorkspaceID},
		{Kind: model.ModelTemplate, ID: templateID},
	}
	return s.resolve(ctx, owners)
}

// ResolveForWorkload resolves workload, workspace and template entries only.
func (s *ConfigService) ResolveForWorkload(ctx context.Context, workloadID string) ([]model.Config, error) {
	w, err := s.store.Workloads.GetByID(ctx, workloadID)
	if err != nil {
		return nil, err
	}
	owners := []model.OwnerRef{
		{Kind: model.ModelWorkload, ID: w.ID},
		{Kind: model.ModelWorkspace, ID: w.WorkspaceID},
		{Kind: model.ModelTemplate, ID: w.TemplateID},
	}
	return s.resolve(ctx, owners)
}

func (s *ConfigService) resolve(ctx context.Context, owners []model.OwnerRef) ([]model.Config, error) {
	byKey := map[string]model.Config{}
	for _, owner := range owners {
		entries, err := s.store.Configs.ListByOwningModel(ctx, owner.String())
		if err != nil {
			return nil, err
		}
		for _, c := range entries {
			if _, shadowed := byKey[c.Key]; !shadowed {
				byKey[c.Key] = c
			}
		}
	}

	out := make([]model.Config, 0, len(byKey))
	for _, c := range byKey {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *ConfigService) ownerExists(ctx context.Context, owner model.OwnerRef) error {
	var err error
	switch owner.Kind {
	case model.ModelDeployment:
		_, err = s.store.Deployments.GetByID(ctx, owner.ID)
	case model.ModelWorkload:
		_, err = s.store.Workloads.GetByID(ctx, owner.ID)
	case model.ModelTemplate:
		_, err = s.store.Templates.GetByID(ctx, owner.ID)
	case model.ModelWorkspace:
		_, err = s.store.Workspaces.GetByID(ctx, owner.ID)
	}
	return err
}
