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

// Package service implements the model services: validation, reference
// checks, cascades, and the guarantee that every mutation both persists and
// emits exactly one event per touched entity. Mutations accept an operation
// id so cascaded writes share one correlation id; an empty id mints a fresh
// one, which is returned to the caller.
package service

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/model"
	"github.com/ConfigButler/deployplane/internal/persistence"
)

// Registry bundles the model services over one store.
type Registry struct {
	Workspaces  *WorkspaceService
	Workloads   *WorkloadService
	Templates   *TemplateService
	Targets     *TargetService
	Hosts       *HostService
	Deployments *DeploymentService
	Assignments *AssignmentService
	Configs     *ConfigService
}

// NewRegistry wires the services over store.
func NewRegistry(store *persistence.Store, log logr.Logger) *Registry {
	r := &Registry{
		Workspaces:  &WorkspaceService{store: store, log: log.WithName("workspace")},
		Workloads:   &WorkloadService{store: store, log: log.WithName("workload")},
		Templates:   &TemplateService{store: store, log: log.WithName("template")},
		Targets:     &TargetService{store: store, log: log.WithName("target")},
		Hosts:       &HostService{store: store, log: log.WithName("host")},
		Deployments: &DeploymentService{store: store, log: log.WithName("deployment")},
		Assignments: &AssignmentService{store: store, log: log.WithName("assignment")},
		Configs:     &ConfigService{store: store, log: log.WithName("config")},
	}
	r.Hosts.assignments = r.Assignments
	r.Workloads.deployments = r.Deployments
	return r
}

// changeEvent builds the Created or Updated event for an upsert. prev must be
// a typed pointer or nil.
func changeEvent(prev, cur any, hadPrev bool, kind model.ModelType, operationID string) (*model.Event, error) {
	if hadPrev {
		ev, err := model.NewEvent(prev, cur, model.EventUpdated, kind, operationID)
		if err != nil {
			return nil, errdefs.Internalf("%v", err)
		}
		return ev, nil
	}
	ev, err := model.NewEvent(nil, cur, model.EventCreated, kind, operationID)
	if err != nil {
		return nil, errdefs.Internalf("%v", err)
	}
	return ev, nil
}

// deleteEvent builds the Deleted event carrying the previous snapshot.
func deleteEvent(prev any, kind model.ModelType, operationID string) (*model.Event, error) {
	ev, err := model.NewEvent(prev, nil, model.EventDeleted, kind, operationID)
	if err != nil {
		return nil, errdefs.Internalf("%v", err)
	}
	return ev, nil
}

// snapshotPrevious loads the current row for update events. A missing row is
// not an error: it means the upsert is a create.
func snapshotPrevious[T any](ctx context.Context, get func(context.Context, string) (*T, error), id string) (*T, bool, error) {
	prev, err := get(ctx, id)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return prev, true, nil
}
