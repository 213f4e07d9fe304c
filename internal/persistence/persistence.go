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

// Package persistence defines the storage contracts of the control plane.
// Every mutating method takes the event that describes it: implementations
// must make the entity write and the event append land together, so a crash
// can never persist a change without also announcing it.
package persistence

import (
	"context"

	"github.com/ConfigButler/deployplane/internal/model"
)

// WorkspaceRepository stores workspaces.
type WorkspaceRepository interface {
	Upsert(ctx context.Context, ws *model.Workspace, ev *model.Event) error
	Delete(ctx context.Context, id string, ev *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Workspace, error)
	List(ctx context.Context) ([]model.Workspace, error)
}

// WorkloadRepository stores workloads.
type WorkloadRepository interface {
	Upsert(ctx context.Context, w *model.Workload, ev *model.Event) error
	Delete(ctx context.Context, id string, ev *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Workload, error)
	List(ctx context.Context) ([]model.Workload, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]model.Workload, error)
	ListByTemplate(ctx context.Context, templateID string) ([]model.Workload, error)
}

// TemplateRepository stores templates.
type TemplateRepository interface {
	Upsert(ctx context.Context, t *model.Template, ev *model.Event) error
	Delete(ctx context.Context, id string, ev *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Template, error)
	List(ctx context.Context) ([]model.Template, error)
}

// TargetRepository stores targets.
type TargetRepository interface {
	Upsert(ctx context.Context, t *model.Target, ev *model.Event) error
	Delete(ctx context.Context, id string, ev *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Target, error)
	List(ctx context.Context) ([]model.Target, error)
}

// HostRepository stores hosts.
type HostRepository interface {
	Upsert(ctx context.Context, h *model.Host, ev *model.Event) error
	Delete(ctx context.Context, id string, ev *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Host, error)
	List(ctx context.Context) ([]model.Host, error)
	// ListMatchingLabels returns the hosts whose label set contains every
	// label in want. An empty want matches every host.
	ListMatchingLabels(ctx context.Context, want []string) ([]model.Host, error)
}

// DeploymentRepository stores deployments.
type DeploymentRepository interface {
	Upsert(ctx context.Context, d *model.Deployment, ev *model.Event) error
	Delete(ctx context.Context, id string, ev *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Deployment, error)
	List(ctx context.Context) ([]model.Deployment, error)
	ListByTarget(ctx context.Context, targetID string) ([]model.Deployment, error)
	ListByWorkload(ctx context.Context, workloadID string) ([]model.Deployment, error)
	ListByTemplate(ctx context.Context, templateID string) ([]model.Deployment, error)
}

// AssignmentRepository stores assignments. Only the reconciler mutates them.
type AssignmentRepository interface {
	Upsert(ctx context.Context, a *model.Assignment, ev *model.Event) error
	Delete(ctx context.Context, id string, ev *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Assignment, error)
	List(ctx context.Context) ([]model.Assignment, error)
	ListByDeployment(ctx context.Context, deploymentID string) ([]model.Assignment, error)
	ListByHost(ctx context.Context, hostID string) ([]model.Assignment, error)
}

// ConfigRepository stores config entries.
type ConfigRepository interface {
	Upsert(ctx context.Context, c *model.Config, ev *model.Event) error
	Delete(ctx context.Context, id string, ev *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Config, error)
	List(ctx context.Context) ([]model.Config, error)
	ListByOwningModel(ctx context.Context, owningModel string) ([]model.Config, error)
}

// Store bundles the repositories over one backing implementation.
type Store struct {
	Workspaces  WorkspaceRepository
	Workloads   WorkloadRepository
	Templates   TemplateRepository
	Targets     TargetRepository
	Hosts       HostRepository
	Deployments DeploymentRepository
	Assignments AssignmentRepository
	Configs     ConfigRepository
}
