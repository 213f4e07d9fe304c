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

package api

import "github.com/ConfigButler/deployplane/internal/model"

// Request and response shapes shared by every model service. Mutations carry
// an optional operation id; the response echoes the effective one.

type IDRequest struct {
	ID          string `json:"id"`
	OperationID string `json:"operationId,omitempty"`
}

type OperationResponse struct {
	OperationID string `json:"operationId"`
}

type ListRequest struct{}

type ByIDRequest struct {
	ID string `json:"id"`
}

type UpsertWorkspaceRequest struct {
	Workspace   *model.Workspace `json:"workspace"`
	OperationID string           `json:"operationId,omitempty"`
}

type WorkspaceList struct {
	Items []model.Workspace `json:"items"`
}

type UpsertWorkloadRequest struct {
	Workload    *model.Workload `json:"workload"`
	OperationID string          `json:"operationId,omitempty"`
}

type WorkloadList struct {
	Items []model.Workload `json:"items"`
}

type UpsertTemplateRequest struct {
	Template    *model.Template `json:"template"`
	OperationID string          `json:"operationId,omitempty"`
}

type TemplateList struct {
	Items []model.Template `json:"items"`
}

type UpsertTargetRequest struct {
	Target      *model.Target `json:"target"`
	OperationID string        `json:"operationId,omitempty"`
}

type TargetList struct {
	Items []model.Target `json:"items"`
}

type UpsertHostRequest struct {
	Host        *model.Host `json:"host"`
	OperationID string      `json:"operationId,omitempty"`
}

type HostList struct {
	Items []model.Host `json:"items"`
}

type UpsertDeploymentRequest struct {
	Deployment  *model.Deployment `json:"deployment"`
	OperationID string            `json:"operationId,omitempty"`
}

type DeploymentList struct {
	Items []model.Deployment `json:"items"`
}

type AssignmentList struct {
	Items []model.Assignment `json:"items"`
}

type UpsertConfigRequest struct {
	Config      *model.Config `json:"config"`
	OperationID string        `json:"operationId,omitempty"`
}

type ConfigList struct {
	Items []model.Config `json:"items"`
}

type ByOwnerRequest struct {
	OwningModel string `json:"owningModel"`
}
