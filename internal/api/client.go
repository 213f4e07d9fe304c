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

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/model"
)

// Client is the typed gRPC client of the control plane API. Status codes
// coming back over the wire are translated into the shared error kinds, so
// callers use the errdefs predicates as if the services were local.
type Client struct {
	conn *grpc.ClientConn

	Workspaces  WorkspacesClient
	Workloads   WorkloadsClient
	Templates   TemplatesClient
	Targets     TargetsClient
	Hosts       HostsClient
	Deployments DeploymentsClient
	Assignments AssignmentsClient
	Configs     ConfigsClient
}

// Dial connects to endpoint. A non-empty token is attached to every call.
func Dial(endpoint, token string) (*Client, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
	if token != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(clientAuthInterceptor(token)))
	}
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, errdefs.Unavailablef("failed to connect to %s: %v", endpoint, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{
		conn:        conn,
		Workspaces:  WorkspacesClient{conn},
		Workloads:   WorkloadsClient{conn},
		Templates:   TemplatesClient{conn},
		Targets:     TargetsClient{conn},
		Hosts:       HostsClient{conn},
		Deployments: DeploymentsClient{conn},
		Assignments: AssignmentsClient{conn},
		Configs:     ConfigsClient{conn},
	}
}

// Close tears the connection down.
func (c *Client) Close() error { return c.conn.Close() }

func invoke[Res any](ctx context.Context, conn *grpc.ClientConn, service, method string, req any) (*Res, error) {
	res := new(Res)
	if err := conn.Invoke(ctx, "/"+service+"/"+method, req, res, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, errdefs.FromStatus(err)
	}
	return res, nil
}

type WorkspacesClient struct{ conn *grpc.ClientConn }

func (c WorkspacesClient) Upsert(ctx context.Context, ws *model.Workspace, operationID string) (*OperationResponse, error) {
	return invoke[OperationResponse](ctx, c.conn, WorkspacesService, "Upsert", &UpsertWorkspaceRequest{Workspace: ws, OperationID: operationID})
}

func (c WorkspacesClient) Delete(ctx context.Context, id, operationID string) (*OperationResponse, error) {
	return invoke[OperationResponse](ctx, c.conn, WorkspacesService, "Delete", &IDRequest{ID: id, OperationID: operationID})
}

func (c WorkspacesClient) Get(ctx context.Context, id string) (*model.Workspace, error) {
	return invoke[model.Workspace](ctx, c.conn, WorkspacesService, "Get", &ByIDRequest{ID: id})
}

func (c WorkspacesClient) List(ctx context.Context) ([]model.Workspace, error) {
	res, err := invoke[WorkspaceList](ctx, c.conn, WorkspacesService, "List", &ListRequest{})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

type WorkloadsClient struct{ conn *grpc.ClientConn }

func (c WorkloadsClient) Upsert(ctx context.Context, w *model.Workload, operationID string) (*OperationResponse, error) {
	return invoke[OperationResponse](ctx, c.conn, WorkloadsService, "Upsert", &UpsertWorkloadRequest{Workload: w, OperationID: operationID})
}

func (c WorkloadsClient) Delete(ctx context.Context, id, operationID string) (*OperationResponse, error) {
	return invoke[OperationResponse](ctx, c.conn, WorkloadsService, "Delete", &IDRequest{ID: id, OperationID: operationID})
}

func (c WorkloadsClient) Get(ctx context.Context, id string) (*model.Workload, error) {
	return invoke[model.Workload](ctx, c.conn, WorkloadsService, "Get", &ByIDRequest{ID: id})
}

func (c WorkloadsClient) List(ctx context.Context) ([]model.Workload, error) {
	res, err := invoke[WorkloadList](ctx, c.conn, WorkloadsService, "List", &ListRequest{})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c WorkloadsClient) ListByWorkspace(ctx context.Context, workspaceID string) ([]model.Workload, error) {
	res, err := invoke[WorkloadList](ctx, c.conn, WorkloadsService, "ListByWorkspace", &ByIDRequest{ID: workspaceID})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

type TemplatesClient struct{ conn *grpc.ClientConn }

func (c TemplatesClient) Upsert(ctx context.Context, t *model.Template, operationID string) (*OperationResponse, error) {
	return invoke[OperationResponse](ctx, c.conn, TemplatesService, "Upsert", &UpsertTemplateRequest{Template: t, OperationID: operationID})
}

func (c TemplatesClient) Delete(ctx context.Context, id, operationID string) (*OperationResponse, error) {
	return invoke[OperationResponse](ctx, c.conn, TemplatesService, "Delete", &IDRequest{ID: id, OperationID: operationID})
}

func (c TemplatesClient) Get(ctx context.Context, id string) (*model.Template, error) {
	return invoke[model.Template](ctx, c.conn, TemplatesService, "Get", &ByIDRequest{ID: id})
}

func (c TemplatesClient) List(ctx context.Context) ([]model.Template, error) {
	res, err := invoke[TemplateList](ctx, c.conn, TemplatesService, "List", &ListRequest{})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

type TargetsClient struct{ conn *grpc.ClientConn }

func (c TargetsClient) Upsert(ctx context.Context, t *model.Target, operationID string) (*OperationResponse, error) {
	return invoke[OperationResponse](ctx, c.conn, TargetsService, "Upsert", &UpsertTargetRequest{Target: t, OperationID: operationID})
}

func (c TargetsClient) Delete(ctx context.Context, id, operationID string) (*OperationResponse, error) {
	return invoke[OperationResponse](ctx, c.conn, TargetsService, "Delete", &IDRequest{ID: id, OperationID: operationID})
}

func (c TargetsClient) Get(ctx context.Context, id string) (*model.Target, error) {
	return invoke[model.Target](ctx, c.conn, TargetsService, "Get", &ByIDRequest{ID: id})
}

func (c TargetsClient) List(ctx context.Context) ([]model.Target, error) {
	res, err := invoke[TargetList](ctx, c.conn, TargetsService, "List", &ListRequest{})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

type HostsClient struct{ conn *grpc.ClientConn }

func (c HostsClient) Upsert(ctx context.Context, h *model.Host, operationID string) (*OperationResponse, error) {
	return invoke[OperationResponse](ctx, c.conn, HostsService, "Upsert", &UpsertHostRequest{Host: h, OperationID: operationID})
}

func (c HostsClient) Delete(ctx context.Context, id, operationID string) (*OperationResponse, error) {
	return invoke[OperationResponse](ctx, c.conn, HostsService, "Delete", &IDRequest{ID: id, OperationID: operationID})
}

func (c HostsClient) Get(ctx context.Context, id string) (*model.Host, error) {
	return invoke[model.Host](ctx, c.conn, HostsService, "Get", &ByIDRequest{ID: id})
}

func (c HostsClient) List(ctx context.Context) ([]model.Host, error) {
	res, err := invoke[HostList](ctx, c.conn, HostsService, "List", &ListRequest{})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

type DeploymentsClient struct{ conn *grpc.ClientConn }

func (c DeploymentsClient) Upsert(ctx context.Context, d *model.Deployment, operationID string) (*OperationResponse, error) {
	return invoke[OperationResponse](ctx, c.conn, DeploymentsService, "Upsert", &UpsertDeploymentRequest{Deployment: d, OperationID: operationID})
}

func (c DeploymentsClient) Delete(ctx context.Context, id, operationID string) (*OperationResponse, error) {
	return invoke[OperationResponse](ctx, c.conn, DeploymentsService, "Delete", &IDRequest{ID: id, OperationID: operationID})
}

func (c DeploymentsClient) Get(ctx context.Context, id string) (*model.Deployment, error) {
	return invoke[model.Deployment](ctx, c.conn, DeploymentsService, "Get", &ByIDRequest{ID: id})
}

func (c DeploymentsClient) List(ctx context.Context) ([]model.Deployment, error) {
	res, err := invoke[DeploymentList](ctx, c.conn, DeploymentsService, "List", &ListRequest{})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c DeploymentsClient) ListByTarget(ctx context.Context, targetID string) ([]model.Deployment, error) {
	res, err := invoke[DeploymentList](ctx, c.conn, DeploymentsService, "ListByTarget", &ByIDRequest{ID: targetID})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c DeploymentsClient) ListByWorkload(ctx context.Context, workloadID string) ([]model.Deployment, error) {
	res, err := invoke[DeploymentList](ctx, c.conn, DeploymentsService, "ListByWorkload", &ByIDRequest{ID: workloadID})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

type AssignmentsClient struct{ conn *grpc.ClientConn }

func (c AssignmentsClient) Get(ctx context.Context, id string) (*model.Assignment, error) {
	return invoke[model.Assignment](ctx, c.conn, AssignmentsService, "Get", &ByIDRequest{ID: id})
}

func (c AssignmentsClient) List(ctx context.Context) ([]model.Assignment, error) {
	res, err := invoke[AssignmentList](ctx, c.conn, AssignmentsService, "List", &ListRequest{})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c AssignmentsClient) ListByDeployment(ctx context.Context, deploymentID string) ([]model.Assignment, error) {
	res, err := invoke[AssignmentList](ctx, c.conn, AssignmentsService, "ListByDeployment", &ByIDRequest{ID: deploymentID})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c AssignmentsClient) ListByHost(ctx context.Context, hostID string) ([]model.Assignment, error) {
	res, err := invoke[AssignmentList](ctx, c.conn, AssignmentsService, "ListByHost", &ByIDRequest{ID: hostID})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

type ConfigsClient struct{ conn *grpc.ClientConn }

func (c ConfigsClient) Upsert(ctx context.Context, cfg *model.Config, operationID string) (*OperationResponse, error) {
	return invoke[OperationResponse](ctx, c.conn, ConfigsService, "Upsert", &UpsertConfigRequest{Config: cfg, OperationID: operationID})
}

func (c ConfigsClient) Delete(ctx context.Context, id, operationID string) (*OperationResponse, error) {
	return invoke[OperationResponse](ctx, c.conn, ConfigsService, "Delete", &IDRequest{ID: id, OperationID: operationID})
}

func (c ConfigsClient) Get(ctx context.Context, id string) (*model.Config, error) {
	return invoke[model.Config](ctx, c.conn, ConfigsService, "Get", &ByIDRequest{ID: id})
}

func (c ConfigsClient) List(ctx context.Context) ([]model.Config, error) {
	res, err := invoke[ConfigList](ctx, c.conn, ConfigsService, "List", &ListRequest{})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c ConfigsClient) ListByOwner(ctx context.Context, owningModel string) ([]model.Config, error) {
	res, err := invoke[ConfigList](ctx, c.conn, ConfigsService, "ListByOwner", &ByOwnerRequest{OwningModel: owningModel})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c ConfigsClient) ResolveForDeployment(ctx context.Context, deploymentID string) ([]model.Config, error) {
	res, err := invoke[ConfigList](ctx, c.conn, ConfigsService, "ResolveForDeployment", &ByIDRequest{ID: deploymentID})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c ConfigsClient) ResolveForWorkload(ctx context.Context, workloadID string) ([]model.Config, error) {
	res, err := invoke[ConfigList](ctx, c.conn, ConfigsService, "ResolveForWorkload", &ByIDRequest{ID: workloadID})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}
