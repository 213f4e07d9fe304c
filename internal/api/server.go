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

	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/model"
	"github.com/ConfigButler/deployplane/internal/service"
)

// Service names on the wire.
const (
	WorkspacesService  = "deployplane.v1.Workspaces"
	WorkloadsService   = "deployplane.v1.Workloads"
	TemplatesService   = "deployplane.v1.Templates"
	TargetsService     = "deployplane.v1.Targets"
	HostsService       = "deployplane.v1.Hosts"
	DeploymentsService = "deployplane.v1.Deployments"
	AssignmentsService = "deployplane.v1.Assignments"
	ConfigsService     = "deployplane.v1.Configs"
)

// Server adapts the model services onto gRPC.
type Server struct {
	services *service.Registry
}

// NewServer builds the gRPC surface over services.
func NewServer(services *service.Registry) *Server {
	return &Server{services: services}
}

// Register installs every model service on g.
func (s *Server) Register(g *grpc.Server) {
	for _, desc := range []*grpc.ServiceDesc{
		s.workspacesDesc(), s.workloadsDesc(), s.templatesDesc(), s.targetsDesc(),
		s.hostsDesc(), s.deploymentsDesc(), s.assignmentsDesc(), s.configsDesc(),
	} {
		g.RegisterService(desc, s)
	}
}

// unary wraps a typed handler into a grpc.MethodDesc, translating the shared
// error kinds onto status codes at the boundary.
func unary[Req, Res any](serviceName, methodName string, fn func(context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: methodName,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			call := func(ctx context.Context, req any) (any, error) {
				res, err := fn(ctx, req.(*Req))
				if err != nil {
					return nil, errdefs.ToStatus(err)
				}
				return res, nil
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + methodName}
			return interceptor(ctx, in, info, call)
		},
	}
}

func serviceDesc(name string, methods ...grpc.MethodDesc) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: name,
		HandlerType: (*any)(nil),
		Methods:     methods,
		Metadata:    "deployplane",
	}
}

func (s *Server) workspacesDesc() *grpc.ServiceDesc {
	return serviceDesc(WorkspacesService,
		unary(WorkspacesService, "Upsert", func(ctx context.Context, req *UpsertWorkspaceRequest) (*OperationResponse, error) {
			opID, err := s.services.Workspaces.Upsert(ctx, req.Workspace, req.OperationID)
			return &OperationResponse{OperationID: opID}, err
		}),
		unary(WorkspacesService, "Delete", func(ctx context.Context, req *IDRequest) (*OperationResponse, error) {
			opID, err := s.services.Workspaces.Delete(ctx, req.ID, req.OperationID)
			return &OperationResponse{OperationID: opID}, err
		}),
		unary(WorkspacesService, "Get", func(ctx context.Context, req *ByIDRequest) (*model.Workspace, error) {
			return s.services.Workspaces.GetByID(ctx, req.ID)
		}),
		unary(WorkspacesService, "List", func(ctx context.Context, _ *ListRequest) (*WorkspaceList, error) {
			items, err := s.services.Workspaces.List(ctx)
			return &WorkspaceList{Items: items}, err
		}),
	)
}

func (s *Server) workloadsDesc() *grpc.ServiceDesc {
	return serviceDesc(WorkloadsService,
		unary(WorkloadsService, "Upsert", func(ctx context.Context, req *UpsertWorkloadRequest) (*OperationResponse, error) {
			opID, err := s.services.Workloads.Upsert(ctx, req.Workload, req.OperationID)
			return &OperationResponse{OperationID: opID}, err
		}),
		unary(WorkloadsService, "Delete", func(ctx context.Context, req *IDRequest) (*OperationResponse, error) {
			opID, err := s.services.Workloads.Delete(ctx, req.ID, req.OperationID)
			return &OperationResponse{OperationID: opID}, err
		}),
		unary(WorkloadsService, "Get", func(ctx context.Context, req *ByIDRequest) (*model.Workload, error) {
			return s.services.Workloads.GetByID(ctx, req.ID)
		}),
		unary(WorkloadsService, "List", func(ctx context.Context, _ *ListRequest) (*WorkloadList, error) {
			items, err := s.services.Workloads.List(ctx)
			return &WorkloadList{Items: items}, err
		}),
		unary(WorkloadsService, "ListByWorkspace", func(ctx context.Context, req *ByIDRequest) (*WorkloadList, error) {
			items, err := s.services.Workloads.ListByWorkspace(ctx, req.ID)
			return &WorkloadList{Items: items}, err
		}),
	)
}

func (s *Server) templatesDesc() *grpc.ServiceDesc {
	return serviceDesc(TemplatesService,
		unary(TemplatesService, "Upsert", func(ctx context.Context, req *UpsertTemplateRequest) (*OperationResponse, error) {
			opID, err := s.services.Templates.Upsert(ctx, req.Template, req.OperationID)
			return &OperationResponse{OperationID: opID}, err
		}),
		unary(TemplatesService, "Delete", func(ctx context.Context, req *IDRequest) (*OperationResponse, error) {
			opID, err := s.services.Templates.Delete(ctx, req.ID, req.OperationID)
			return &OperationResponse{OperationID: opID}, err
		}),
		unary(TemplatesService, "Get", func(ctx context.Context, req *ByIDRequest) (*model.Template, error) {
			return s.services.Templates.GetByID(ctx, req.ID)
		}),
		unary(TemplatesService, "List", func(ctx context.Context, _ *ListRequest) (*TemplateList, error) {
			items, err := s.services.Templates.List(ctx)
			return &TemplateList{Items: items}, err
		}),
	)
}

func (s *Server) targetsDesc() *grpc.ServiceDesc {
	return serviceDesc(TargetsService,
		unary(TargetsService, "Upsert", func(ctx context.Context, req *UpsertTargetRequest) (*OperationResponse, error) {
			opID, err := s.services.Targets.Upsert(ctx, req.Target, req.OperationID)
			return &OperationResponse{OperationID: opID}, err
		}),
		unary(TargetsService, "Delete", func(ctx context.Context, req *IDRequest) (*OperationResponse, error) {
			opID, err := s.services.Targets.Delete(ctx, req.ID, req.OperationID)
			return &OperationResponse{OperationID: opID}, err
		}),
		unary(TargetsService, "Get", func(ctx context.Context, req *ByIDRequest) (*model.Target, error) {
			return s.services.Targets.GetByID(ctx, req.ID)
		}),
		unary(TargetsService, "List", func(ctx context.Context, _ *ListRequest) (*TargetList, error) {
			items, err := s.services.Targets.List(ctx)
			return &TargetList{Items: items}, err
		}),
	)
}

func (s *Server) hostsDesc() *grpc.ServiceDesc {
	return serviceDesc(HostsService,
		unary(HostsService, "Upsert", func(ctx context.Context, req *UpsertHostRequest) (*OperationResponse, error) {
			opID, err := s.services.Hosts.Upsert(ctx, req.Host, req.OperationID)
			return &OperationResponse{OperationID: opID}, err
		}),
		unary(HostsService, "Delete", func(ctx context.Context, req *IDRequest) (*OperationResponse, error) {
			opID, err := s.services.Hosts.Delete(ctx, req.ID, req.OperationID)
			return &OperationResponse{OperationID: opID}, err
		}),
		unary(HostsService, "Get", func(ctx context.Context, req *ByIDRequest) (*model.Host, error) {
			return s.services.Hosts.GetByID(ctx, req.ID)
		}),
		unary(HostsService, "List", func(ctx context.Context, _ *ListRequest) (*HostList, error) {
			items, err := s.services.Hosts.List(ctx)
			return &HostList{Items: items}, err
		}),
	)
}

func (s *Server) deploymentsDesc() *grpc.ServiceDesc {
	return serviceDesc(DeploymentsService,
		unary(DeploymentsService, "Upsert", func(ctx context.Context, req *UpsertDeploymentRequest) (*OperationResponse, error) {
			opID, err := s.services.Deployments.Upsert(ctx, req.Deployment, req.OperationID)
			return &OperationResponse{OperationID: opID}, err
		}),
		unary(DeploymentsService, "Delete", func(ctx context.Context, req *IDRequest) (*OperationResponse, error) {
			opID, err := s.services.Deployments.Delete(ctx, req.ID, req.OperationID)
			return &OperationResponse{OperationID: opID}, err
		}),
		unary(DeploymentsService, "Get", func(ctx context.Context, req *ByIDRequest) (*model.Deployment, error) {
			return s.services.Deployments.GetByID(ctx, req.ID)
		}),
		unary(DeploymentsService, "List", func(ctx context.Context, _ *ListRequest) (*DeploymentList, error) {
			items, err := s.services.Deployments.List(ctx)
			return &DeploymentList{Items: items}, err
		}),
		unary(DeploymentsService, "ListByTarget", func(ctx context.Context, req *ByIDRequest) (*DeploymentList, error) {
			items, err := s.services.Deployments.ListByTarget(ctx, req.ID)
			return &DeploymentList{Items: items}, err
		}),
		unary(DeploymentsService, "ListByWorkload", func(ctx context.Context, req *ByIDRequest) (*DeploymentList, error) {
			items, err := s.services.Deployments.ListByWorkload(ctx, req.ID)
			return &DeploymentList{Items: items}, err
		}),
	)
}

// assignmentsDesc is read-only: placements belong to the reconciler.
func (s *Server) assignmentsDesc() *grpc.ServiceDesc {
	return serviceDesc(AssignmentsService,
		unary(AssignmentsService, "Get", func(ctx context.Context, req *ByIDRequest) (*model.Assignment, error) {
			return s.services.Assignments.GetByID(ctx, req.ID)
		}),
		unary(AssignmentsService, "List", func(ctx context.Context, _ *ListRequest) (*AssignmentList, error) {
			items, err := s.services.Assignments.List(ctx)
			return &AssignmentList{Items: items}, err
		}),
		unary(AssignmentsService, "ListByDeployment", func(ctx context.Context, req *ByIDRequest) (*AssignmentList, error) {
			items, err := s.services.Assignments.ListByDeployment(ctx, req.ID)
			return &AssignmentList{Items: items}, err
		}),
		unary(AssignmentsService, "ListByHost", func(ctx context.Context, req *ByIDRequest) (*AssignmentList, error) {
			items, err := s.services.Assignments.ListByHost(ctx, req.ID)
			return &AssignmentList{Items: items}, err
		}),
	)
}

func (s *Server) configsDesc() *grpc.ServiceDesc {
	return serviceDesc(ConfigsService,
		unary(ConfigsService, "Upsert", func(ctx context.Context, req *UpsertConfigRequest) (*OperationResponse, error) {
			opID, err := s.services.Configs.Upsert(ctx, req.Config, req.OperationID)
			return &OperationResponse{OperationID: opID}, err
		}),
		unary(ConfigsService, "Delete", func(ctx context.Context, req *IDRequest) (*OperationResponse, error) {
			opID, err := s.services.Configs.Delete(ctx, req.ID, req.OperationID)
			return &OperationResponse{OperationID: opID}, err
		}),
		unary(ConfigsService, "Get", func(ctx context.Context, req *ByIDRequest) (*model.Config, error) {
			return s.services.Configs.GetByID(ctx, req.ID)
		}),
		unary(ConfigsService, "List", func(ctx context.Context, _ *ListRequest) (*ConfigList, error) {
			items, err := s.services.Configs.List(ctx)
			return &ConfigList{Items: items}, err
		}),
		unary(ConfigsService, "ListByOwner", func(ctx context.Context, req *ByOwnerRequest) (*ConfigList, error) {
			items, err := s.services.Configs.ListByOwner(ctx, req.OwningModel)
			return &ConfigList{Items: items}, err
		}),
		unary(ConfigsService, "ResolveForDeployment", func(ctx context.Context, req *ByIDRequest) (*ConfigList, error) {
			items, err := s.services.Configs.ResolveForDeployment(ctx, req.ID)
			return &ConfigList{Items: items}, err
		}),
		unary(ConfigsService, "ResolveForWorkload", func(ctx context.Context, req *ByIDRequest) (*ConfigList, error) {
			items, err := s.services.Configs.ResolveForWorkload(ctx, req.ID)
			return &ConfigList{Items: items}, err
		}),
	)
}
