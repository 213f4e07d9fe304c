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

// dpctl is the operator CLI of the control plane. It speaks the same gRPC
// API the services serve and prints results as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ConfigButler/deployplane/internal/api"
	"github.com/ConfigButler/deployplane/internal/config"
	"github.com/ConfigButler/deployplane/internal/model"
)

var (
	flagEndpoint string
	flagToken    string
	flagFile     string
)

func main() {
	cfg := config.Load()

	root := &cobra.Command{
		Use:           "dpctl",
		Short:         "Control the deployplane API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagEndpoint, "endpoint", cfg.APIEndpoint, "API endpoint")
	root.PersistentFlags().StringVar(&flagToken, "token", cfg.APIToken, "API bearer token")

	root.AddCommand(
		workspaceCmd(), templateCmd(), workloadCmd(), targetCmd(),
		hostCmd(), deploymentCmd(), assignmentCmd(), configCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func dial() (*api.Client, error) {
	return api.Dial(flagEndpoint, flagToken)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readSpec decodes the JSON document named by --file, with "-" for stdin.
func readSpec(v any) error {
	var raw []byte
	var err error
	if flagFile == "" || flagFile == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(flagFile)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func withFileFlag(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().StringVarP(&flagFile, "file", "f", "-", "JSON document to apply ('-' for stdin)")
	return cmd
}

// crudCommands builds the list/get/delete trio every entity shares.
func crudCommands[T any](
	use string,
	list func(ctx context.Context, c *api.Client) ([]T, error),
	get func(ctx context.Context, c *api.Client, id string) (*T, error),
	del func(ctx context.Context, c *api.Client, id string) (*api.OperationResponse, error),
) []*cobra.Command {
	cmds := []*cobra.Command{
		{
			Use:   "list",
			Short: "List all " + use + "s",
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := dial()
				if err != nil {
					return err
				}
				defer c.Close()
				items, err := list(cmd.Context(), c)
				if err != nil {
					return err
				}
				return printJSON(items)
			},
		},
		{
			Use:   "get <id>",
			Short: "Show one " + use,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := dial()
				if err != nil {
					return err
				}
				defer c.Close()
				item, err := get(cmd.Context(), c, args[0])
				if err != nil {
					return err
				}
				return printJSON(item)
			},
		},
	}
	if del != nil {
		cmds = append(cmds, &cobra.Command{
			Use:   "delete <id>",
			Short: "Delete one " + use,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := dial()
				if err != nil {
					return err
				}
				defer c.Close()
				res, err := del(cmd.Context(), c, args[0])
				if err != nil {
					return err
				}
				return printJSON(res)
			},
		})
	}
	return cmds
}

func upsertCommand[T any](use string, upsert func(ctx context.Context, c *api.Client, spec *T) (*api.OperationResponse, error)) *cobra.Command {
	return withFileFlag(&cobra.Command{
		Use:   "apply",
		Short: "Create or update a " + use + " from JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec := new(T)
			if err := readSpec(spec); err != nil {
				return err
			}
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			res, err := upsert(cmd.Context(), c, spec)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	})
}

func workspaceCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "workspace", Short: "Manage workspaces"}
	cmd.AddCommand(crudCommands("workspace",
		func(ctx context.Context, c *api.Client) ([]model.Workspace, error) { return c.Workspaces.List(ctx) },
		func(ctx context.Context, c *api.Client, id string) (*model.Workspace, error) {
			return c.Workspaces.Get(ctx, id)
		},
		func(ctx context.Context, c *api.Client, id string) (*api.OperationResponse, error) {
			return c.Workspaces.Delete(ctx, id, "")
		},
	)...)
	cmd.AddCommand(upsertCommand("workspace",
		func(ctx context.Context, c *api.Client, spec *model.Workspace) (*api.OperationResponse, error) {
			return c.Workspaces.Upsert(ctx, spec, "")
		}))
	return cmd
}

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "template", Short: "Manage templates"}
	cmd.AddCommand(crudCommands("template",
		func(ctx context.Context, c *api.Client) ([]model.Template, error) { return c.Templates.List(ctx) },
		func(ctx context.Context, c *api.Client, id string) (*model.Template, error) {
			return c.Templates.Get(ctx, id)
		},
		func(ctx context.Context, c *api.Client, id string) (*api.OperationResponse, error) {
			return c.Templates.Delete(ctx, id, "")
		},
	)...)
	cmd.AddCommand(upsertCommand("template",
		func(ctx context.Context, c *api.Client, spec *model.Template) (*api.OperationResponse, error) {
			return c.Templates.Upsert(ctx, spec, "")
		}))
	return cmd
}

func workloadCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "workload", Short: "Manage workloads"}
	cmd.AddCommand(crudCommands("workload",
		func(ctx context.Context, c *api.Client) ([]model.Workload, error) { return c.Workloads.List(ctx) },
		func(ctx context.Context, c *api.Client, id string) (*model.Workload, error) {
			return c.Workloads.Get(ctx, id)
		},
		func(ctx context.Context, c *api.Client, id string) (*api.OperationResponse, error) {
			return c.Workloads.Delete(ctx, id, "")
		},
	)...)
	cmd.AddCommand(upsertCommand("workload",
		func(ctx context.Context, c *api.Client, spec *model.Workload) (*api.OperationResponse, error) {
			return c.Workloads.Upsert(ctx, spec, "")
		}))
	return cmd
}

func targetCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "target", Short: "Manage targets"}
	cmd.AddCommand(crudCommands("target",
		func(ctx context.Context, c *api.Client) ([]model.Target, error) { return c.Targets.List(ctx) },
		func(ctx context.Context, c *api.Client, id string) (*model.Target, error) {
			return c.Targets.Get(ctx, id)
		},
		func(ctx context.Context, c *api.Client, id string) (*api.OperationResponse, error) {
			return c.Targets.Delete(ctx, id, "")
		},
	)...)
	cmd.AddCommand(upsertCommand("target",
		func(ctx context.Context, c *api.Client, spec *model.Target) (*api.OperationResponse, error) {
			return c.Targets.Upsert(ctx, spec, "")
		}))
	return cmd
}

func hostCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "host", Short: "Manage hosts"}
	cmd.AddCommand(crudCommands("host",
		func(ctx context.Context, c *api.Client) ([]model.Host, error) { return c.Hosts.List(ctx) },
		func(ctx context.Context, c *api.Client, id string) (*model.Host, error) { return c.Hosts.Get(ctx, id) },
		func(ctx context.Context, c *api.Client, id string) (*api.OperationResponse, error) {
			return c.Hosts.Delete(ctx, id, "")
		},
	)...)
	cmd.AddCommand(upsertCommand("host",
		func(ctx context.Context, c *api.Client, spec *model.Host) (*api.OperationResponse, error) {
			return c.Hosts.Upsert(ctx, spec, "")
		}))
	return cmd
}

func deploymentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "deployment", Short: "Manage deployments"}
	cmd.AddCommand(crudCommands("deployment",
		func(ctx context.Context, c *api.Client) ([]model.Deployment, error) { return c.Deployments.List(ctx) },
		func(ctx context.Context, c *api.Client, id string) (*model.Deployment, error) {
			return c.Deployments.Get(ctx, id)
		},
		func(ctx context.Context, c *api.Client, id string) (*api.OperationResponse, error) {
			return c.Deployments.Delete(ctx, id, "")
		},
	)...)
	cmd.AddCommand(upsertCommand("deployment",
		func(ctx context.Context, c *api.Client, spec *model.Deployment) (*api.OperationResponse, error) {
			return c.Deployments.Upsert(ctx, spec, "")
		}))
	return cmd
}

func assignmentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "assignment", Short: "Inspect placements"}
	cmd.AddCommand(crudCommands("assignment",
		func(ctx context.Context, c *api.Client) ([]model.Assignment, error) { return c.Assignments.List(ctx) },
		func(ctx context.Context, c *api.Client, id string) (*model.Assignment, error) {
			return c.Assignments.Get(ctx, id)
		},
		nil,
	)...)
	cmd.AddCommand(&cobra.Command{
		Use:   "by-deployment <deployment-id>",
		Short: "List placements of one deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			items, err := c.Assignments.ListByDeployment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(items)
		},
	})
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage config entries"}
	cmd.AddCommand(crudCommands("config",
		func(ctx context.Context, c *api.Client) ([]model.Config, error) { return c.Configs.List(ctx) },
		func(ctx context.Context, c *api.Client, id string) (*model.Config, error) {
			return c.Configs.Get(ctx, id)
		},
		func(ctx context.Context, c *api.Client, id string) (*api.OperationResponse, error) {
			return c.Configs.Delete(ctx, id, "")
		},
	)...)
	cmd.AddCommand(upsertCommand("config",
		func(ctx context.Context, c *api.Client, spec *model.Config) (*api.OperationResponse, error) {
			return c.Configs.Upsert(ctx, spec, "")
		}))
	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <deployment-id>",
		Short: "Show the effective config of a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			items, err := c.Configs.ResolveForDeployment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(items)
		},
	})
	return cmd
}
