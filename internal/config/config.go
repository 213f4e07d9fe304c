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

// Package config reads the process configuration from the environment.
package config

import (
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/ConfigButler/deployplane/internal/errdefs"
)

// Config is the shared configuration of the deployplane binaries. Each binary
// uses the subset it needs.
type Config struct {
	DatabaseURL string

	GitOpsRepoURL    string
	GitOpsBranch     string
	GitOpsSSHKeyPath string
	GitHubToken      string
	Organization     string

	APIListenAddr     string
	MetricsListenAddr string
	APIEndpoint       string
	APIToken          string

	LogLevel string
	StateDir string
}

// Load reads the environment, applying defaults for the optional knobs.
func Load() *Config {
	return &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		GitOpsRepoURL:     os.Getenv("GITOPS_REPO_URL"),
		GitOpsBranch:      getenv("GITOPS_BRANCH", "main"),
		GitOpsSSHKeyPath:  os.Getenv("GITOPS_SSH_KEY_PATH"),
		GitHubToken:       os.Getenv("GITHUB_TOKEN"),
		Organization:      getenv("ORGANIZATION", "default"),
		APIListenAddr:     getenv("API_LISTEN_ADDR", ":8080"),
		MetricsListenAddr: getenv("METRICS_LISTEN_ADDR", ":8081"),
		APIEndpoint:       getenv("API_ENDPOINT", "localhost:8080"),
		APIToken:          os.Getenv("API_TOKEN"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		StateDir:          getenv("STATE_DIR", "/var/lib/deployplane"),
	}
}

// GitAuth builds the transport auth for the gitops and template
// repositories: an SSH key wins over a token; neither means anonymous.
func (c *Config) GitAuth() (transport.AuthMethod, error) {
	if c.GitOpsSSHKeyPath != "" {
		auth, err := gitssh.NewPublicKeysFromFile("git", c.GitOpsSSHKeyPath, "")
		if err != nil {
			return nil, errdefs.InvalidArgumentf("failed to load ssh key %s: %v", c.GitOpsSSHKeyPath, err)
		}
		return auth, nil
	}
	if c.GitHubToken != "" {
		return &githttp.BasicAuth{Username: "x-access-token", Password: c.GitHubToken}, nil
	}
	return nil, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
