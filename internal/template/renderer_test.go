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

package template_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/model"
	"github.com/ConfigButler/deployplane/internal/template"
)

// initTemplateRepo seeds a local git repository with files on the default
// branch (master) and returns its path.
func initTemplateRepo(t *testing.T, files map[string]string) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	writeAndCommit(t, repo, dir, files, "seed templates")
	return dir, repo
}

func writeAndCommit(t *testing.T, repo *git.Repository, dir string, files map[string]string, msg string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.AddWithOptions(&git.AddOptions{All: true}))
	_, err = wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func newRenderer(t *testing.T, opts ...template.Option) *template.Renderer {
	t.Helper()
	return template.NewRenderer(t.TempDir(), logr.Discard(), opts...)
}

func TestRenderSubstitutesVariables(t *testing.T) {
	ctx := context.Background()
	repoDir, _ := initTemplateRepo(t, map[string]string{
		"svc/deployment.yaml": "name: {{ .workload }}-{{ .deployment }}\nhost: {{ .host }}\n",
		"svc/service.yaml":    "port: {{ .port }}\n",
	})

	r := newRenderer(t)
	files, err := r.Render(ctx, &model.Template{
		ID: "tpl-1", Repository: repoDir, GitRef: "master", Path: "svc",
	}, template.Vars{"workload": "billing", "deployment": "prod", "host": "h1", "port": "8080"})
	require.NoError(t, err)
	require.Len(t, files, 2)

	byPath := map[string]string{}
	for _, f := range files {
		byPath[f.Path] = string(f.Data)
	}
	assert.Equal(t, "name: billing-prod\nhost: h1\n", byPath["deployment.yaml"])
	assert.Equal(t, "port: 8080\n", byPath["service.yaml"])
}

func TestRenderSupportsSprigFunctions(t *testing.T) {
	ctx := context.Background()
	repoDir, _ := initTemplateRepo(t, map[string]string{
		"svc/cm.yaml": "NAME: {{ .deployment | upper }}\n",
	})

	r := newRenderer(t)
	files, err := r.Render(ctx, &model.Template{
		ID: "tpl-1", Repository: repoDir, GitRef: "master", Path: "svc",
	}, template.Vars{"deployment": "prod"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "NAME: PROD\n", string(files[0].Data))
}

func TestRenderMissingVariableIsTerminal(t *testing.T) {
	ctx := context.Background()
	repoDir, _ := initTemplateRepo(t, map[string]string{
		"svc/deployment.yaml": "name: {{ .nope }}\n",
	})

	r := newRenderer(t)
	_, err := r.Render(ctx, &model.Template{
		ID: "tpl-1", Repository: repoDir, GitRef: "master", Path: "svc",
	}, template.Vars{"deployment": "prod"})
	require.Error(t, err)
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.False(t, errdefs.IsRetryable(err), "bad template input must not wedge the stream")
}

func TestRenderUnknownPathIsTerminal(t *testing.T) {
	ctx := context.Background()
	repoDir, _ := initTemplateRepo(t, map[string]string{
		"svc/deployment.yaml": "ok\n",
	})

	r := newRenderer(t)
	_, err := r.Render(ctx, &model.Template{
		ID: "tpl-1", Repository: repoDir, GitRef: "master", Path: "does-not-exist",
	}, template.Vars{})
	assert.True(t, errdefs.IsInvalidArgument(err))
}

func TestRenderResolvesTags(t *testing.T) {
	ctx := context.Background()
	repoDir, repo := initTemplateRepo(t, map[string]string{
		"svc/deployment.yaml": "rev: one\n",
	})
	head, err := repo.Head()
	require.NoError(t, err)
	_, err = repo.CreateTag("v1", head.Hash(), nil)
	require.NoError(t, err)

	r := newRenderer(t)
	files, err := r.Render(ctx, &model.Template{
		ID: "tpl-1", Repository: repoDir, GitRef: "v1", Path: "svc",
	}, template.Vars{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "rev: one\n", string(files[0].Data))
}

func TestRenderServesCachedCheckoutWithinTTL(t *testing.T) {
	ctx := context.Background()
	repoDir, repo := initTemplateRepo(t, map[string]string{
		"svc/deployment.yaml": "rev: one\n",
	})
	tmpl := &model.Template{ID: "tpl-1", Repository: repoDir, GitRef: "master", Path: "svc"}

	r := newRenderer(t)
	files, err := r.Render(ctx, tmpl, template.Vars{})
	require.NoError(t, err)
	assert.Equal(t, "rev: one\n", string(files[0].Data))

	// The source moves on, but the checkout is younger than the TTL.
	writeAndCommit(t, repo, repoDir, map[string]string{"svc/deployment.yaml": "rev: two\n"}, "bump")
	files, err = r.Render(ctx, tmpl, template.Vars{})
	require.NoError(t, err)
	assert.Equal(t, "rev: one\n", string(files[0].Data))
}

func TestRenderReclonesAfterTTL(t *testing.T) {
	ctx := context.Background()
	repoDir, repo := initTemplateRepo(t, map[string]string{
		"svc/deployment.yaml": "rev: one\n",
	})
	tmpl := &model.Template{ID: "tpl-1", Repository: repoDir, GitRef: "master", Path: "svc"}

	r := newRenderer(t, template.WithTTL(0))
	_, err := r.Render(ctx, tmpl, template.Vars{})
	require.NoError(t, err)

	writeAndCommit(t, repo, repoDir, map[string]string{"svc/deployment.yaml": "rev: two\n"}, "bump")
	files, err := r.Render(ctx, tmpl, template.Vars{})
	require.NoError(t, err)
	assert.Equal(t, "rev: two\n", string(files[0].Data))
}

func TestRenderConcurrentWithExpiredTTL(t *testing.T) {
	ctx := context.Background()
	repoDir, _ := initTemplateRepo(t, map[string]string{
		"svc/deployment.yaml": "name: {{ .deployment }}\n",
	})
	tmpl := &model.Template{ID: "tpl-1", Repository: repoDir, GitRef: "master", Path: "svc"}

	// TTL 0 forces a re-clone on every call, so concurrent renders race the
	// checkout replacement. A render must never see its directory swapped out
	// from under it.
	r := newRenderer(t, template.WithTTL(0))

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			for j := 0; j < 5; j++ {
				files, err := r.Render(ctx, tmpl, template.Vars{"deployment": "prod"})
				if err != nil {
					return err
				}
				if len(files) != 1 || string(files[0].Data) != "name: prod\n" {
					return fmt.Errorf("unexpected render output: %v", files)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestRenderUnreachableRepositoryIsRetryable(t *testing.T) {
	ctx := context.Background()
	r := newRenderer(t)
	_, err := r.Render(ctx, &model.Template{
		ID: "tpl-1", Repository: filepath.Join(t.TempDir(), "missing"), GitRef: "master", Path: "svc",
	}, template.Vars{})
	require.Error(t, err)
	assert.True(t, errdefs.IsRetryable(err))
}
