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

package gitops

import (
	"context"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initBareRemote(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := git.PlainInit(dir, true)
	require.NoError(t, err)
	return dir
}

func remoteCommit(t *testing.T, remoteDir, branch string) *object.Commit {
	t.Helper()
	repo, err := git.PlainOpen(remoteDir)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	require.NoError(t, err)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	return commit
}

func remoteFile(t *testing.T, remoteDir, branch, path string) string {
	t.Helper()
	f, err := remoteCommit(t, remoteDir, branch).File(path)
	require.NoError(t, err)
	content, err := f.Contents()
	require.NoError(t, err)
	return content
}

func TestApplyPushesFirstCommitToEmptyRemote(t *testing.T) {
	ctx := context.Background()
	remote := initBareRemote(t)

	repo, err := Open(ctx, remote, "main", t.TempDir(), nil, logr.Discard())
	require.NoError(t, err)

	change := &Change{Writes: map[string][]byte{
		"h1/team-a/wl-1/dep-1/deployment.yaml": []byte("name: prod\n"),
	}}
	require.NoError(t, repo.Apply(ctx, change, "reconcile: op-1"))

	commit := remoteCommit(t, remote, "main")
	assert.Equal(t, "reconcile: op-1", commit.Message)
	assert.Equal(t, "name: prod\n", remoteFile(t, remote, "main", "h1/team-a/wl-1/dep-1/deployment.yaml"))
}

func TestApplyConvergedChangeCommitsNothing(t *testing.T) {
	ctx := context.Background()
	remote := initBareRemote(t)

	repo, err := Open(ctx, remote, "main", t.TempDir(), nil, logr.Discard())
	require.NoError(t, err)

	change := &Change{Writes: map[string][]byte{"a/b/c/d/x.yaml": []byte("x\n")}}
	require.NoError(t, repo.Apply(ctx, change, "first"))
	first := remoteCommit(t, remote, "main").Hash

	require.NoError(t, repo.Apply(ctx, change, "second"))
	assert.Equal(t, first, remoteCommit(t, remote, "main").Hash, "identical content must not commit")
}

func TestApplyEmptyChangeIsNoop(t *testing.T) {
	ctx := context.Background()
	remote := initBareRemote(t)

	repo, err := Open(ctx, remote, "main", t.TempDir(), nil, logr.Discard())
	require.NoError(t, err)
	require.NoError(t, repo.Apply(ctx, &Change{}, "nothing"))

	r, err := git.PlainOpen(remote)
	require.NoError(t, err)
	_, err = r.Reference(plumbing.NewBranchReferenceName("main"), true)
	assert.Error(t, err, "no branch should have been pushed")
}

func TestApplyRemoveGlobsDeleteSubtrees(t *testing.T) {
	ctx := context.Background()
	remote := initBareRemote(t)

	repo, err := Open(ctx, remote, "main", t.TempDir(), nil, logr.Discard())
	require.NoError(t, err)

	require.NoError(t, repo.Apply(ctx, &Change{Writes: map[string][]byte{
		"h1/team-a/wl-1/dep-1/deployment.yaml": []byte("one\n"),
		"h1/team-a/wl-1/dep-2/deployment.yaml": []byte("two\n"),
	}}, "seed"))

	require.NoError(t, repo.Apply(ctx, &Change{
		RemoveGlobs: []string{"h1/*/*/dep-1"},
	}, "remove dep-1"))

	commit := remoteCommit(t, remote, "main")
	_, err = commit.File("h1/team-a/wl-1/dep-1/deployment.yaml")
	assert.ErrorIs(t, err, object.ErrFileNotFound)
	assert.Equal(t, "two\n", remoteFile(t, remote, "main", "h1/team-a/wl-1/dep-2/deployment.yaml"))
}

func TestApplyRemoveBeforeWriteKeepsRewrittenSubtree(t *testing.T) {
	ctx := context.Background()
	remote := initBareRemote(t)

	repo, err := Open(ctx, remote, "main", t.TempDir(), nil, logr.Discard())
	require.NoError(t, err)

	require.NoError(t, repo.Apply(ctx, &Change{Writes: map[string][]byte{
		"h1/team-a/wl-1/dep-1/old.yaml": []byte("old\n"),
	}}, "seed"))

	// Re-render: the whole subtree is removed, then written afresh.
	require.NoError(t, repo.Apply(ctx, &Change{
		RemoveGlobs: []string{"h1/team-a/wl-1/dep-1"},
		Writes: map[string][]byte{
			"h1/team-a/wl-1/dep-1/new.yaml": []byte("new\n"),
		},
	}, "rerender"))

	commit := remoteCommit(t, remote, "main")
	_, err = commit.File("h1/team-a/wl-1/dep-1/old.yaml")
	assert.ErrorIs(t, err, object.ErrFileNotFound)
	assert.Equal(t, "new\n", remoteFile(t, remote, "main", "h1/team-a/wl-1/dep-1/new.yaml"))
}

func TestApplyRetriesRejectedPush(t *testing.T) {
	ctx := context.Background()
	remote := initBareRemote(t)

	// Both writers start from the empty remote; the second push lands on a
	// moved branch and must re-apply on fresh state.
	repoA, err := Open(ctx, remote, "main", t.TempDir(), nil, logr.Discard())
	require.NoError(t, err)
	repoB, err := Open(ctx, remote, "main", t.TempDir(), nil, logr.Discard())
	require.NoError(t, err)

	require.NoError(t, repoA.Apply(ctx, &Change{Writes: map[string][]byte{
		"h1/team-a/wl-1/dep-1/a.yaml": []byte("a\n"),
	}}, "writer a"))
	require.NoError(t, repoB.Apply(ctx, &Change{Writes: map[string][]byte{
		"h2/team-a/wl-1/dep-1/b.yaml": []byte("b\n"),
	}}, "writer b"))

	assert.Equal(t, "a\n", remoteFile(t, remote, "main", "h1/team-a/wl-1/dep-1/a.yaml"))
	assert.Equal(t, "b\n", remoteFile(t, remote, "main", "h2/team-a/wl-1/dep-1/b.yaml"))
}

func TestOpenReusesExistingCheckout(t *testing.T) {
	ctx := context.Background()
	remote := initBareRemote(t)
	dir := t.TempDir()

	repo, err := Open(ctx, remote, "main", dir, nil, logr.Discard())
	require.NoError(t, err)
	require.NoError(t, repo.Apply(ctx, &Change{Writes: map[string][]byte{
		"h1/team-a/wl-1/dep-1/x.yaml": []byte("x\n"),
	}}, "seed"))

	reopened, err := Open(ctx, remote, "main", dir, nil, logr.Discard())
	require.NoError(t, err)
	require.NoError(t, reopened.Apply(ctx, &Change{Writes: map[string][]byte{
		"h1/team-a/wl-1/dep-1/y.yaml": []byte("y\n"),
	}}, "more"))

	assert.Equal(t, "x\n", remoteFile(t, remote, "main", "h1/team-a/wl-1/dep-1/x.yaml"))
	assert.Equal(t, "y\n", remoteFile(t, remote, "main", "h1/team-a/wl-1/dep-1/y.yaml"))
}
