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

// Package gitops writes rendered manifests into the deployment repository.
// Each processed batch becomes at most one commit; a push rejected by the
// remote triggers a fetch, hard reset and re-apply before the next attempt.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-logr/logr"

	"github.com/ConfigButler/deployplane/internal/errdefs"
)

const (
	remoteName   = "origin"
	maxPushTries = 3
	dirPerm      = 0o750
	filePerm     = 0o600

	commitAuthorName  = "Deploy Plane"
	commitAuthorEmail = "deployplane@configbutler.ai"
)

// Change is one batch of tree edits, applied relative to the repository root.
// RemoveGlobs run before Writes, so a re-rendered subtree survives its own
// removal pattern.
type Change struct {
	Writes      map[string][]byte
	RemoveGlobs []string
}

// Empty reports whether the change carries no edits at all.
func (c *Change) Empty() bool {
	return len(c.Writes) == 0 && len(c.RemoveGlobs) == 0
}

// Repo is a worktree clone of the deployment repository, pinned to one
// branch.
type Repo struct {
	url    string
	branch string
	dir    string
	auth   transport.AuthMethod
	log    logr.Logger

	repo *git.Repository

	// OnPushRetry, when set, is invoked each time a rejected push forces a
	// re-apply on fresh remote state.
	OnPushRetry func()
}

// Open prepares a worktree under dir tracking branch of url. An existing
// checkout is reused; a missing remote branch starts unborn and is created by
// the first push.
func Open(ctx context.Context, url, branch, dir string, auth transport.AuthMethod, log logr.Logger) (*Repo, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, errdefs.Unavailablef("failed to create repo dir %s: %v", dir, err)
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		if repo, err = git.PlainInit(dir, false); err != nil {
			return nil, errdefs.Unavailablef("failed to init repository in %s: %v", dir, err)
		}
	}

	r := &Repo{url: url, branch: branch, dir: dir, auth: auth, log: log.WithName("gitops-repo"), repo: repo}
	if err := r.ensureRemote(); err != nil {
		return nil, err
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
	if err := repo.Storer.SetReference(head); err != nil {
		return nil, errdefs.Unavailablef("failed to set HEAD to %s: %v", branch, err)
	}
	if err := r.Pull(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repo) ensureRemote() error {
	remote, err := r.repo.Remote(remoteName)
	if err == nil {
		cfg := remote.Config()
		if len(cfg.URLs) > 0 && cfg.URLs[0] == r.url {
			return nil
		}
		if err := r.repo.DeleteRemote(remoteName); err != nil {
			return errdefs.Unavailablef("failed to replace remote: %v", err)
		}
	}
	if _, err := r.repo.CreateRemote(&config.RemoteConfig{Name: remoteName, URLs: []string{r.url}}); err != nil {
		return errdefs.Unavailablef("failed to create remote: %v", err)
	}
	return nil
}

// Pull fetches the tracked branch and hard-resets the worktree onto it. A
// branch that does not exist on the remote yet leaves the worktree as is.
func (r *Repo) Pull(ctx context.Context) error {
	dest := plumbing.NewRemoteReferenceName(remoteName, r.branch)
	err := r.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		Auth:       r.auth,
		Force:      true,
		RefSpecs: []config.RefSpec{
			config.RefSpec(fmt.Sprintf("+refs/heads/%s:%s", r.branch, dest)),
		},
	})
	switch {
	case err == nil:
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, transport.ErrEmptyRemoteRepository), errors.Is(err, git.NoMatchingRefSpecError{}):
		// Unborn branch: the first push creates it.
		return nil
	default:
		return errdefs.Unavailablef("failed to fetch %s: %v", r.branch, err)
	}

	destRef, err := r.repo.Reference(dest, true)
	if err != nil {
		return errdefs.Unavailablef("failed to resolve %s: %v", dest, err)
	}
	return r.resetHard(destRef.Hash())
}

func (r *Repo) resetHard(hash plumbing.Hash) error {
	branchRef := plumbing.NewBranchReferenceName(r.branch)
	if _, err := r.repo.Reference(branchRef, true); err != nil {
		// Local branch does not exist yet.
		if err := r.repo.Storer.SetReference(plumbing.NewHashReference(branchRef, hash)); err != nil {
			return errdefs.Unavailablef("failed to create branch %s: %v", r.branch, err)
		}
	}
	worktree, err := r.repo.Worktree()
	if err != nil {
		return errdefs.Unavailablef("failed to get worktree: %v", err)
	}
	if err := worktree.Reset(&git.ResetOptions{Commit: hash, Mode: git.HardReset}); err != nil {
		return errdefs.Unavailablef("failed to reset to %s: %v", hash, err)
	}
	return nil
}

// Apply materializes change in the worktree, commits it with message, and
// pushes. A rejected push fetches, resets and re-applies, up to three
// attempts. An already-converged worktree produces no commit.
func (r *Repo) Apply(ctx context.Context, change *Change, message string) error {
	if change.Empty() {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < maxPushTries; attempt++ {
		if attempt > 0 {
			r.log.Info("push rejected, re-applying on fresh remote state", "attempt", attempt+1)
			if r.OnPushRetry != nil {
				r.OnPushRetry()
			}
			if err := r.Pull(ctx); err != nil {
				lastErr = err
				continue
			}
		}

		dirty, err := r.applyToWorktree(change)
		if err != nil {
			return err
		}
		if !dirty {
			r.log.V(1).Info("worktree already converged, nothing to commit")
			return nil
		}

		if err := r.commit(message); err != nil {
			return err
		}
		err = r.repo.PushContext(ctx, &git.PushOptions{RemoteName: remoteName, Auth: r.auth})
		if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		lastErr = errdefs.Unavailablef("failed to push: %v", err)
	}
	return lastErr
}

// applyToWorktree edits the files and stages everything, reporting whether
// the tree actually changed.
func (r *Repo) applyToWorktree(change *Change) (bool, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return false, errdefs.Unavailablef("failed to get worktree: %v", err)
	}
	root := worktree.Filesystem.Root()

	for _, pattern := range change.RemoveGlobs {
		matches, err := filepath.Glob(filepath.Join(root, filepath.FromSlash(pattern)))
		if err != nil {
			return false, errdefs.Internalf("bad removal pattern %q: %v", pattern, err)
		}
		for _, match := range matches {
			if err := os.RemoveAll(match); err != nil {
				return false, errdefs.Unavailablef("failed to remove %s: %v", match, err)
			}
		}
	}

	for rel, data := range change.Writes {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if existing, err := os.ReadFile(full); err == nil && string(existing) == string(data) {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), dirPerm); err != nil {
			return false, errdefs.Unavailablef("failed to create dir for %s: %v", rel, err)
		}
		if err := os.WriteFile(full, data, filePerm); err != nil {
			return false, errdefs.Unavailablef("failed to write %s: %v", rel, err)
		}
	}

	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return false, errdefs.Unavailablef("failed to stage changes: %v", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return false, errdefs.Unavailablef("failed to read worktree status: %v", err)
	}
	return !status.IsClean(), nil
}

func (r *Repo) commit(message string) error {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return errdefs.Unavailablef("failed to get worktree: %v", err)
	}
	_, err = worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  commitAuthorName,
			Email: commitAuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return errdefs.Unavailablef("failed to commit: %v", err)
	}
	return nil
}
