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

// Package template renders manifest templates out of Git repositories.
// Checkouts are cached per (repository, ref) with a TTL, so a burst of
// renders against one template costs one clone.
package template

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	texttemplate "text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-logr/logr"

	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/model"
)

// File is one rendered file, addressed relative to the template's path.
type File struct {
	Path string
	Data []byte
}

// Vars is the data visible to templates.
type Vars map[string]any

const (
	defaultTTL        = 5 * time.Minute
	defaultMaxClones  = 16
	cloneDirPerm      = 0o755
	gitDirName        = ".git"
	missingKeyMessage = "map has no entry for key"
)

// cacheEntry is one cached checkout. Renders read under mu's read lock so a
// TTL re-clone (which takes the write lock) can never delete a directory
// another render is still walking. refs guards the entry against LRU
// eviction while anyone uses or waits on it.
type cacheEntry struct {
	mu        sync.RWMutex
	dir       string
	clonedAt  time.Time
	lastUsed  time.Time
	refs      int
	populated bool
}

// Renderer clones template repositories and renders their files.
type Renderer struct {
	cacheDir  string
	ttl       time.Duration
	maxClones int
	auth      transport.AuthMethod
	log       logr.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// Option tweaks a Renderer.
type Option func(*Renderer)

// WithTTL sets how long a checkout is served before it is cloned afresh.
func WithTTL(ttl time.Duration) Option {
	return func(r *Renderer) { r.ttl = ttl }
}

// WithMaxClones caps how many checkouts the cache keeps on disk.
func WithMaxClones(n int) Option {
	return func(r *Renderer) { r.maxClones = n }
}

// WithAuth sets the transport auth used for clones.
func WithAuth(auth transport.AuthMethod) Option {
	return func(r *Renderer) { r.auth = auth }
}

// NewRenderer builds a renderer caching checkouts under cacheDir.
func NewRenderer(cacheDir string, log logr.Logger, opts ...Option) *Renderer {
	r := &Renderer{
		cacheDir:  cacheDir,
		ttl:       defaultTTL,
		maxClones: defaultMaxClones,
		log:       log.WithName("template"),
		entries:   map[string]*cacheEntry{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render checks out the template's repository at its ref and renders every
// file under its path with vars. A reference to a variable that vars does not
// carry is a terminal error.
func (r *Renderer) Render(ctx context.Context, tmpl *model.Template, vars Vars) ([]File, error) {
	dir, release, err := r.checkout(ctx, tmpl.Repository, tmpl.GitRef)
	if err != nil {
		return nil, err
	}
	defer release()

	root := filepath.Join(dir, filepath.FromSlash(tmpl.Path))
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, errdefs.InvalidArgumentf("template %s: path %q not found in %s@%s",
			tmpl.ID, tmpl.Path, tmpl.Repository, tmpl.GitRef)
	}

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == gitDirName {
				return filepath.SkipDir
			}
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return errdefs.Unavailablef("failed to read template file %s: %v", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errdefs.Internalf("failed to relativize %s: %v", path, err)
		}

		data, err := renderFile(rel, raw, vars)
		if err != nil {
			return err
		}
		files = append(files, File{Path: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errdefs.InvalidArgumentf("template %s: path %q holds no files", tmpl.ID, tmpl.Path)
	}
	return files, nil
}

func renderFile(name string, raw []byte, vars Vars) ([]byte, error) {
	t, err := texttemplate.New(name).
		Funcs(sprig.FuncMap()).
		Option("missingkey=error").
		Parse(string(raw))
	if err != nil {
		return nil, errdefs.InvalidArgumentf("template file %s does not parse: %v", name, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]any(vars)); err != nil {
		if strings.Contains(err.Error(), missingKeyMessage) {
			return nil, errdefs.InvalidArgumentf("template file %s references a missing variable: %v", name, err)
		}
		return nil, errdefs.InvalidArgumentf("template file %s failed to render: %v", name, err)
	}
	return buf.Bytes(), nil
}

// checkout returns a directory holding repository at ref, cloning if the
// cached one is missing or older than the TTL. The directory stays locked
// against re-clones until the caller invokes release.
func (r *Renderer) checkout(ctx context.Context, repository, ref string) (string, func(), error) {
	key := repository + "@" + ref

	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		sum := sha256.Sum256([]byte(key))
		entry = &cacheEntry{dir: filepath.Join(r.cacheDir, hex.EncodeToString(sum[:8]))}
		r.entries[key] = entry
		r.evictLocked()
	}
	entry.refs++
	entry.lastUsed = time.Now()
	r.mu.Unlock()

	unref := func() {
		r.mu.Lock()
		entry.refs--
		r.mu.Unlock()
	}

	// Fast path: a fresh checkout is shared under the read lock.
	entry.mu.RLock()
	if entry.populated && time.Since(entry.clonedAt) < r.ttl {
		return entry.dir, func() { entry.mu.RUnlock(); unref() }, nil
	}
	entry.mu.RUnlock()

	entry.mu.Lock()
	if entry.populated && time.Since(entry.clonedAt) < r.ttl {
		// Another render re-cloned while we waited for the write lock.
		return entry.dir, func() { entry.mu.Unlock(); unref() }, nil
	}

	entry.populated = false
	if err := os.RemoveAll(entry.dir); err != nil {
		entry.mu.Unlock()
		unref()
		return "", nil, errdefs.Unavailablef("failed to clear checkout %s: %v", entry.dir, err)
	}
	if err := os.MkdirAll(entry.dir, cloneDirPerm); err != nil {
		entry.mu.Unlock()
		unref()
		return "", nil, errdefs.Unavailablef("failed to create checkout %s: %v", entry.dir, err)
	}
	if err := r.clone(ctx, entry.dir, repository, ref); err != nil {
		entry.mu.Unlock()
		unref()
		return "", nil, err
	}
	entry.populated = true
	entry.clonedAt = time.Now()
	r.log.V(1).Info("cloned template repository", "repository", repository, "ref", ref)
	// The render that cloned reads under the write lock it already holds.
	return entry.dir, func() { entry.mu.Unlock(); unref() }, nil
}

// clone makes a shallow single-branch clone, trying ref as a branch first and
// as a tag second.
func (r *Renderer) clone(ctx context.Context, dir, repository, ref string) error {
	opts := &git.CloneOptions{
		URL:           repository,
		Auth:          r.auth,
		SingleBranch:  true,
		Depth:         1,
		ReferenceName: plumbing.NewBranchReferenceName(ref),
	}
	_, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err == nil {
		return nil
	}

	_ = os.RemoveAll(dir)
	opts.ReferenceName = plumbing.NewTagReferenceName(ref)
	if _, tagErr := git.PlainCloneContext(ctx, dir, false, opts); tagErr == nil {
		return nil
	}
	return errdefs.Unavailablef("failed to clone %s@%s: %v", repository, ref, err)
}

// evictLocked drops least recently used idle checkouts over the cap. Caller
// holds r.mu.
func (r *Renderer) evictLocked() {
	for len(r.entries) > r.maxClones {
		var oldestKey string
		var oldest *cacheEntry
		for key, e := range r.entries {
			if e.refs > 0 {
				continue
			}
			if oldest == nil || e.lastUsed.Before(oldest.lastUsed) {
				oldestKey, oldest = key, e
			}
		}
		if oldest == nil {
			return
		}
		delete(r.entries, oldestKey)
		if err := os.RemoveAll(oldest.dir); err != nil {
			r.log.Error(err, "failed to evict checkout", "dir", oldest.dir)
		}
	}
}
