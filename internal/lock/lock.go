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

// Package lock guards a state directory against concurrent processes. The
// gitops writer takes it so two writers can never fight over one worktree.
package lock

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/ConfigButler/deployplane/internal/errdefs"
)

// FileLock is an exclusive advisory lock on a directory.
type FileLock struct {
	file *os.File
}

// Acquire takes the lock for dir, failing immediately when another process
// holds it.
func Acquire(dir string) (*FileLock, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errdefs.Unavailablef("failed to create state dir %s: %v", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, ".lock"), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, errdefs.Unavailablef("failed to open lock file: %v", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, errdefs.Conflictf("state dir %s is locked by another process", dir)
	}
	return &FileLock{file: f}, nil
}

// Release drops the lock.
func (l *FileLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if closeErr := l.file.Close(); err == nil {
		err = closeErr
	}
	l.file = nil
	return err
}
