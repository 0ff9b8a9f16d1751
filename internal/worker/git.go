// BSD 2-Clause License
//
// Copyright (c) 2020, Andrea Giacomo Baldan
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
// * Redistributions of source code must retain the above copyright notice, this
//   list of conditions and the following disclaimer.
//
// * Redistributions in binary form must reproduce the above copyright notice,
//   this list of conditions and the following disclaimer in the documentation
//   and/or other materials provided with the distribution.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package worker

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Mirror owns the single on-disk clone of the project the worker checks
// commits out of. Only one task runs at a time, so updates are naturally
// serialized (§5).
type Mirror struct {
	dir       string
	remoteURL string
}

// NewMirror binds a Mirror to a local directory and its upstream remote.
func NewMirror(dir, remoteURL string) *Mirror {
	return &Mirror{dir: dir, remoteURL: remoteURL}
}

// Update clones the mirror if it doesn't exist yet, otherwise fetches new
// refs from the remote (§4.5 step 1).
func (m *Mirror) Update() error {
	repo, err := git.PlainOpen(m.dir)
	if err == git.ErrRepositoryNotExists {
		_, err = git.PlainClone(m.dir, false, &git.CloneOptions{URL: m.remoteURL})
		return err
	}
	if err != nil {
		return err
	}
	err = repo.Fetch(&git.FetchOptions{RemoteName: "origin"})
	if err == git.NoErrAlreadyUpToDate {
		return nil
	}
	return err
}

// ResolveCommit looks up the commit description for hash, used to validate
// the task is runnable before the checkout (§4.5 step 2).
func (m *Mirror) ResolveCommit(hash string) (*object.Commit, error) {
	repo, err := git.PlainOpen(m.dir)
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}
	commit, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, fmt.Errorf("resolve commit %s: %w", hash, err)
	}
	return commit, nil
}

// CheckoutInto clones the mirror locally into scratchDir and checks the
// given commit out, giving the task an exclusively-owned working tree
// (§4.5 step 3, §5 shared-resource policy).
func (m *Mirror) CheckoutInto(scratchDir, hash string) error {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return err
	}
	repo, err := git.PlainClone(scratchDir, false, &git.CloneOptions{URL: m.dir})
	if err != nil {
		return fmt.Errorf("checkout clone: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(hash)}); err != nil {
		return fmt.Errorf("checkout %s: %w", hash, err)
	}
	return nil
}
