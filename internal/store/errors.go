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

package store

import "errors"

// Submission validation errors (§4.1), returned verbatim to the submitter.
var (
	ErrEmptyRequest    = errors.New("EmptyRequest")
	ErrInvalidCommit   = errors.New("InvalidCommit")
	ErrNoCompilerChosen = errors.New("NoCompilerChosen")
	ErrNoTargetChosen  = errors.New("NoTargetChosen")
	ErrEmptyTestList   = errors.New("EmptyTestList")
)

// ErrNoTaskAvailable is returned by ClaimTask when no eligible row exists.
// It is not treated as an operational error by callers.
var ErrNoTaskAvailable = errors.New("NoTaskAvailable")

// ErrInconsistent marks a claimed row whose invariants were violated (a
// Tests task with no test_setup row, or a task with no resolvable git
// hash). It surfaces to the worker as an error string; the task is left
// Running.
var ErrInconsistent = errors.New("Inconsistent")

// ErrNoSuchRow is returned when an update targets a row that does not
// exist, or when a mutation affects a row count other than exactly one.
var ErrNoSuchRow = errors.New("no matching row")
