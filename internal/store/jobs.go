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

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/codepr/forgeci/internal/model"
)

// Submission is the decoded form of a job-submission request (§4.1, §6).
type Submission struct {
	CommitID                     string
	RequiredTests                model.RequiredTests
	ExplicitlyDisabledTests      []string
	ExplicitlyEnabledTests       []string
	CompileWithHardwareVendorGcc bool
	CompileWithDistroGcc         bool
	RunTestsOnQemu               bool
	RunTestsOnRealHardware       bool
	RunStaticAnalyser            bool
	RunClangTidy                 bool
	RunClangFormat               bool
	Email                        *string
}

func (s Submission) validate() error {
	if !s.RunStaticAnalyser && !s.RunClangTidy && !s.RunClangFormat && s.RequiredTests == model.RequiredNotEvenCompile {
		return ErrEmptyRequest
	}
	if !model.IsValidGitHash(s.CommitID) {
		return ErrInvalidCommit
	}
	if s.RequiredTests != model.RequiredNotEvenCompile {
		if !s.CompileWithHardwareVendorGcc && !s.CompileWithDistroGcc {
			return ErrNoCompilerChosen
		}
	}
	if s.RequiredTests.NeedsTarget() {
		if !s.RunTestsOnQemu && !s.RunTestsOnRealHardware {
			return ErrNoTargetChosen
		}
	}
	switch s.RequiredTests {
	case model.RequiredAllTestsExcept:
		if len(s.ExplicitlyDisabledTests) == 0 {
			return ErrEmptyTestList
		}
	case model.RequiredOnlySpecifiedTests:
		if len(s.ExplicitlyEnabledTests) == 0 {
			return ErrEmptyTestList
		}
	}
	return nil
}

// SubmitJob validates and decomposes a submission into a job row plus its
// tasks, in one transaction (§4.1).
func (s *Store) SubmitJob(sub Submission) (int64, error) {
	if err := sub.validate(); err != nil {
		return 0, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "begin submit job")
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO jobs (commit_id, email, status) VALUES (?, ?, ?)`,
		sub.CommitID, sub.Email, model.StatusPending,
	)
	if err != nil {
		return 0, errors.Wrap(err, "insert job")
	}
	jobID, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "read job id")
	}

	if sub.RunStaticAnalyser {
		if err := insertPlainTask(tx, jobID, model.TaskStaticAnalyser); err != nil {
			return 0, err
		}
	}
	if sub.RunClangFormat {
		if err := insertPlainTask(tx, jobID, model.TaskClangFormat); err != nil {
			return 0, err
		}
	}
	if sub.RunClangTidy {
		if err := insertPlainTask(tx, jobID, model.TaskClangTidy); err != nil {
			return 0, err
		}
	}

	if sub.RequiredTests != model.RequiredNotEvenCompile {
		if err := insertTestsTasks(tx, jobID, sub); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit submit job")
	}
	return jobID, nil
}

func insertPlainTask(tx *sql.Tx, jobID int64, t model.TaskType) error {
	_, err := tx.Exec(
		`INSERT INTO tasks (job_id, task_type, status) VALUES (?, ?, ?)`,
		jobID, t, model.StatusPending,
	)
	return errors.Wrapf(err, "insert %s task", t)
}

func insertTestsTask(tx *sql.Tx, jobID int64, compiler model.Compiler, required model.RequiredTests, mentioned []string, qemu, realHardware *bool) error {
	res, err := tx.Exec(
		`INSERT INTO tasks (job_id, task_type, status) VALUES (?, ?, ?)`,
		jobID, model.TaskTests, model.StatusPending,
	)
	if err != nil {
		return errors.Wrap(err, "insert tests task")
	}
	taskID, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "read tests task id")
	}

	var mentionedCol *string
	if len(mentioned) > 0 {
		joined := strings.Join(mentioned, " ")
		mentionedCol = &joined
	}

	_, err = tx.Exec(
		`INSERT INTO test_setup (task_id, compiler_id, required_tests, mentioned_tests, run_tests_on_qemu, run_tests_on_real_hardware)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		taskID, compiler, required, mentionedCol, qemu, realHardware,
	)
	return errors.Wrap(err, "insert test setup")
}

// insertTestsTasks implements the decomposition rule for the Tests tag: one
// task per selected compiler, with the hardware-vendor task forced to
// compile-only when both compilers are requested (§4.1).
func insertTestsTasks(tx *sql.Tx, jobID int64, sub Submission) error {
	mentioned := sub.ExplicitlyEnabledTests
	if sub.RequiredTests == model.RequiredAllTestsExcept {
		mentioned = sub.ExplicitlyDisabledTests
	}

	if sub.CompileWithDistroGcc && sub.CompileWithHardwareVendorGcc {
		qemu, realHardware := boolPtr(sub.RunTestsOnQemu), boolPtr(sub.RunTestsOnRealHardware)
		if err := insertTestsTask(tx, jobID, model.CompilerGccFromDistro, sub.RequiredTests, mentioned, qemu, realHardware); err != nil {
			return err
		}
		return insertTestsTask(tx, jobID, model.CompilerGccFromHardwareVendor, model.RequiredNoTestsOnlyCompile, nil, nil, nil)
	}

	compiler := model.CompilerGccFromDistro
	if sub.CompileWithHardwareVendorGcc {
		compiler = model.CompilerGccFromHardwareVendor
	}
	qemu, realHardware := boolPtr(sub.RunTestsOnQemu), boolPtr(sub.RunTestsOnRealHardware)
	return insertTestsTask(tx, jobID, compiler, sub.RequiredTests, mentioned, qemu, realHardware)
}

func boolPtr(b bool) *bool {
	return &b
}
