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
	"fmt"

	"github.com/pkg/errors"

	"github.com/codepr/forgeci/internal/model"
)

// RegisterTestList inserts one Pending test_run row per (test, target) pair
// for a task (§4.4). Any unknown target name aborts the whole batch.
func (s *Store) RegisterTestList(taskID int64, tests []string, targets []string) error {
	decoded := make([]model.Target, 0, len(targets))
	for _, t := range targets {
		target, err := model.TargetFromString(t)
		if err != nil {
			return errors.Wrapf(err, "register test list")
		}
		decoded = append(decoded, target)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin register test list")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO test_run (task_id, test_name, target_id, status) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare test run insert")
	}
	defer stmt.Close()

	for _, name := range tests {
		for _, target := range decoded {
			if _, err := stmt.Exec(taskID, name, target, model.StatusPending); err != nil {
				return errors.Wrapf(err, "insert test run %s/%s", name, target)
			}
		}
	}

	return errors.Wrap(tx.Commit(), "commit register test list")
}

// TestChangeOperation is the kind of update applied by ReportTestChange.
type TestChangeOperation int

const (
	TestChangeStart TestChangeOperation = iota + 1
	TestChangeProgress
	TestChangeFinish
)

// ReportTestChange applies a Start/Progress/Finish update to exactly one
// test_run row identified by (task_id, test_name, target) (§4.4).
func (s *Store) ReportTestChange(taskID int64, testName string, target model.Target, op TestChangeOperation, output *string, finishStatus *model.Status) error {
	var (
		res sql.Result
		err error
	)

	switch op {
	case TestChangeStart:
		res, err = s.db.Exec(
			`UPDATE test_run SET status = ?, started_at = CURRENT_TIMESTAMP WHERE task_id = ? AND test_name = ? AND target_id = ?`,
			model.StatusRunning, taskID, testName, target,
		)
	case TestChangeProgress:
		if output == nil {
			return errors.New("report test change: progress requires output")
		}
		res, err = s.db.Exec(
			`UPDATE test_run SET output = output || ? WHERE task_id = ? AND test_name = ? AND target_id = ?`,
			*output, taskID, testName, target,
		)
	case TestChangeFinish:
		if finishStatus == nil {
			return errors.New("report test change: finish requires a status")
		}
		switch *finishStatus {
		case model.StatusSuccess, model.StatusFailed, model.StatusTimeout, model.StatusSkipped:
		default:
			return fmt.Errorf("report test change: %s is not a valid finish status", *finishStatus)
		}
		res, err = s.db.Exec(
			`UPDATE test_run SET status = ?, ret_code = ?, finished_at = CURRENT_TIMESTAMP WHERE task_id = ? AND test_name = ? AND target_id = ?`,
			*finishStatus, model.FinishRetCode(*finishStatus), taskID, testName, target,
		)
	default:
		return fmt.Errorf("report test change: unknown operation %d", op)
	}

	if err != nil {
		return errors.Wrap(err, "report test change")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "read report test change result")
	}
	if affected != 1 {
		return ErrNoSuchRow
	}
	return nil
}
