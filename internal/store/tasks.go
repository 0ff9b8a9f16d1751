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

	"github.com/pkg/errors"

	"github.com/codepr/forgeci/internal/model"
)

// WorkerCapabilities is a worker's claim-task advertisement (§4.2, §6).
type WorkerCapabilities struct {
	AcceptStaticAnalyserTask           bool
	AcceptClangFormatTask              bool
	AcceptClangTidyTask                bool
	AcceptCompileWithGccHardwareVendor bool
	AcceptCompileWithGccDistro         bool
	AcceptRunTestsOnQemu               bool
	AcceptRunTestsOnRealHardware       bool
	Hostname                           string
}

// ClaimedTask is the full descriptor of a task handed to a worker: enough
// to render the claim-response text format and to drive execution.
type ClaimedTask struct {
	TaskID    int64
	CommitID  string
	TaskType  model.TaskType
	TestSetup *model.TestSetup
}

const claimQuery = `
SELECT t.id, j.commit_id, t.task_type,
       ts.id, ts.compiler_id, ts.required_tests, ts.mentioned_tests,
       ts.run_tests_on_qemu, ts.run_tests_on_real_hardware
FROM tasks t
JOIN jobs j ON j.id = t.job_id
LEFT JOIN test_setup ts ON ts.task_id = t.id
WHERE t.status = ?
  AND j.status IN (?, ?)
  AND (
        (t.task_type = ? AND ?)
     OR (t.task_type = ? AND ?)
     OR (t.task_type = ? AND ?)
     OR (t.task_type = ? AND
         ((ts.compiler_id = ? AND ?) OR (ts.compiler_id = ? AND ?))
         AND (
           ts.required_tests = ?
           OR (
             (COALESCE(ts.run_tests_on_qemu, 0) = 0 OR ?)
             AND
             (COALESCE(ts.run_tests_on_real_hardware, 0) = 0 OR ?)
           )
         ))
      )
ORDER BY t.id
LIMIT 1
`

// ClaimTask selects the oldest eligible pending task matching caps and
// atomically transitions it to Running (§4.2).
func (s *Store) ClaimTask(caps WorkerCapabilities) (*ClaimedTask, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "begin claim task")
	}
	defer tx.Rollback()

	row := tx.QueryRow(claimQuery,
		model.StatusPending,
		model.StatusPending, model.StatusRunning,
		model.TaskStaticAnalyser, caps.AcceptStaticAnalyserTask,
		model.TaskClangFormat, caps.AcceptClangFormatTask,
		model.TaskClangTidy, caps.AcceptClangTidyTask,
		model.TaskTests,
		model.CompilerGccFromHardwareVendor, caps.AcceptCompileWithGccHardwareVendor,
		model.CompilerGccFromDistro, caps.AcceptCompileWithGccDistro,
		model.RequiredNoTestsOnlyCompile,
		caps.AcceptRunTestsOnQemu,
		caps.AcceptRunTestsOnRealHardware,
	)

	var (
		taskID, taskType                   int64
		commitID                           string
		setupID, compilerID, requiredTests sql.NullInt64
		mentionedTests                     sql.NullString
		runQemu, runRealHardware           sql.NullBool
	)
	err = row.Scan(&taskID, &commitID, &taskType, &setupID, &compilerID, &requiredTests, &mentionedTests, &runQemu, &runRealHardware)
	if err == sql.ErrNoRows {
		return nil, ErrNoTaskAvailable
	}
	if err != nil {
		return nil, errors.Wrap(err, "select claimable task")
	}

	res, err := tx.Exec(
		`UPDATE tasks SET started_at = CURRENT_TIMESTAMP, status = ?, executed_on = ? WHERE id = ? AND status = ?`,
		model.StatusRunning, caps.Hostname, taskID, model.StatusPending,
	)
	if err != nil {
		return nil, errors.Wrap(err, "claim task update")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "read claim update result")
	}
	if affected == 0 {
		// lost the race to another claimant between select and update
		return nil, ErrNoTaskAvailable
	}

	claimed := &ClaimedTask{TaskID: taskID, CommitID: commitID, TaskType: model.TaskType(taskType)}
	if claimed.TaskType == model.TaskTests {
		if !setupID.Valid {
			// keep the claim: the task stays Running under this hostname
			if err := tx.Commit(); err != nil {
				return nil, errors.Wrap(err, "commit claim task")
			}
			return nil, ErrInconsistent
		}
		setup := &model.TestSetup{
			ID:            setupID.Int64,
			TaskID:        taskID,
			CompilerID:    model.Compiler(compilerID.Int64),
			RequiredTests: model.RequiredTests(requiredTests.Int64),
		}
		if mentionedTests.Valid {
			v := mentionedTests.String
			setup.MentionedTests = &v
		}
		if runQemu.Valid {
			v := runQemu.Bool
			setup.RunTestsOnQemu = &v
		}
		if runRealHardware.Valid {
			v := runRealHardware.Bool
			setup.RunTestsOnRealHardware = &v
		}
		claimed.TestSetup = setup
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit claim task")
	}
	return claimed, nil
}

// UpdateTask applies a task-update report and recomputes the parent job's
// rollup status (§4.3).
func (s *Store) UpdateTask(taskID int64, status model.Status, retCode *int, outputChunk string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin update task")
	}

	var jobID int64
	if err := tx.QueryRow(`SELECT job_id FROM tasks WHERE id = ?`, taskID).Scan(&jobID); err != nil {
		tx.Rollback()
		if err == sql.ErrNoRows {
			return ErrNoSuchRow
		}
		return errors.Wrap(err, "lookup task job id")
	}

	finishing := status != model.StatusRunning
	res, err := tx.Exec(
		`UPDATE tasks SET
		   started_at = COALESCE(started_at, CURRENT_TIMESTAMP),
		   output = output || ?,
		   status = ?,
		   ret_code = ?,
		   finished_at = CASE WHEN ? THEN CURRENT_TIMESTAMP ELSE finished_at END
		 WHERE id = ?`,
		outputChunk, status, retCode, finishing, taskID,
	)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "update task")
	}
	if affected, err := res.RowsAffected(); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "read update task result")
	} else if affected != 1 {
		tx.Rollback()
		return ErrNoSuchRow
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit update task")
	}

	return s.recomputeJobRollup(jobID)
}

// recomputeJobRollup applies the task_state rollup rule (§4.3) in a single
// statement: Running dominates when any task has no finished_at yet (a
// Pending task counts as open too), Failed dominates Success among
// terminal tasks, and Pending is left only as the fallback when no case
// matches, such as a job with no task rows.
func (s *Store) recomputeJobRollup(jobID int64) error {
	_, err := s.db.Exec(`
		UPDATE jobs SET status = (
			SELECT CASE
				WHEN MAX(CASE WHEN finished_at IS NULL THEN 1 ELSE 0 END) = 1 THEN ?
				WHEN MAX(CASE WHEN status IN (?, ?) THEN 1 ELSE 0 END) = 1 THEN ?
				WHEN MAX(CASE WHEN status IN (?, ?) THEN 1 ELSE 0 END) = 1 THEN ?
				ELSE ?
			END
			FROM tasks WHERE job_id = ?
		)
		WHERE id = ?`,
		model.StatusRunning,
		model.StatusFailed, model.StatusTimeout, model.StatusFailed,
		model.StatusSuccess, model.StatusSkipped, model.StatusSuccess,
		model.StatusPending,
		jobID, jobID,
	)
	return errors.Wrap(err, "recompute job rollup")
}
