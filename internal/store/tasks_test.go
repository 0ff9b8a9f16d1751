package store

import (
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/codepr/forgeci/internal/model"
)

func TestClaimTaskReturnsDescriptor(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()
	s := &Store{db: db}

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "commit_id", "task_type", "id", "compiler_id", "required_tests", "mentioned_tests", "run_tests_on_qemu", "run_tests_on_real_hardware"}).
		AddRow(42, "deadbeef", int64(model.TaskTests), 7, int64(model.CompilerGccFromDistro), int64(model.RequiredAllTests), nil, true, false)
	mock.ExpectQuery(regexp.QuoteMeta(claimQuery)).WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE tasks SET started_at = CURRENT_TIMESTAMP, status = ?, executed_on = ? WHERE id = ? AND status = ?`)).
		WithArgs(model.StatusRunning, "workstation-1", int64(42), model.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	claimed, err := s.ClaimTask(WorkerCapabilities{
		AcceptCompileWithGccDistro: true,
		AcceptRunTestsOnQemu:       true,
		Hostname:                   "workstation-1",
	})
	if err != nil {
		t.Fatalf("ClaimTask() error: %v", err)
	}
	if claimed.TaskID != 42 || claimed.CommitID != "deadbeef" || claimed.TaskType != model.TaskTests {
		t.Fatalf("ClaimTask() = %+v, unexpected fields", claimed)
	}
	if claimed.TestSetup == nil || claimed.TestSetup.ID != 7 {
		t.Fatalf("ClaimTask() test setup = %+v, want id 7", claimed.TestSetup)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestClaimTaskNoneEligible(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()
	s := &Store{db: db}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(claimQuery)).WillReturnRows(sqlmock.NewRows([]string{
		"id", "commit_id", "task_type", "id", "compiler_id", "required_tests", "mentioned_tests", "run_tests_on_qemu", "run_tests_on_real_hardware",
	}))

	_, err = s.ClaimTask(WorkerCapabilities{})
	if err != ErrNoTaskAvailable {
		t.Fatalf("ClaimTask() error = %v, want ErrNoTaskAvailable", err)
	}
}

func TestClaimTaskInconsistentMissingSetup(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()
	s := &Store{db: db}

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "commit_id", "task_type", "id", "compiler_id", "required_tests", "mentioned_tests", "run_tests_on_qemu", "run_tests_on_real_hardware"}).
		AddRow(9, "abc123", int64(model.TaskTests), nil, nil, nil, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta(claimQuery)).WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE tasks SET started_at = CURRENT_TIMESTAMP, status = ?, executed_on = ? WHERE id = ? AND status = ?`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err = s.ClaimTask(WorkerCapabilities{AcceptCompileWithGccDistro: true})
	if err != ErrInconsistent {
		t.Fatalf("ClaimTask() error = %v, want ErrInconsistent", err)
	}
}

func TestUpdateTaskRecomputesRollup(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()
	s := &Store{db: db}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT job_id FROM tasks WHERE id = ?`)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE tasks SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE jobs SET status = (`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	retCode := 0
	if err := s.UpdateTask(42, model.StatusSuccess, &retCode, "stdout: ok\n"); err != nil {
		t.Fatalf("UpdateTask() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateTaskNoSuchRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()
	s := &Store{db: db}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT job_id FROM tasks WHERE id = ?`)).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	if err := s.UpdateTask(99, model.StatusSuccess, nil, ""); err != ErrNoSuchRow {
		t.Fatalf("UpdateTask() error = %v, want ErrNoSuchRow", err)
	}
}
