package store

import (
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/codepr/forgeci/internal/model"
)

func validSubmission() Submission {
	return Submission{
		CommitID:          "abc123",
		RequiredTests:     model.RequiredNotEvenCompile,
		RunStaticAnalyser: true,
	}
}

func TestSubmissionValidateEmptyRequest(t *testing.T) {
	sub := Submission{CommitID: "abc123", RequiredTests: model.RequiredNotEvenCompile}
	if err := sub.validate(); err != ErrEmptyRequest {
		t.Fatalf("validate() = %v, want ErrEmptyRequest", err)
	}
}

func TestSubmissionValidateInvalidCommit(t *testing.T) {
	sub := validSubmission()
	sub.CommitID = "zz"
	if err := sub.validate(); err != ErrInvalidCommit {
		t.Fatalf("validate() = %v, want ErrInvalidCommit", err)
	}
}

func TestSubmissionValidateNoCompilerChosen(t *testing.T) {
	sub := Submission{CommitID: "abc123", RequiredTests: model.RequiredAllTests, RunTestsOnQemu: true}
	if err := sub.validate(); err != ErrNoCompilerChosen {
		t.Fatalf("validate() = %v, want ErrNoCompilerChosen", err)
	}
}

func TestSubmissionValidateNoTargetChosen(t *testing.T) {
	sub := Submission{
		CommitID:                     "abc123",
		RequiredTests:                model.RequiredAllTests,
		CompileWithHardwareVendorGcc: true,
	}
	if err := sub.validate(); err != ErrNoTargetChosen {
		t.Fatalf("validate() = %v, want ErrNoTargetChosen", err)
	}
}

func TestSubmissionValidateEmptyTestListAllExcept(t *testing.T) {
	sub := Submission{
		CommitID:                     "abc123",
		RequiredTests:                model.RequiredAllTestsExcept,
		CompileWithHardwareVendorGcc: true,
		RunTestsOnQemu:               true,
	}
	if err := sub.validate(); err != ErrEmptyTestList {
		t.Fatalf("validate() = %v, want ErrEmptyTestList", err)
	}
}

func TestSubmissionValidateEmptyTestListOnlySpecified(t *testing.T) {
	sub := Submission{
		CommitID:                     "abc123",
		RequiredTests:                model.RequiredOnlySpecifiedTests,
		CompileWithHardwareVendorGcc: true,
		RunTestsOnQemu:               true,
	}
	if err := sub.validate(); err != ErrEmptyTestList {
		t.Fatalf("validate() = %v, want ErrEmptyTestList", err)
	}
}

func TestSubmissionValidateOK(t *testing.T) {
	sub := validSubmission()
	if err := sub.validate(); err != nil {
		t.Fatalf("validate() = %v, want nil", err)
	}

	both := Submission{
		CommitID:                     "deadbeef",
		RequiredTests:                model.RequiredAllTests,
		CompileWithHardwareVendorGcc: true,
		CompileWithDistroGcc:         true,
		RunTestsOnQemu:               true,
	}
	if err := both.validate(); err != nil {
		t.Fatalf("validate() = %v, want nil", err)
	}
}

func TestSubmitJobRejectsInvalidSubmission(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()
	s := &Store{db: db}

	sub := Submission{CommitID: "abc123", RequiredTests: model.RequiredNotEvenCompile}
	if _, err := s.SubmitJob(sub); err != ErrEmptyRequest {
		t.Fatalf("SubmitJob() error = %v, want ErrEmptyRequest", err)
	}
}

func TestSubmitJobBothCompilersSplitsTestsTask(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()
	s := &Store{db: db}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO jobs (commit_id, email, status) VALUES (?, ?, ?)`)).
		WithArgs("deadbeef", nil, model.StatusPending).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// distro task (full setup) then hardware-vendor task (forced compile-only)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tasks (job_id, task_type, status) VALUES (?, ?, ?)`)).
		WithArgs(int64(1), model.TaskTests, model.StatusPending).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO test_setup`)).
		WithArgs(int64(10), model.CompilerGccFromDistro, model.RequiredAllTests, nil, true, false).
		WillReturnResult(sqlmock.NewResult(10, 1))

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tasks (job_id, task_type, status) VALUES (?, ?, ?)`)).
		WithArgs(int64(1), model.TaskTests, model.StatusPending).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO test_setup`)).
		WithArgs(int64(11), model.CompilerGccFromHardwareVendor, model.RequiredNoTestsOnlyCompile, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(11, 1))

	mock.ExpectCommit()

	sub := Submission{
		CommitID:                     "deadbeef",
		RequiredTests:                model.RequiredAllTests,
		CompileWithHardwareVendorGcc: true,
		CompileWithDistroGcc:         true,
		RunTestsOnQemu:               true,
	}
	jobID, err := s.SubmitJob(sub)
	if err != nil {
		t.Fatalf("SubmitJob() error: %v", err)
	}
	if jobID != 1 {
		t.Fatalf("SubmitJob() job id = %d, want 1", jobID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
