package coordinator

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/codepr/forgeci/internal/store"
)

// newTestStore exposes the unexported store constructor pattern used by the
// store package's own tests: wrap a sqlmock connection directly.
func newTestStore(t *testing.T) (*store.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	return store.FromDB(db), mock, func() { db.Close() }
}

func TestHandleClaimTaskNoSuitableTask(t *testing.T) {
	st, mock, cleanup := newTestStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{
		"id", "commit_id", "task_type", "id", "compiler_id", "required_tests", "mentioned_tests", "run_tests_on_qemu", "run_tests_on_real_hardware",
	}))

	req := httptest.NewRequest(http.MethodPost, "/task/claim", strings.NewReader(url.Values{
		"hostname": {"worker-1"},
	}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	handleClaimTask(st).ServeHTTP(rec, req)

	if rec.Body.String() != NoSuitableTaskFound {
		t.Fatalf("handleClaimTask() body = %q, want %q", rec.Body.String(), NoSuitableTaskFound)
	}
}

func TestHandleUpdateTaskOK(t *testing.T) {
	st, mock, cleanup := newTestStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT job_id FROM tasks WHERE id = ?`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}).AddRow(1))
	mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodPost, "/task/update", strings.NewReader(url.Values{
		"task_id":       {"5"},
		"return_status": {"Success"},
		"ret_code":      {"0"},
		"output":        {"done"},
	}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	handleUpdateTask(st).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("handleUpdateTask() status = %d, body = %q", rec.Code, rec.Body.String())
	}
}

func TestHandleUpdateTaskRejectsUnknownStatus(t *testing.T) {
	st, _, cleanup := newTestStore(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/task/update", strings.NewReader(url.Values{
		"task_id":       {"5"},
		"return_status": {"Bogus"},
	}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	handleUpdateTask(st).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("handleUpdateTask() status = %d, want 400", rec.Code)
	}
}
