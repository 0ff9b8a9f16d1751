package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/codepr/forgeci/internal/model"
	"github.com/codepr/forgeci/internal/store"
)

const testSecret = "hunter2"

func TestHandlerRejectsBadSignature(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()
	st := store.FromDB(db)

	body := []byte(`{"head_commit": {"id": "abc123"}}`)
	req := httptest.NewRequest("POST", "/webhook/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature", "sha1=deadbeef")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")

	w := httptest.NewRecorder()
	Handler(st, []byte(testSecret), Defaults{RequiredTests: model.RequiredNotEvenCompile, RunStaticAnalyser: true})(w, req)

	if w.Code != 401 {
		t.Fatalf("Handler() status = %d, want 401", w.Code)
	}
}

func TestHandlerIgnoresNonPushEvents(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()
	st := store.FromDB(db)

	body := []byte(`{"action": "opened"}`)
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	mac1 := hmac.New(sha1.New, []byte(testSecret))
	mac1.Write(body)
	sig1 := "sha1=" + hex.EncodeToString(mac1.Sum(nil))

	req := httptest.NewRequest("POST", "/webhook/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-Hub-Signature", sig1)
	req.Header.Set("X-Hub-Signature-256", sig)

	w := httptest.NewRecorder()
	Handler(st, []byte(testSecret), Defaults{})(w, req)

	if w.Code != 200 || w.Body.String() != "ignored" {
		t.Fatalf("Handler() = %d %q, want 200 \"ignored\"", w.Code, w.Body.String())
	}
}

func TestHandlerSubmitsJobOnPush(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()
	st := store.FromDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO jobs").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("INSERT INTO tasks").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	body := []byte(`{"head_commit": {"id": "cafef00dcafef00dcafef00dcafef00dcafef00d"}, "ref": "refs/heads/main"}`)
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	mac1 := hmac.New(sha1.New, []byte(testSecret))
	mac1.Write(body)
	sig1 := "sha1=" + hex.EncodeToString(mac1.Sum(nil))

	req := httptest.NewRequest("POST", "/webhook/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature", sig1)
	req.Header.Set("X-Hub-Signature-256", sig)

	w := httptest.NewRecorder()
	Handler(st, []byte(testSecret), Defaults{RequiredTests: model.RequiredNotEvenCompile, RunStaticAnalyser: true})(w, req)

	if w.Code != 200 {
		t.Fatalf("Handler() status = %d, body = %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
