package worker

import (
	"strings"
	"testing"
)

func TestSupervisorRunStreamsOutputAndExitCode(t *testing.T) {
	sup := &Supervisor{}
	var chunks []string
	code, err := sup.Run("/bin/sh", []string{"-c", "echo out-line; echo err-line 1>&2"}, func(chunk string) {
		chunks = append(chunks, chunk)
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if code != 0 {
		t.Fatalf("Run() exit code = %d, want 0", code)
	}
	joined := strings.Join(chunks, "")
	if !strings.Contains(joined, "stdout: out-line") {
		t.Errorf("Run() output = %q, missing stdout line", joined)
	}
	if !strings.Contains(joined, "stderr: err-line") {
		t.Errorf("Run() output = %q, missing stderr line", joined)
	}
}

func TestSupervisorRunNonZeroExit(t *testing.T) {
	sup := &Supervisor{}
	code, err := sup.Run("/bin/sh", []string{"-c", "exit 2"}, func(string) {})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if code != 2 {
		t.Fatalf("Run() exit code = %d, want 2", code)
	}
}

func TestSupervisorRunImmediateShutdownKillsProcess(t *testing.T) {
	intent := ShutdownImmediate
	sup := &Supervisor{ShutdownIntent: &intent}
	var chunks []string
	code, err := sup.Run("/bin/sh", []string{"-c", "sleep 5"}, func(chunk string) {
		chunks = append(chunks, chunk)
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if code == 0 {
		t.Errorf("Run() exit code = 0, want non-zero after forced kill")
	}
	joined := strings.Join(chunks, "")
	if !strings.Contains(joined, "Stopping process due to user request to stop the worker") {
		t.Errorf("Run() output missing manual-stop notice, got %q", joined)
	}
}
