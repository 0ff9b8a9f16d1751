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

// Package model is the shared domain vocabulary between the Coordinator and
// the Worker: the enum <-> integer encodings persisted in the store and sent
// over the wire, and the plain data carriers for Job, Task, TestSetup and
// TestRun. Nothing here touches SQL or HTTP; it's kept dependency-free so
// both sides of the protocol can import it without dragging the other in.
package model

import "fmt"

// Status is the lifecycle state shared by jobs, tasks and test runs.
type Status int

const (
	StatusPending Status = iota + 1
	StatusRunning
	StatusSuccess
	StatusFailed
	StatusTimeout
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusRunning:
		return "Running"
	case StatusSuccess:
		return "Success"
	case StatusFailed:
		return "Failed"
	case StatusTimeout:
		return "Timeout"
	case StatusSkipped:
		return "Skipped"
	default:
		panic(fmt.Sprintf("model: unknown status %d", int(s)))
	}
}

// StatusFromString decodes one of the wire variant names used by the
// update-task and report-test-change endpoints.
func StatusFromString(s string) (Status, error) {
	switch s {
	case "Running":
		return StatusRunning, nil
	case "Success":
		return StatusSuccess, nil
	case "Failed":
		return StatusFailed, nil
	case "Timeout":
		return StatusTimeout, nil
	case "Skipped":
		return StatusSkipped, nil
	case "Pending":
		return StatusPending, nil
	default:
		return 0, fmt.Errorf("model: unknown status variant %q", s)
	}
}

// TaskType is the kind of unit of work a Task represents.
type TaskType int

const (
	TaskStaticAnalyser TaskType = iota + 1
	TaskClangFormat
	TaskClangTidy
	TaskTests
)

func (t TaskType) String() string {
	switch t {
	case TaskStaticAnalyser:
		return "StaticAnalyser"
	case TaskClangFormat:
		return "ClangFormat"
	case TaskClangTidy:
		return "ClangTidy"
	case TaskTests:
		return "Tests"
	default:
		panic(fmt.Sprintf("model: unknown task type %d", int(t)))
	}
}

// Compiler identifies which toolchain a Tests task was set up to exercise.
type Compiler int

const (
	CompilerGccFromHardwareVendor Compiler = iota + 1
	CompilerGccFromDistro
)

func (c Compiler) String() string {
	switch c {
	case CompilerGccFromHardwareVendor:
		return "GccFromHardwareVendor"
	case CompilerGccFromDistro:
		return "GccFromDistro"
	default:
		panic(fmt.Sprintf("model: unknown compiler %d", int(c)))
	}
}

// RequiredTests is the tag selecting which subset of a project's test suite
// a Tests task must run.
type RequiredTests int

const (
	RequiredAllTests RequiredTests = iota + 1
	RequiredNoTestsOnlyCompile
	RequiredNotEvenCompile
	RequiredAllTestsExcept
	RequiredOnlySpecifiedTests
)

// NeedsTarget reports whether this tag requires at least one execution
// target (qemu/real hardware) to be selected.
func (r RequiredTests) NeedsTarget() bool {
	switch r {
	case RequiredAllTests, RequiredAllTestsExcept, RequiredOnlySpecifiedTests:
		return true
	default:
		return false
	}
}

// Target is a test execution environment.
type Target int

const (
	TargetQemu Target = iota + 1
	TargetRealHardware
)

func (t Target) String() string {
	switch t {
	case TargetQemu:
		return "Qemu"
	case TargetRealHardware:
		return "RealHardware"
	default:
		panic(fmt.Sprintf("model: unknown target %d", int(t)))
	}
}

// TargetFromString decodes the wire form of a target name, accepting both
// the lowercase (register-test-list) and titlecase (report-test-change)
// spellings used by the two endpoints.
func TargetFromString(s string) (Target, error) {
	switch s {
	case "qemu", "Qemu":
		return TargetQemu, nil
	case "real_hardware", "RealHardware":
		return TargetRealHardware, nil
	default:
		return 0, fmt.Errorf("model: unknown target %q", s)
	}
}

// FinishRetCode is the canonical ret_code mapping applied when a test run
// finishes (§4.4).
func FinishRetCode(s Status) *int {
	code := func(v int) *int { return &v }
	switch s {
	case StatusSuccess:
		return code(0)
	case StatusFailed:
		return code(1)
	case StatusTimeout:
		return code(124)
	case StatusSkipped:
		return nil
	default:
		panic(fmt.Sprintf("model: %s is not a terminal test-run status", s))
	}
}

// Job is one user submission against a source commit.
type Job struct {
	ID        int64
	CommitID  string
	AddedAt   string
	Email     *string
	Status    Status
}

// Task is one independently executable unit belonging to a Job.
type Task struct {
	ID         int64
	JobID      int64
	TaskType   TaskType
	Status     Status
	RetCode    *int
	Output     string
	StartedAt  *string
	FinishedAt *string
	ExecutedOn *string
}

// TestSetup holds the parameters of a Tests task.
type TestSetup struct {
	ID                     int64
	TaskID                 int64
	CompilerID             Compiler
	RequiredTests          RequiredTests
	MentionedTests         *string
	RunTestsOnQemu         *bool
	RunTestsOnRealHardware *bool
}

// MentionedTestNames splits the whitespace-separated mentioned_tests column.
func (s TestSetup) MentionedTestNames() []string {
	if s.MentionedTests == nil {
		return nil
	}
	return splitWhitespace(*s.MentionedTests)
}

// TestRun is one (test name, target) outcome within a Tests task.
type TestRun struct {
	ID         int64
	TaskID     int64
	TestName   string
	TargetID   Target
	Status     Status
	RetCode    *int
	StartedAt  *string
	FinishedAt *string
	Output     string
}

// IsValidGitHash reports whether s is an acceptable commit identifier: an
// ASCII hex string of length 3 to 64 inclusive. Shorter strings are rejected
// even though git itself will resolve very short abbreviations, because an
// abbreviation under 3 characters is too likely to collide.
func IsValidGitHash(s string) bool {
	l := len(s)
	if l < 3 || l > 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func splitWhitespace(s string) []string {
	var out []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}
