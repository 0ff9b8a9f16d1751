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

package worker

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/codepr/forgeci/internal/model"
)

// ErrNoTaskAvailable mirrors the claim-response sentinel string (§6).
var ErrNoTaskAvailable = fmt.Errorf("no task available")

// ClaimedTask is the worker-side view of a task descriptor parsed out of a
// claim response.
type ClaimedTask struct {
	TaskID    int64
	CommitID  string
	TaskType  model.TaskType
	TestSetup *model.TestSetup
}

func taskTypeFromWire(s string) (model.TaskType, error) {
	switch s {
	case "StaticAnalyser":
		return model.TaskStaticAnalyser, nil
	case "ClangFormat":
		return model.TaskClangFormat, nil
	case "ClangTidy":
		return model.TaskClangTidy, nil
	case "Tests":
		return model.TaskTests, nil
	default:
		return 0, fmt.Errorf("worker: unknown task type %q", s)
	}
}

func compilerFromWire(s string) (model.Compiler, error) {
	switch s {
	case "GccFromHardwareVendor":
		return model.CompilerGccFromHardwareVendor, nil
	case "GccFromDistro":
		return model.CompilerGccFromDistro, nil
	default:
		return 0, fmt.Errorf("worker: unknown compiler %q", s)
	}
}

// parseRequiredTests decodes the "Test type: ..." value, which for
// AllTestExcept/OnlySpecifiedTests carries a quoted, whitespace-joined test
// name list as a parenthesized argument.
func parseRequiredTests(s string) (model.RequiredTests, []string, error) {
	switch {
	case s == "AllTests":
		return model.RequiredAllTests, nil, nil
	case s == "NoTestOnlyCompile":
		return model.RequiredNoTestsOnlyCompile, nil, nil
	case strings.HasPrefix(s, "AllTestExcept(") && strings.HasSuffix(s, ")"):
		names := unquoteList(s, "AllTestExcept(")
		return model.RequiredAllTestsExcept, names, nil
	case strings.HasPrefix(s, "OnlySpecifiedTests(") && strings.HasSuffix(s, ")"):
		names := unquoteList(s, "OnlySpecifiedTests(")
		return model.RequiredOnlySpecifiedTests, names, nil
	default:
		return 0, nil, fmt.Errorf("worker: unknown test type %q", s)
	}
}

func unquoteList(s, prefix string) []string {
	inner := strings.TrimSuffix(strings.TrimPrefix(s, prefix), ")")
	inner = strings.Trim(inner, `"`)
	if inner == "" {
		return nil
	}
	return strings.Fields(inner)
}

func parseWireBool(s string) (bool, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("worker: invalid boolean %q", s)
	}
}

// ParseClaimResponse parses the Coordinator's plain-text claim reply. It
// rejects anything not beginning with the strict Task id / Git Hash / Type
// line sequence, and returns ErrNoTaskAvailable for the sentinel body.
func ParseClaimResponse(body string) (*ClaimedTask, error) {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "no suitable task found") {
		return nil, ErrNoTaskAvailable
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	line := func(prefix string) (string, error) {
		if !scanner.Scan() {
			return "", fmt.Errorf("worker: claim response truncated before %q", prefix)
		}
		l := scanner.Text()
		if !strings.HasPrefix(l, prefix) {
			return "", fmt.Errorf("worker: expected %q, got %q", prefix, l)
		}
		return strings.TrimSpace(strings.TrimPrefix(l, prefix)), nil
	}

	idStr, err := line("Task id:")
	if err != nil {
		return nil, err
	}
	taskID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("worker: invalid task id %q", idStr)
	}

	commitID, err := line("Git Hash:")
	if err != nil {
		return nil, err
	}

	typeStr, err := line("Type:")
	if err != nil {
		return nil, err
	}
	taskType, err := taskTypeFromWire(typeStr)
	if err != nil {
		return nil, err
	}

	claimed := &ClaimedTask{TaskID: taskID, CommitID: commitID, TaskType: taskType}
	if taskType != model.TaskTests {
		return claimed, nil
	}

	setupIDStr, err := line("Test setup id:")
	if err != nil {
		return nil, err
	}
	setupID, err := strconv.ParseInt(setupIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("worker: invalid test setup id %q", setupIDStr)
	}

	typeValue, err := line("Test type:")
	if err != nil {
		return nil, err
	}
	required, mentioned, err := parseRequiredTests(typeValue)
	if err != nil {
		return nil, err
	}

	compilerStr, err := line("Compiler:")
	if err != nil {
		return nil, err
	}
	compiler, err := compilerFromWire(compilerStr)
	if err != nil {
		return nil, err
	}

	setup := &model.TestSetup{ID: setupID, TaskID: taskID, CompilerID: compiler, RequiredTests: required}
	if len(mentioned) > 0 {
		joined := strings.Join(mentioned, " ")
		setup.MentionedTests = &joined
	}

	if required.NeedsTarget() {
		qemuStr, err := line("Run tests on qemu:")
		if err != nil {
			return nil, err
		}
		qemu, err := parseWireBool(qemuStr)
		if err != nil {
			return nil, err
		}
		realHWStr, err := line("Run tests on real hardware:")
		if err != nil {
			return nil, err
		}
		realHW, err := parseWireBool(realHWStr)
		if err != nil {
			return nil, err
		}
		setup.RunTestsOnQemu = &qemu
		setup.RunTestsOnRealHardware = &realHW
	}

	claimed.TestSetup = setup
	return claimed, nil
}
