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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codepr/forgeci/internal/model"
)

// testListPrefix is the line prefix ctest's --show-only=human output uses
// for every discovered test (§4.6 step 4).
const testListPrefix = "  Test "

// Dispatcher checks a claimed task out and runs it to completion, reporting
// progress and the terminal result back to the Coordinator (§4.5, §4.6).
type Dispatcher struct {
	client         *Client
	mirror         *Mirror
	qemu           *QemuRunner
	scratchRoot    string
	shutdownIntent *int32
}

// NewDispatcher wires the pieces a claimed task needs to run: the HTTP
// client back to the Coordinator, the git mirror, and the qemu runner.
func NewDispatcher(client *Client, mirror *Mirror, qemu *QemuRunner, scratchRoot string, shutdownIntent *int32) *Dispatcher {
	return &Dispatcher{client: client, mirror: mirror, qemu: qemu, scratchRoot: scratchRoot, shutdownIntent: shutdownIntent}
}

func (d *Dispatcher) supervisor() *Supervisor {
	return &Supervisor{ShutdownIntent: d.shutdownIntent}
}

// runStep runs one local subprocess, streaming its output to the
// Coordinator as Running task-update progress, and returns its exit code.
func (d *Dispatcher) runStep(taskID int64, name string, args []string) (string, int, error) {
	var output strings.Builder
	code, err := d.supervisor().Run(name, args, func(chunk string) {
		output.WriteString(chunk)
		d.client.UpdateTask(taskID, model.StatusRunning, nil, chunk)
	})
	return output.String(), code, err
}

// Dispatch checks out task's commit and runs it to completion (§4.5).
func (d *Dispatcher) Dispatch(task *ClaimedTask) error {
	if err := d.mirror.Update(); err != nil {
		return d.client.UpdateTask(task.TaskID, model.StatusFailed, nil,
			fmt.Sprintf("commit %s is not reachable: mirror update failed: %v", task.CommitID, err))
	}

	if _, err := d.mirror.ResolveCommit(task.CommitID); err != nil {
		return d.client.UpdateTask(task.TaskID, model.StatusFailed, nil,
			fmt.Sprintf("commit %s does not exist", task.CommitID))
	}

	scratch := filepath.Join(d.scratchRoot, fmt.Sprintf("task-%d", task.TaskID))
	defer os.RemoveAll(scratch)
	if err := d.mirror.CheckoutInto(scratch, task.CommitID); err != nil {
		return d.client.UpdateTask(task.TaskID, model.StatusFailed, nil, err.Error())
	}

	d.client.UpdateTask(task.TaskID, model.StatusRunning, nil, "")

	switch task.TaskType {
	case model.TaskStaticAnalyser, model.TaskClangTidy, model.TaskClangFormat:
		return d.client.UpdateTask(task.TaskID, model.StatusSkipped, nil, "")
	case model.TaskTests:
		return d.runTests(task, scratch)
	default:
		return fmt.Errorf("worker: unhandled task type %v", task.TaskType)
	}
}

func (d *Dispatcher) runTests(task *ClaimedTask, scratch string) error {
	setup := task.TestSetup
	buildDir := filepath.Join(scratch, "build")

	cmakeArgs := []string{
		"-S", scratch,
		"-B", buildDir,
		"-G", "Ninja",
		"--toolchain", filepath.Join(scratch, "cmake/toolchain_for_target_hardware.cmake"),
		"--fresh",
	}
	if setup.CompilerID == model.CompilerGccFromDistro {
		linkerScript := filepath.Join(scratch, "linkerscripts/matching_layout_from_vendor.ld")
		cmakeArgs = append(cmakeArgs, fmt.Sprintf("-DCMAKE_EXE_LINKER_FLAGS_INIT=-T%s", linkerScript))
	}
	if _, code, err := d.runStep(task.TaskID, "cmake", cmakeArgs); err != nil || code != 0 {
		return d.failTests(task.TaskID, "cmake generation failed", err)
	}

	if _, code, err := d.runStep(task.TaskID, "ninja", []string{"-C", buildDir, "--verbose", "all"}); err != nil || code != 0 {
		return d.failTests(task.TaskID, "ninja build failed", err)
	}

	if setup.RequiredTests == model.RequiredNoTestsOnlyCompile {
		return d.client.UpdateTask(task.TaskID, model.StatusSuccess, nil, "compilation finished")
	}

	listing, _, err := d.runStep(task.TaskID, "ctest", []string{"--test-dir", buildDir, "--show-only=human"})
	if err != nil {
		return d.failTests(task.TaskID, "failed to enumerate tests with ctest", err)
	}
	available := parseAvailableTests(listing)

	if setup.RequiredTests == model.RequiredOnlySpecifiedTests {
		if unknown := unknownTests(setup.MentionedTestNames(), available); len(unknown) > 0 {
			return d.client.UpdateTask(task.TaskID, model.StatusFailed, intPtr(2),
				fmt.Sprintf("following tests requested but not found: %s", strings.Join(unknown, ", ")))
		}
	}

	toRun := dedupe(testsToExecute(setup, available))
	targets := selectedTargets(setup)
	if len(targets) == 0 {
		return d.client.UpdateTask(task.TaskID, model.StatusFailed, intPtr(2), "no execution target selected")
	}

	targetNames := make([]string, len(targets))
	for i, t := range targets {
		targetNames[i] = registerTargetName(t)
	}
	if err := d.client.RegisterTestList(task.TaskID, toRun, targetNames); err != nil {
		return err
	}

	hasError := false
	for _, testName := range toRun {
		for _, target := range targets {
			switch target {
			case model.TargetQemu:
				if d.runQemuTest(task, buildDir, testName) {
					hasError = true
				}
			case model.TargetRealHardware:
				d.client.ReportTestChange(task.TaskID, testName, target, "Start", "", nil)
				skipped := model.StatusSkipped
				d.client.ReportTestChange(task.TaskID, testName, target, "Finish", "", &skipped)
			}
		}
	}

	final := model.StatusSuccess
	if hasError {
		final = model.StatusFailed
	}
	return d.client.UpdateTask(task.TaskID, final, nil, fmt.Sprintf("done with task %d", task.TaskID))
}

// runQemuTest runs a single test under the qemu target and reports
// Start/Progress/Finish to the Coordinator. It returns true if the run
// counts as an error toward the task's overall status.
func (d *Dispatcher) runQemuTest(task *ClaimedTask, buildDir, testName string) bool {
	target := model.TargetQemu
	d.client.ReportTestChange(task.TaskID, testName, target, "Start", "", nil)

	const containerBuildDir = "/build"
	cmd := []string{
		"ctest", "--test-dir", containerBuildDir, "--verbose", "--no-tests=error",
		"--tests-regex", "^" + testName + "$",
	}
	status, code, err := d.qemu.RunTest(context.Background(), buildDir, cmd, func(chunk string) {
		d.client.ReportTestChange(task.TaskID, testName, target, "Progress", chunk, nil)
	})
	if err != nil {
		status = model.StatusFailed
		code = 2
	}

	d.client.ReportTestChange(task.TaskID, testName, target, "Finish", "", &status)
	return status != model.StatusSuccess || code != 0
}

func (d *Dispatcher) failTests(taskID int64, reason string, cause error) error {
	msg := reason
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", reason, cause)
	}
	return d.client.UpdateTask(taskID, model.StatusFailed, intPtr(2), msg)
}

func parseAvailableTests(listing string) []string {
	var tests []string
	for _, line := range strings.Split(listing, "\n") {
		if !strings.HasPrefix(line, testListPrefix) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 3 {
			tests = append(tests, fields[2])
		}
	}
	return tests
}

func unknownTests(requested, available []string) []string {
	known := make(map[string]bool, len(available))
	for _, t := range available {
		known[t] = true
	}
	var unknown []string
	for _, t := range requested {
		if !known[t] {
			unknown = append(unknown, t)
		}
	}
	return unknown
}

func testsToExecute(setup *model.TestSetup, available []string) []string {
	switch setup.RequiredTests {
	case model.RequiredAllTests:
		return append([]string(nil), available...)
	case model.RequiredAllTestsExcept:
		excluded := make(map[string]bool)
		for _, t := range setup.MentionedTestNames() {
			excluded[t] = true
		}
		var out []string
		for _, t := range available {
			if !excluded[t] {
				out = append(out, t)
			}
		}
		return out
	case model.RequiredOnlySpecifiedTests:
		return setup.MentionedTestNames()
	default:
		return nil
	}
}

func dedupe(tests []string) []string {
	seen := make(map[string]bool, len(tests))
	var out []string
	for _, t := range tests {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func selectedTargets(setup *model.TestSetup) []model.Target {
	var targets []model.Target
	if setup.RunTestsOnQemu != nil && *setup.RunTestsOnQemu {
		targets = append(targets, model.TargetQemu)
	}
	if setup.RunTestsOnRealHardware != nil && *setup.RunTestsOnRealHardware {
		targets = append(targets, model.TargetRealHardware)
	}
	return targets
}

func intPtr(v int) *int { return &v }

// registerTargetName renders a target the way the register-test-list
// endpoint expects it, distinct from the titlecase report-test-change form
// (§6).
func registerTargetName(t model.Target) string {
	switch t {
	case model.TargetQemu:
		return "qemu"
	case model.TargetRealHardware:
		return "real_hardware"
	default:
		return ""
	}
}
