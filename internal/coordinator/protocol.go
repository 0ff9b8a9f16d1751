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

package coordinator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/codepr/forgeci/internal/model"
	"github.com/codepr/forgeci/internal/store"
)

// NoSuitableTaskFound is the sentinel claim-response body meaning nothing
// eligible was found for the advertised capabilities (§6).
const NoSuitableTaskFound = "no suitable task found for the advertised capabilities"

// requiredTestsWireName renders the Test type line's variant, matching the
// embedded-list Debug-style formatting used by the original claim
// responder: a bare name for the list-free variants, a quoted
// whitespace-joined name list for the two that carry one.
func requiredTestsWireName(setup *model.TestSetup) string {
	switch setup.RequiredTests {
	case model.RequiredAllTests:
		return "AllTests"
	case model.RequiredNoTestsOnlyCompile:
		return "NoTestOnlyCompile"
	case model.RequiredAllTestsExcept:
		return fmt.Sprintf("AllTestExcept(%q)", strings.Join(setup.MentionedTestNames(), " "))
	case model.RequiredOnlySpecifiedTests:
		return fmt.Sprintf("OnlySpecifiedTests(%q)", strings.Join(setup.MentionedTestNames(), " "))
	default:
		panic(fmt.Sprintf("coordinator: %v has no claim-response wire form", setup.RequiredTests))
	}
}

// RenderClaimResponse formats a claimed task as the plain-text reply the
// worker's claim loop parses (§6).
func RenderClaimResponse(c *store.ClaimedTask) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task id: %d\n", c.TaskID)
	fmt.Fprintf(&b, "Git Hash: %s\n", c.CommitID)
	fmt.Fprintf(&b, "Type: %s\n", c.TaskType)

	if c.TaskType != model.TaskTests {
		return b.String()
	}

	setup := c.TestSetup
	fmt.Fprintf(&b, "Test setup id: %d\n", setup.ID)
	fmt.Fprintf(&b, "Test type: %s\n", requiredTestsWireName(setup))
	fmt.Fprintf(&b, "Compiler: %s\n", setup.CompilerID)

	if setup.RequiredTests.NeedsTarget() {
		fmt.Fprintf(&b, "Run tests on qemu: %s\n", strconv.FormatBool(boolValue(setup.RunTestsOnQemu)))
		fmt.Fprintf(&b, "Run tests on real hardware: %s\n", strconv.FormatBool(boolValue(setup.RunTestsOnRealHardware)))
	}

	return b.String()
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
