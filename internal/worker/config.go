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

// Package worker implements the long-running claim loop: advertise
// capabilities, claim a task, check out the requested commit, dispatch to
// the right toolchain, and stream results back incrementally.
package worker

import (
	"io/ioutil"

	"gopkg.in/yaml.v2"
)

// Capabilities is the worker's advertised capability set plus the identity
// it claims tasks under (§4.2, §6). Loaded from a YAML file so fleet
// operators can version which worker pools accept what.
type Capabilities struct {
	Hostname                           string `yaml:"hostname"`
	AcceptStaticAnalyserTask           bool   `yaml:"accept_static_analyser_task"`
	AcceptClangFormatTask              bool   `yaml:"accept_clang_format_task"`
	AcceptClangTidyTask                bool   `yaml:"accept_clang_tidy_task"`
	AcceptCompileWithGccHardwareVendor bool   `yaml:"accept_compile_with_gcc_hardware_vendor"`
	AcceptCompileWithGccDistro         bool   `yaml:"accept_compile_with_gcc_distro"`
	AcceptRunTestsOnQemu               bool   `yaml:"accept_run_tests_on_qemu"`
	AcceptRunTestsOnRealHardware       bool   `yaml:"accept_run_tests_on_real_hardware"`
}

// LoadCapabilities reads and parses a capability file.
func LoadCapabilities(path string) (*Capabilities, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Capabilities
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
