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
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codepr/forgeci/internal/model"
)

// Client talks to the Coordinator's four worker-facing endpoints (claim,
// update task, register test list, report test change) on behalf of the
// claim loop (§6).
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client against a Coordinator listening at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) post(path string, form url.Values) (string, error) {
	resp, err := c.http.PostForm(c.baseURL+path, form)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("worker: %s returned %d: %s", path, resp.StatusCode, string(body))
	}
	return string(body), nil
}

func boolForm(b bool) string {
	if b {
		return "true"
	}
	return ""
}

// ClaimTask advertises caps and parses whatever the Coordinator replies
// with (§4.5).
func (c *Client) ClaimTask(caps *Capabilities) (*ClaimedTask, error) {
	form := url.Values{
		"accept_static_analyser_task":              {boolForm(caps.AcceptStaticAnalyserTask)},
		"accept_clang_format_task":                 {boolForm(caps.AcceptClangFormatTask)},
		"accept_clang_tidy_task":                   {boolForm(caps.AcceptClangTidyTask)},
		"accept_compile_with_gcc_hardware_vendor":  {boolForm(caps.AcceptCompileWithGccHardwareVendor)},
		"accept_compile_with_gcc_distro":           {boolForm(caps.AcceptCompileWithGccDistro)},
		"accept_run_tests_on_qemu":                 {boolForm(caps.AcceptRunTestsOnQemu)},
		"accept_run_tests_on_real_hardware":        {boolForm(caps.AcceptRunTestsOnRealHardware)},
		"hostname":                                 {caps.Hostname},
	}
	body, err := c.post("/task/claim", form)
	if err != nil {
		return nil, err
	}
	return ParseClaimResponse(body)
}

// UpdateTask reports the terminal (or Running) status of a task (§4.5 step 6).
func (c *Client) UpdateTask(taskID int64, status model.Status, retCode *int, output string) error {
	form := url.Values{
		"task_id":       {strconv.FormatInt(taskID, 10)},
		"return_status": {status.String()},
		"output":        {output},
	}
	if retCode != nil {
		form.Set("ret_code", strconv.Itoa(*retCode))
	}
	_, err := c.post("/task/update", form)
	return err
}

// RegisterTestList fans the (tests x targets) cross product out on the
// Coordinator ahead of execution (§4.4, §4.6 step 7).
func (c *Client) RegisterTestList(taskID int64, tests, targets []string) error {
	form := url.Values{
		"task_id":      {strconv.FormatInt(taskID, 10)},
		"tests_to_add": {strings.Join(tests, " ")},
		"targets":      {strings.Join(targets, " ")},
	}
	_, err := c.post("/test/register", form)
	return err
}

// ReportTestChange posts one Start/Progress/Finish update for a single
// (test, target) pair (§4.4, §4.6 step 8).
func (c *Client) ReportTestChange(taskID int64, testName string, target model.Target, op string, output string, status *model.Status) error {
	form := url.Values{
		"task_id":   {strconv.FormatInt(taskID, 10)},
		"test_name": {testName},
		"target":    {target.String()},
		"operation": {op},
		"output":    {output},
	}
	if status != nil {
		form.Set("status", status.String())
	}
	_, err := c.post("/test/report", form)
	return err
}
