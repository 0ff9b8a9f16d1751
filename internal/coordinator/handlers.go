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
	"net/http"
	"strconv"
	"strings"

	"github.com/codepr/forgeci/internal/model"
	"github.com/codepr/forgeci/internal/store"
)

func formBool(r *http.Request, key string) bool {
	return r.FormValue(key) != ""
}

func handleSubmitJob(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form body", http.StatusBadRequest)
			return
		}

		requiredTests, err := parseRequiredTests(r.FormValue("tests_to_run"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		sub := store.Submission{
			CommitID:                     r.FormValue("commit_to_use"),
			RequiredTests:                requiredTests,
			ExplicitlyDisabledTests:      strings.Fields(r.FormValue("explicitly_disabled_tests")),
			ExplicitlyEnabledTests:       strings.Fields(r.FormValue("explicitly_enabled_tests")),
			CompileWithHardwareVendorGcc: formBool(r, "compile_with_gcc_from_hardware_vendor"),
			CompileWithDistroGcc:         formBool(r, "compile_with_gccFromDistro"),
			RunTestsOnQemu:               formBool(r, "run_tests_on_qemu"),
			RunTestsOnRealHardware:       formBool(r, "run_tests_on_real_hardware"),
			RunStaticAnalyser:            formBool(r, "run_static_analyser"),
			RunClangTidy:                 formBool(r, "run_clang_tidy"),
			RunClangFormat:               formBool(r, "run_clang_format"),
		}
		if email := r.FormValue("email_to_notify_on_completion"); email != "" {
			sub.Email = &email
		}

		jobID, err := st.SubmitJob(sub)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Write([]byte("OK job " + strconv.FormatInt(jobID, 10)))
	}
}

func parseRequiredTests(variant string) (model.RequiredTests, error) {
	switch variant {
	case "AllTests":
		return model.RequiredAllTests, nil
	case "NoTestsOnlyCompile":
		return model.RequiredNoTestsOnlyCompile, nil
	case "NotEvenCompile":
		return model.RequiredNotEvenCompile, nil
	case "AllTestsExcept":
		return model.RequiredAllTestsExcept, nil
	case "OnlySpecifiedTests":
		return model.RequiredOnlySpecifiedTests, nil
	default:
		return 0, store.ErrEmptyRequest
	}
}

func handleClaimTask(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form body", http.StatusBadRequest)
			return
		}

		caps := store.WorkerCapabilities{
			AcceptStaticAnalyserTask:           formBool(r, "accept_static_analyser_task"),
			AcceptClangFormatTask:              formBool(r, "accept_clang_format_task"),
			AcceptClangTidyTask:                formBool(r, "accept_clang_tidy_task"),
			AcceptCompileWithGccHardwareVendor: formBool(r, "accept_compile_with_gcc_hardware_vendor"),
			AcceptCompileWithGccDistro:         formBool(r, "accept_compile_with_gcc_distro"),
			AcceptRunTestsOnQemu:               formBool(r, "accept_run_tests_on_qemu"),
			AcceptRunTestsOnRealHardware:       formBool(r, "accept_run_tests_on_real_hardware"),
			Hostname:                           r.FormValue("hostname"),
		}

		claimed, err := st.ClaimTask(caps)
		switch err {
		case nil:
			w.Write([]byte(RenderClaimResponse(claimed)))
		case store.ErrNoTaskAvailable:
			w.Write([]byte(NoSuitableTaskFound))
		case store.ErrInconsistent:
			http.Error(w, "Inconsistent", http.StatusInternalServerError)
		default:
			http.Error(w, "StoreError", http.StatusInternalServerError)
		}
	}
}

func handleUpdateTask(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form body", http.StatusBadRequest)
			return
		}

		taskID, err := strconv.ParseInt(r.FormValue("task_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid task_id", http.StatusBadRequest)
			return
		}
		status, err := model.StatusFromString(r.FormValue("return_status"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var retCode *int
		if raw := r.FormValue("ret_code"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				http.Error(w, "invalid ret_code", http.StatusBadRequest)
				return
			}
			retCode = &v
		}

		if err := st.UpdateTask(taskID, status, retCode, r.FormValue("output")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Write([]byte("OK"))
	}
}

func handleRegisterTestList(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form body", http.StatusBadRequest)
			return
		}

		taskID, err := strconv.ParseInt(r.FormValue("task_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid task_id", http.StatusBadRequest)
			return
		}
		tests := strings.Fields(r.FormValue("tests_to_add"))
		targets := strings.Fields(r.FormValue("targets"))

		if err := st.RegisterTestList(taskID, tests, targets); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Write([]byte("OK"))
	}
}

func handleReportTestChange(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form body", http.StatusBadRequest)
			return
		}

		taskID, err := strconv.ParseInt(r.FormValue("task_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid task_id", http.StatusBadRequest)
			return
		}
		target, err := model.TargetFromString(r.FormValue("target"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var op store.TestChangeOperation
		switch r.FormValue("operation") {
		case "Start":
			op = store.TestChangeStart
		case "Progress":
			op = store.TestChangeProgress
		case "Finish":
			op = store.TestChangeFinish
		default:
			http.Error(w, "unknown operation", http.StatusBadRequest)
			return
		}

		var output *string
		if raw := r.FormValue("output"); raw != "" {
			output = &raw
		}
		var finishStatus *model.Status
		if raw := r.FormValue("status"); raw != "" {
			s, err := model.StatusFromString(raw)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			finishStatus = &s
		}

		if err := st.ReportTestChange(taskID, r.FormValue("test_name"), target, op, output, finishStatus); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Write([]byte("OK"))
	}
}
