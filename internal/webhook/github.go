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

// Package webhook turns a GitHub push event straight into a job submission,
// bypassing the human submit-job form for commits pushed to a watched repo.
package webhook

import (
	"log"
	"net/http"

	"github.com/google/go-github/v32/github"

	"github.com/codepr/forgeci/internal/model"
	"github.com/codepr/forgeci/internal/store"
)

// Defaults is the job configuration applied to every push-triggered
// submission; there is no form to read per-push overrides from.
type Defaults struct {
	RequiredTests                model.RequiredTests
	CompileWithHardwareVendorGcc bool
	CompileWithDistroGcc         bool
	RunTestsOnQemu                bool
	RunTestsOnRealHardware        bool
	RunStaticAnalyser             bool
	RunClangTidy                  bool
	RunClangFormat                bool
}

// Handler validates and parses GitHub push webhooks, submitting one job per
// push straight to the store.
func Handler(st *store.Store, secret []byte, defaults Defaults) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := github.ValidatePayload(r, secret)
		if err != nil {
			log.Printf("webhook: invalid payload: %v", err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		defer r.Body.Close()

		event, err := github.ParseWebHook(github.WebHookType(r), payload)
		if err != nil {
			log.Printf("webhook: could not parse: %v", err)
			http.Error(w, "malformed payload", http.StatusBadRequest)
			return
		}

		push, ok := event.(*github.PushEvent)
		if !ok {
			log.Printf("webhook: ignored event type %s", github.WebHookType(r))
			w.Write([]byte("ignored"))
			return
		}

		headCommit := push.GetHeadCommit()
		if headCommit == nil {
			http.Error(w, "push event carries no head commit", http.StatusBadRequest)
			return
		}

		sub := store.Submission{
			CommitID:                     headCommit.GetID(),
			RequiredTests:                defaults.RequiredTests,
			CompileWithHardwareVendorGcc: defaults.CompileWithHardwareVendorGcc,
			CompileWithDistroGcc:         defaults.CompileWithDistroGcc,
			RunTestsOnQemu:               defaults.RunTestsOnQemu,
			RunTestsOnRealHardware:       defaults.RunTestsOnRealHardware,
			RunStaticAnalyser:            defaults.RunStaticAnalyser,
			RunClangTidy:                 defaults.RunClangTidy,
			RunClangFormat:               defaults.RunClangFormat,
		}

		jobID, err := st.SubmitJob(sub)
		if err != nil {
			log.Printf("webhook: submit job for commit %s: %v", sub.CommitID, err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("webhook: submitted job %d for commit %s", jobID, sub.CommitID)
		w.Write([]byte("OK"))
	}
}
