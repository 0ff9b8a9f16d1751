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

// Package coordinator serves the five request endpoints a job submitter and
// a worker pool use to drive the job/task/test-run state machine. It holds
// no state of its own beyond the store handle: every decision a handler
// makes is one query or one transaction away.
package coordinator

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codepr/forgeci/internal/model"
	"github.com/codepr/forgeci/internal/store"
	"github.com/codepr/forgeci/internal/webhook"
)

// Server wraps the coordinator's HTTP listener.
type Server struct {
	server *http.Server
}

func newRouter(st *store.Store, githubSecret []byte) *http.ServeMux {
	router := http.NewServeMux()
	router.Handle("/job", handleSubmitJob(st))
	router.Handle("/task/claim", handleClaimTask(st))
	router.Handle("/task/update", handleUpdateTask(st))
	router.Handle("/test/register", handleRegisterTestList(st))
	router.Handle("/test/report", handleReportTestChange(st))
	if len(githubSecret) > 0 {
		router.Handle("/webhook/github", webhook.Handler(st, githubSecret, webhook.Defaults{
			RequiredTests:         model.RequiredAllTests,
			CompileWithDistroGcc:  true,
			RunTestsOnQemu:        true,
			RunStaticAnalyser:     true,
		}))
	}
	return router
}

// NewServer builds a Coordinator HTTP server bound to addr, backed by st. A
// non-empty githubSecret additionally exposes /webhook/github (§4.1
// supplemented feature: push-triggered submissions).
func NewServer(addr string, l *log.Logger, st *store.Store, githubSecret []byte) *Server {
	return &Server{
		server: &http.Server{
			Addr:           addr,
			Handler:        logReq(l)(newRouter(st, githubSecret)),
			ErrorLog:       l,
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    30 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
	}
}

// Run serves requests until SIGINT/SIGTERM, then drains in-flight
// connections with a bounded grace period.
func (s *Server) Run() error {
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		s.server.ErrorLog.Println("Shutdown")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.server.SetKeepAlivesEnabled(false)
		if err := s.server.Shutdown(ctx); err != nil {
			s.server.ErrorLog.Fatal("Could not shutdown the server")
		}
		close(done)
	}()

	s.server.ErrorLog.Println("Listening on", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.server.ErrorLog.Println("Unable to bind on", s.server.Addr)
	}

	<-done
	return nil
}

// logReq wraps a handler with a request-line access log on l.
func logReq(l *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l.Printf("%s %s %s", r.RemoteAddr, r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}
