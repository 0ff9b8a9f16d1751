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

package main

import (
	"flag"
	"log"
	"os"

	"github.com/codepr/forgeci/internal/coordinator"
	"github.com/codepr/forgeci/internal/store"
)

var (
	addr          string
	dsn           string
	githubSecret  string
)

func main() {
	flag.StringVar(&addr, "addr", ":28919", "Server listening address")
	flag.StringVar(&dsn, "dsn", "forgeci.db", "Path to the sqlite3 database file")
	flag.StringVar(&githubSecret, "github-webhook-secret", "", "Shared secret for /webhook/github; leave empty to disable it")
	flag.Parse()

	logger := log.New(os.Stdout, "[coordinator] ", log.LstdFlags)

	st, err := store.Open(dsn)
	if err != nil {
		logger.Fatal(err)
	}
	defer st.Close()

	server := coordinator.NewServer(addr, logger, st, []byte(githubSecret))
	if err := server.Run(); err != nil {
		logger.Fatal(err)
	}
}
