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

	"github.com/codepr/forgeci/internal/worker"
)

var (
	coordinatorURL string
	hostname       string
	configPath     string
	mirrorDir      string
	remoteURL      string
	scratchRoot    string
	qemuImage      string
)

func main() {
	flag.StringVar(&coordinatorURL, "coordinator", "http://localhost:28919", "Coordinator base URL")
	flag.StringVar(&hostname, "hostname", "", "Hostname advertised on claim, defaults to the capability file's value")
	flag.StringVar(&configPath, "config", "worker.yaml", "Path to the capability YAML file")
	flag.StringVar(&mirrorDir, "mirror", "/var/lib/forgeci-worker/mirror", "Local git mirror directory")
	flag.StringVar(&remoteURL, "remote", "", "Upstream git remote URL to mirror")
	flag.StringVar(&scratchRoot, "scratch", "/var/lib/forgeci-worker/scratch", "Root directory for per-task checkouts")
	flag.StringVar(&qemuImage, "qemu-image", "forgeci/qemu-harness:latest", "Docker image used to run qemu-target tests")
	flag.Parse()

	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags)

	caps, err := worker.LoadCapabilities(configPath)
	if err != nil {
		logger.Println(err)
		os.Exit(2)
	}
	if hostname != "" {
		caps.Hostname = hostname
	}

	qemu, err := worker.NewQemuRunner(qemuImage)
	if err != nil {
		logger.Println(err)
		os.Exit(2)
	}

	shutdownIntent := worker.ShutdownNone
	client := worker.NewClient(coordinatorURL)
	mirror := worker.NewMirror(mirrorDir, remoteURL)
	dispatcher := worker.NewDispatcher(client, mirror, qemu, scratchRoot, &shutdownIntent)
	loop := worker.NewLoop(client, caps, dispatcher, &shutdownIntent, logger)

	loop.WatchSignals()
	loop.Run()

	os.Exit(0)
}
