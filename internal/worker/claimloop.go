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
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"
)

// claimer is the subset of Client the loop needs; split out so tests can
// drive the loop without a live Coordinator.
type claimer interface {
	ClaimTask(caps *Capabilities) (*ClaimedTask, error)
}

// dispatcher is the subset of Dispatcher the loop needs.
type dispatcher interface {
	Dispatch(task *ClaimedTask) error
}

// Loop drives the worker's outer/inner claim loop against one Coordinator
// until told to stop (§4.5).
type Loop struct {
	client         claimer
	caps           *Capabilities
	dispatcher     dispatcher
	shutdownIntent *int32
	log            *log.Logger
}

// NewLoop wires a claim loop. shutdownIntent is shared with the Dispatcher's
// subprocess supervisors so SIGTERM/SIGINT reach in-flight subprocesses too.
func NewLoop(client *Client, caps *Capabilities, disp *Dispatcher, shutdownIntent *int32, l *log.Logger) *Loop {
	return &Loop{client: client, caps: caps, dispatcher: disp, shutdownIntent: shutdownIntent, log: l}
}

// WatchSignals increments the shutdown-intent counter on SIGINT/SIGTERM: the
// first one requests a graceful stop, a second requests an immediate one
// (§5).
func (l *Loop) WatchSignals() {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range sig {
			n := atomic.AddInt32(l.shutdownIntent, 1)
			if n == ShutdownGraceful {
				l.log.Println("shutdown requested, finishing current task")
			} else {
				l.log.Println("immediate shutdown requested, killing in-flight subprocess")
			}
		}
	}()
}

func (l *Loop) shuttingDown() bool {
	return atomic.LoadInt32(l.shutdownIntent) >= ShutdownGraceful
}

// Run executes the outer/inner loop until a graceful or immediate shutdown
// is requested (§4.5).
func (l *Loop) Run() {
	for !l.shuttingDown() {
		l.drainAvailableTasks()
		l.sleepUpTo(5 * time.Second)
	}
}

// drainAvailableTasks is the inner loop: claim and execute tasks back to
// back until the Coordinator reports none available, an error occurs, or a
// shutdown has been requested.
func (l *Loop) drainAvailableTasks() {
	for !l.shuttingDown() {
		task, err := l.client.ClaimTask(l.caps)
		if err == ErrNoTaskAvailable {
			return
		}
		if err != nil {
			l.log.Printf("claim task: %v", err)
			return
		}
		if err := l.dispatcher.Dispatch(task); err != nil {
			l.log.Printf("dispatch task %d: %v", task.TaskID, err)
		}
	}
}

// sleepUpTo waits for budget, waking every 20ms to re-check the shutdown
// flag so a signal during the outer sleep is honored promptly (§4.5).
func (l *Loop) sleepUpTo(budget time.Duration) {
	deadline := time.Now().Add(budget)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		if l.shuttingDown() {
			return
		}
		<-ticker.C
	}
}
