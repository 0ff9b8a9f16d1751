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
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// ShutdownGraceful and ShutdownImmediate are the atomic counter thresholds
// the signal watcher drives (§5): 1 asks the in-flight task to finish, 2+
// asks the supervised subprocess to die now.
const (
	ShutdownNone      int32 = 0
	ShutdownGraceful  int32 = 1
	ShutdownImmediate int32 = 2
)

type streamMessage struct {
	stream string
	line   string
}

func (m streamMessage) framed() string {
	return fmt.Sprintf("%s: %s\n", m.stream, m.line)
}

// Sink receives every batch of framed output the supervisor drains from the
// subprocess. A batch may contain more than one line when several became
// available between polls, matching the coordinator round-trip reduction
// the original design calls for (§4.7).
type Sink func(chunk string)

// Supervisor runs one subprocess at a time and streams its combined output
// to a Sink, honoring the shared shutdown-intent counter.
type Supervisor struct {
	ShutdownIntent *int32
}

// Run spawns name with args, streams output to sink, and returns the exit
// code. A nil error with a non-zero code means the process ran and failed;
// a non-nil error means it could not be started at all.
func (s *Supervisor) Run(name string, args []string, sink Sink) (int, error) {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, err
	}
	if err := cmd.Start(); err != nil {
		return -1, err
	}

	msgCh := make(chan streamMessage, 256)
	var wg sync.WaitGroup
	wg.Add(2)
	go readLines(stdout, "stdout", msgCh, &wg)
	go readLines(stderr, "stderr", msgCh, &wg)
	go func() {
		wg.Wait()
		close(msgCh)
	}()

	waitDone := make(chan error, 1)
	processExited := make(chan struct{})
	go func() {
		// Wait closes the pipes, so let the readers hit EOF first.
		wg.Wait()
		err := cmd.Wait()
		waitDone <- err
		close(processExited)
	}()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	manuallyStopped := false
	var waitErr error
	waited := false

loop:
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				break loop
			}
			batch := msg.framed()
		drain:
			for {
				select {
				case msg2, ok := <-msgCh:
					if !ok {
						break drain
					}
					batch += msg2.framed()
				default:
					break drain
				}
			}
			sink(batch)
		case err := <-waitDone:
			waitErr = err
			waited = true
		case <-ticker.C:
			if s.shutdownIntent() >= ShutdownImmediate && !manuallyStopped {
				manuallyStopped = true
				killProcessGroup(cmd.Process.Pid, syscall.SIGTERM)
				go escalateToSigkill(cmd.Process.Pid, processExited)
			}
		}
		if waited && len(msgCh) == 0 {
			break loop
		}
	}

	if !waited {
		waitErr = <-waitDone
	}

	if manuallyStopped {
		sink(streamMessage{stream: "stderr", line: "Stopping process due to user request to stop the worker"}.framed())
	}

	return exitCodeOf(waitErr), nil
}

func (s *Supervisor) shutdownIntent() int32 {
	if s.ShutdownIntent == nil {
		return ShutdownNone
	}
	return atomic.LoadInt32(s.ShutdownIntent)
}

func readLines(r io.Reader, stream string, out chan<- streamMessage, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		out <- streamMessage{stream: stream, line: scanner.Text()}
	}
}

// escalateToSigkill waits up to 50ms after SIGTERM before forcing SIGKILL,
// matching the supervisor's kill-and-reap grace period (§4.7).
func escalateToSigkill(pid int, processExited <-chan struct{}) {
	for i := 0; i < 10; i++ {
		select {
		case <-processExited:
			return
		case <-time.After(5 * time.Millisecond):
		}
	}
	killProcessGroup(pid, syscall.SIGKILL)
}

func killProcessGroup(pid int, sig syscall.Signal) {
	syscall.Kill(-pid, sig)
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}
	return -1
}
