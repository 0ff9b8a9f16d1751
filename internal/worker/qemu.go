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
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	docker "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/codepr/forgeci/internal/model"
)

// timeoutSentinel is the output line the outer timeout wrapper around the
// test harness writes when it kills the harness itself (§4.6).
const timeoutSentinel = "/usr/bin/timeout: sending signal TERM to command"

// QemuRunner executes one test at a time inside an emulator image,
// streaming its combined output back through a Sink (§4.6 step 8).
type QemuRunner struct {
	cli   *docker.Client
	Image string
}

// NewQemuRunner builds a Docker-backed runner for the given emulator image.
func NewQemuRunner(image string) (*QemuRunner, error) {
	cli, err := docker.NewEnvClient()
	if err != nil {
		return nil, err
	}
	return &QemuRunner{cli: cli, Image: image}, nil
}

type lineWriter struct {
	tag  string
	sink Sink
	buf  bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		data := w.buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := string(data[:idx])
		w.buf.Next(idx + 1)
		w.sink(fmt.Sprintf("%s: %s\n", w.tag, line))
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if w.buf.Len() > 0 {
		w.sink(fmt.Sprintf("%s: %s\n", w.tag, w.buf.String()))
		w.buf.Reset()
	}
}

// RunTest runs cmd (the test harness invocation filtered to a single test)
// inside a fresh container with scratchDir bind-mounted at /build, streams
// its output and returns the terminal status and return code (§4.6 step 8).
func (q *QemuRunner) RunTest(ctx context.Context, scratchDir string, cmd []string, sink Sink) (model.Status, int, error) {
	reader, err := q.cli.ImagePull(ctx, q.Image, types.ImagePullOptions{})
	if err != nil {
		return model.StatusFailed, 2, err
	}
	io.Copy(io.Discard, reader)
	reader.Close()

	resp, err := q.cli.ContainerCreate(ctx, &container.Config{
		Image: q.Image,
		Cmd:   cmd,
		Tty:   false,
	}, &container.HostConfig{
		Binds: []string{scratchDir + ":/build"},
	}, nil, "")
	if err != nil {
		return model.StatusFailed, 2, err
	}
	defer q.cli.ContainerRemove(ctx, resp.ID, types.ContainerRemoveOptions{Force: true})

	if err := q.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return model.StatusFailed, 2, err
	}

	logs, err := q.cli.ContainerLogs(ctx, resp.ID, types.ContainerLogsOptions{
		ShowStdout: true, ShowStderr: true, Follow: true,
	})
	if err != nil {
		return model.StatusFailed, 2, err
	}

	stdout := &lineWriter{tag: "stdout", sink: sink}
	stderr := &lineWriter{tag: "stderr", sink: sink}
	sawTimeoutSentinel := false
	sink = wrapSinkDetectingSentinel(sink, &sawTimeoutSentinel)
	stdout.sink, stderr.sink = sink, sink

	stdcopy.StdCopy(stdout, stderr, logs)
	logs.Close()
	stdout.flush()
	stderr.flush()

	statusCode, err := q.cli.ContainerWait(ctx, resp.ID)
	if err != nil {
		return model.StatusFailed, 2, err
	}
	code := int(statusCode)
	if code == 124 || sawTimeoutSentinel {
		return model.StatusTimeout, 124, nil
	}
	if code != 0 {
		return model.StatusFailed, code, nil
	}
	return model.StatusSuccess, 0, nil
}

func wrapSinkDetectingSentinel(sink Sink, seen *bool) Sink {
	return func(chunk string) {
		if !*seen && bytes.Contains([]byte(chunk), []byte(timeoutSentinel)) {
			*seen = true
		}
		sink(chunk)
	}
}
