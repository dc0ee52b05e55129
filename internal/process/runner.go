// Package process provides a bounded-wait subprocess primitive.
//
// Both the ffprobe prober and the bitrate sampler run external tools the same
// way: start the process in its own process group, wait at most a deadline,
// and kill the whole group if the deadline or the caller's context expires.
// Killing the group rather than the single pid is what prevents orphaned
// helper processes when the tool forks.
package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"
	"time"
)

// Status tags the outcome of a bounded run.
type Status int

const (
	// StatusCompleted means the process exited on its own (any exit code).
	StatusCompleted Status = iota

	// StatusTimedOut means the deadline expired and the process was killed.
	StatusTimedOut

	// StatusErrored means the process could not be started at all.
	StatusErrored
)

// String returns the status name for logging.
func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusTimedOut:
		return "timed_out"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Result captures the outcome of one bounded run.
type Result struct {
	Status   Status
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Elapsed  time.Duration
	Err      error // start error for StatusErrored, wait error otherwise
}

// timeoutExitCode mirrors the exit status of timeout(1), so a killed run is
// distinguishable from a clean exit in the exported exit-code gauge.
const timeoutExitCode = 124

// Run executes name with args, waiting at most timeout. The process runs in
// its own process group; on timeout or context cancellation the whole group
// receives SIGKILL and the child is reaped before Run returns, so no zombie
// is left behind.
func Run(ctx context.Context, timeout time.Duration, name string, args ...string) Result {
	start := time.Now()

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	if err := cmd.Start(); err != nil {
		return Result{
			Status:  StatusErrored,
			Elapsed: time.Since(start),
			Err:     err,
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case waitErr := <-done:
		return Result{
			Status:   StatusCompleted,
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			ExitCode: extractExitCode(waitErr),
			Elapsed:  time.Since(start),
			Err:      waitErr,
		}

	case <-timer.C:
		killGroup(cmd)
		<-done // reap
		return Result{
			Status:   StatusTimedOut,
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			ExitCode: timeoutExitCode,
			Elapsed:  time.Since(start),
		}

	case <-ctx.Done():
		killGroup(cmd)
		<-done // reap
		return Result{
			Status:   StatusTimedOut,
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			ExitCode: timeoutExitCode,
			Elapsed:  time.Since(start),
			Err:      ctx.Err(),
		}
	}
}

// killGroup force-kills the process group, falling back to the single
// process if the group lookup fails.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
		syscall.Kill(-pgid, syscall.SIGKILL)
	} else {
		cmd.Process.Kill()
	}
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	// Unknown error, assume exit code 1
	return 1
}
