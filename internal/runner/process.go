package runner

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
)

// shellCommand builds an exec.Cmd that runs the opaque task command under
// full shell interpretation. The subprocess gets its own process group so the
// whole tree can be terminated on timeout or cancellation.
func shellCommand(command string) *exec.Cmd {
	cmd := exec.Command("sh", "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	return cmd
}

// startDraining starts cmd and drains stdout/stderr concurrently. Reading
// both pipes in their own goroutines keeps the subprocess from blocking when
// its output exceeds pipe buffer capacity; wait() must not be called before
// both drains finish.
func startDraining(cmd *exec.Cmd) (wait func() error, stdout, stderr *bytes.Buffer, err error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, nil, fmt.Errorf("starting command: %w", err)
	}

	var wg sync.WaitGroup
	var outBuf, errBuf bytes.Buffer
	wg.Add(2)
	go func() {
		defer wg.Done()
		io.Copy(&outBuf, stdoutPipe)
	}()
	go func() {
		defer wg.Done()
		io.Copy(&errBuf, stderrPipe)
	}()

	wait = func() error {
		wg.Wait()
		return cmd.Wait()
	}
	return wait, &outBuf, &errBuf, nil
}

// killProcessGroup terminates the entire process group of cmd, preventing
// orphaned grandchildren from outliving a timed-out attempt.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative pid targets the whole group.
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

// exitCode extracts the subprocess exit code from a Wait error. A nil error
// is exit zero; a non-ExitError fault is reported as exit 1.
func exitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if ee, ok := waitErr.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return 1
}
