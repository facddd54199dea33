package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

var ErrServerNotInstalled = errors.New("mcp server command not found")

const stderrTailSize = 4096

type Process struct {
	command []string
	env     []string
	grace   time.Duration
	redact  string
	log     *slog.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr *tailBuffer

	stopOnce sync.Once
}

func NewProcess(command, env []string, grace time.Duration, redact string, log *slog.Logger) *Process {
	return &Process{
		command: command,
		env:     env,
		grace:   grace,
		redact:  redact,
		log:     log,
		stderr:  &tailBuffer{max: stderrTailSize},
	}
}

// Start launches the server. The child is killed when ctx is done.
func (p *Process) Start(ctx context.Context) error {
	path, err := exec.LookPath(p.command[0])
	if err != nil {
		return &TransportError{Op: "start", Err: fmt.Errorf("%w: %s", ErrServerNotInstalled, p.command[0])}
	}

	p.cmd = exec.CommandContext(ctx, path, p.command[1:]...)
	p.cmd.Env = p.env
	p.cmd.Stderr = p.stderr
	// A descendant that outlives the server can hold its pipes open; Wait
	// gives up on them after the grace period.
	p.cmd.WaitDelay = p.grace

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return &TransportError{Op: "start", Err: fmt.Errorf("failed to get stdin pipe: %w", err)}
	}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return &TransportError{Op: "start", Err: fmt.Errorf("failed to get stdout pipe: %w", err)}
	}

	if err := p.cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return &TransportError{Op: "start", Err: fmt.Errorf("failed to start %s: %w", p.command[0], err)}
	}

	p.stdin = stdin
	p.stdout = stdout
	p.log.Debug("server started", "pid", p.cmd.Process.Pid, "command", strings.Join(p.command, " "))
	return nil
}

func (p *Process) Stdin() io.WriteCloser { return p.stdin }
func (p *Process) Stdout() io.ReadCloser { return p.stdout }

// Stderr returns the tail of what the server wrote to stderr, with the
// token masked.
func (p *Process) Stderr() string {
	s := strings.TrimSpace(p.stderr.String())
	if p.redact != "" {
		s = strings.ReplaceAll(s, p.redact, "[REDACTED]")
	}
	return s
}

// Stop interrupts the server and kills it if it has not exited after the
// grace period. Exit statuses caused by the interrupt are not errors.
func (p *Process) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		if p.cmd == nil || p.cmd.Process == nil {
			return
		}

		if sigErr := p.cmd.Process.Signal(os.Interrupt); sigErr != nil {
			p.log.Debug("interrupt failed, killing", "error", sigErr)
			p.cmd.Process.Kill()
		}

		done := make(chan error, 1)
		go func() {
			done <- p.cmd.Wait()
		}()

		var waitErr error
		select {
		case waitErr = <-done:
		case <-time.After(p.grace):
			p.log.Debug("server ignored interrupt, killing", "grace", p.grace)
			p.cmd.Process.Kill()
			waitErr = <-done
		}

		var exitErr *exec.ExitError
		switch {
		case errors.Is(waitErr, exec.ErrWaitDelay):
			p.log.Debug("server left its pipes open", "grace", p.grace)
		case waitErr != nil && !errors.As(waitErr, &exitErr):
			err = waitErr
		}
		p.log.Debug("server stopped", "status", p.cmd.ProcessState.String())
	})
	return err
}

type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
