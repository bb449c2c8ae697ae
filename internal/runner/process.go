package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Process is a started subprocess with line-oriented stdin and a merged
// stdout/stderr stream.
type Process interface {
	Stdin() io.WriteCloser
	Output() io.Reader
	// Wait blocks until the process exits and returns its exit code. Output
	// must be drained to EOF before calling Wait.
	Wait() (int, error)
	Kill() error
}

// Launcher starts interactive processes.
type Launcher interface {
	Start(ctx context.Context, command string, args []string, opts RunOptions) (Process, error)
}

// ExitError reports a non-zero exit status without an *exec.ExitError.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

func (e *ExitError) ExitCode() int { return e.Code }

type CmdLauncher struct{}

type cmdProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	output io.Reader
}

func (CmdLauncher) Start(ctx context.Context, command string, args []string, opts RunOptions) (Process, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	// Share the pipe so prompts written to stderr interleave with stdout.
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command, err)
	}

	return &cmdProcess{cmd: cmd, stdin: stdin, output: stdout}, nil
}

func (p *cmdProcess) Stdin() io.WriteCloser { return p.stdin }

func (p *cmdProcess) Output() io.Reader { return p.output }

func (p *cmdProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	code := ExitCode(err)
	if code > 0 {
		return code, &ExitError{Code: code}
	}
	return code, err
}

func (p *cmdProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

var _ Launcher = CmdLauncher{}
