// Package runnertest provides in-memory fakes for runner.Runner and
// runner.Launcher so packages that drive subprocesses can be tested without
// the real binaries.
package runnertest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"vilehvh/internal/runner"
)

// Call records one Run invocation.
type Call struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
	Stdin   string
}

// Line renders the call as a single shell-like string.
func (c Call) Line() string {
	return strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
}

// Handler produces the result for a Run call. Returning a nil error with a
// non-zero ExitCode is converted to a *runner.ExitError.
type Handler func(call Call) (runner.RunResult, error)

// Runner is a fake runner.Runner that records every call.
type Runner struct {
	mu      sync.Mutex
	Calls   []Call
	Handler Handler
}

func (r *Runner) Run(_ context.Context, command string, args []string, opts runner.RunOptions) (runner.RunResult, error) {
	call := Call{Command: command, Args: append([]string(nil), args...), Dir: opts.Dir, Env: opts.Env}
	if opts.Stdin != nil {
		data, _ := io.ReadAll(opts.Stdin)
		call.Stdin = string(data)
	}
	r.mu.Lock()
	r.Calls = append(r.Calls, call)
	handler := r.Handler
	r.mu.Unlock()

	if handler == nil {
		return runner.RunResult{}, nil
	}
	res, err := handler(call)
	if err == nil && res.ExitCode != 0 {
		err = &runner.ExitError{Code: res.ExitCode}
	}
	if opts.Stdout != nil && len(res.Stdout) > 0 {
		_, _ = opts.Stdout.Write(res.Stdout)
	}
	if opts.Stderr != nil && len(res.Stderr) > 0 {
		_, _ = opts.Stderr.Write(res.Stderr)
	}
	return res, err
}

// Lines returns every recorded call rendered with Call.Line.
func (r *Runner) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.Line()
	}
	return out
}

// Count returns how many recorded calls contain substr.
func (r *Runner) Count(substr string) int {
	n := 0
	for _, line := range r.Lines() {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

// Conn is the script side of a fake process.
type Conn struct {
	in  *bufio.Reader
	out io.Writer
}

// ReadLine returns the next line written to the process stdin.
func (c *Conn) ReadLine() (string, bool) {
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}

// Println writes a newline-terminated line of output.
func (c *Conn) Println(line string) {
	fmt.Fprintln(c.out, line)
}

// Prompt writes output without a trailing newline.
func (c *Conn) Prompt(text string) {
	io.WriteString(c.out, text)
}

// Script plays the external program and returns its exit code.
type Script func(args []string, c *Conn) int

// Launcher is a fake runner.Launcher running Script for every Start.
type Launcher struct {
	mu      sync.Mutex
	Script  Script
	Starts  []Call
	StartFn func(call Call) error
}

func (l *Launcher) Start(_ context.Context, command string, args []string, opts runner.RunOptions) (runner.Process, error) {
	call := Call{Command: command, Args: append([]string(nil), args...), Dir: opts.Dir, Env: opts.Env}
	l.mu.Lock()
	l.Starts = append(l.Starts, call)
	script := l.Script
	startFn := l.StartFn
	l.mu.Unlock()

	if startFn != nil {
		if err := startFn(call); err != nil {
			return nil, err
		}
	}

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	p := &process{stdin: inW, output: outR, done: make(chan struct{})}

	go func() {
		defer close(p.done)
		code := 0
		if script != nil {
			code = script(args, &Conn{in: bufio.NewReader(inR), out: outW})
		}
		p.code = code
		_ = outW.Close()
		// Unblock writers once the program is gone.
		_ = inR.Close()
	}()
	return p, nil
}

type process struct {
	stdin  *io.PipeWriter
	output *io.PipeReader
	done   chan struct{}
	code   int
}

func (p *process) Stdin() io.WriteCloser { return p.stdin }

func (p *process) Output() io.Reader { return p.output }

func (p *process) Wait() (int, error) {
	<-p.done
	if p.code != 0 {
		return p.code, &runner.ExitError{Code: p.code}
	}
	return 0, nil
}

func (p *process) Kill() error {
	_ = p.stdin.Close()
	_ = p.output.Close()
	return nil
}

var (
	_ runner.Runner   = (*Runner)(nil)
	_ runner.Launcher = (*Launcher)(nil)
)
