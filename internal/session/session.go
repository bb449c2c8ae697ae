// Package session drives an interactive SteamCMD console: opening it with the
// install directory already applied, and logging in either for the first time
// (with operator pass-through for Steam Guard) or from cached credentials.
package session

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"vilehvh/internal/runner"
)

// Builder opens sessions. Open refuses to start SteamCMD until InstallDir has
// been given, and the directive is the first command the session receives.
type Builder struct {
	launcher   runner.Launcher
	binary     string
	installDir string
	logger     zerolog.Logger
	echo       io.Writer
}

func NewBuilder(launcher runner.Launcher, steamcmd string) *Builder {
	return &Builder{launcher: launcher, binary: steamcmd, logger: zerolog.Nop()}
}

// InstallDir sets the force_install_dir target.
func (b *Builder) InstallDir(dir string) *Builder {
	b.installDir = dir
	return b
}

func (b *Builder) Logger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// Echo copies raw SteamCMD output to w, typically the operator's terminal.
func (b *Builder) Echo(w io.Writer) *Builder {
	b.echo = w
	return b
}

// Open starts SteamCMD and issues force_install_dir.
func (b *Builder) Open(ctx context.Context) (*Session, error) {
	if strings.TrimSpace(b.installDir) == "" {
		return nil, ErrInstallDirNotSet
	}
	if b.launcher == nil {
		b.launcher = runner.CmdLauncher{}
	}

	proc, err := b.launcher.Start(ctx, b.binary, nil, runner.RunOptions{})
	if err != nil {
		return nil, fmt.Errorf("start steamcmd: %w", err)
	}

	var out io.Reader = proc.Output()
	if b.echo != nil {
		out = io.TeeReader(out, b.echo)
	}
	s := &Session{
		proc:   proc,
		tokens: make(chan string, 64),
		logger: b.logger,
	}
	go s.pump(out)

	if err := s.Send("force_install_dir " + quoteArg(b.installDir)); err != nil {
		_ = s.Abort()
		return nil, err
	}
	s.installDir = b.installDir
	b.logger.Debug().Str("install_dir", b.installDir).Msg("install directory issued")
	return s, nil
}

// Session is one running SteamCMD console.
type Session struct {
	proc       runner.Process
	tokens     chan string
	installDir string
	logger     zerolog.Logger

	mu      sync.Mutex
	machine Machine

	wmu  sync.Mutex
	done bool

	waitOnce sync.Once
	exitCode int
	waitErr  error
}

// InstallDir returns the directory issued to the session, or "" when none was.
func (s *Session) InstallDir() string { return s.installDir }

// State returns the authentication state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.State()
}

func (s *Session) transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Transition(next)
}

// Send writes one console command.
func (s *Session) Send(command string) error {
	s.logger.Debug().Str("command", command).Msg("steamcmd <-")
	return s.write([]byte(command + "\n"))
}

// sendSecret writes a line without logging it.
func (s *Session) sendSecret(secret []byte) error {
	s.logger.Debug().Msg("steamcmd <- [redacted]")
	line := make([]byte, 0, len(secret)+1)
	line = append(append(line, secret...), '\n')
	defer zero(line)
	return s.write(line)
}

func (s *Session) write(p []byte) error {
	if s.proc == nil {
		return ErrSessionClosed
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.done {
		return ErrSessionClosed
	}
	if _, err := s.proc.Stdin().Write(p); err != nil {
		return fmt.Errorf("write to steamcmd: %w", err)
	}
	return nil
}

// Next returns the next output line or prompt. It returns io.EOF once
// SteamCMD has closed its output.
func (s *Session) Next(ctx context.Context) (string, error) {
	if s.tokens == nil {
		return "", io.EOF
	}
	select {
	case tok, ok := <-s.tokens:
		if !ok {
			return "", io.EOF
		}
		return tok, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close asks SteamCMD to quit and waits for it to exit.
func (s *Session) Close() (int, error) {
	_ = s.Send("quit")
	return s.Wait()
}

// Abort kills SteamCMD, for sessions stuck at a prompt.
func (s *Session) Abort() error {
	if s.proc == nil {
		return nil
	}
	err := s.proc.Kill()
	_, _ = s.Wait()
	return err
}

// Wait closes stdin, drains remaining output and returns the exit code.
func (s *Session) Wait() (int, error) {
	if s.proc == nil {
		return 0, nil
	}
	s.waitOnce.Do(func() {
		s.wmu.Lock()
		s.done = true
		_ = s.proc.Stdin().Close()
		s.wmu.Unlock()
		for range s.tokens {
		}
		s.exitCode, s.waitErr = s.proc.Wait()
	})
	return s.exitCode, s.waitErr
}

func (s *Session) pump(r io.Reader) {
	defer close(s.tokens)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(splitConsole)
	for scanner.Scan() {
		tok := strings.TrimSpace(stripANSI(scanner.Text()))
		if tok == "" {
			continue
		}
		s.logger.Trace().Str("line", tok).Msg("steamcmd ->")
		s.tokens <- tok
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug().Err(err).Msg("steamcmd output ended")
	}
}

var promptSuffixes = []string{"password:", "steam guard code:", "two-factor code:", "steam>"}

// splitConsole splits SteamCMD output into lines, and also emits an
// unterminated trailing prompt so callers can answer it.
func splitConsole(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 == len(data) && !atEOF {
				return 0, nil, nil
			}
			if i+1 < len(data) && data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
		}
		return i + 1, data[:i], nil
	}
	if isPrompt(data) || atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func isPrompt(data []byte) bool {
	tail := strings.ToLower(strings.TrimSpace(stripANSI(string(data))))
	for _, suffix := range promptSuffixes {
		if strings.HasSuffix(tail, suffix) {
			return true
		}
	}
	return false
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func quoteArg(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
