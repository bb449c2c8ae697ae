package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/muesli/cancelreader"
	"github.com/rs/zerolog"
)

// Credentials are supplied for one Login call. Password is zeroed once it
// has been written to SteamCMD.
type Credentials struct {
	Username   string
	Password   []byte
	FirstLogin bool
}

// Result reports two independent outcomes: whether Steam accepted the login,
// and whether SteamCMD was closed in a way that persists the credential cache.
type Result struct {
	Username       string `json:"username"`
	FirstLogin     bool   `json:"first_login"`
	Authenticated  bool   `json:"authenticated"`
	CachePersisted bool   `json:"cache_persisted"`
	State          State  `json:"-"`
	Warning        string `json:"warning,omitempty"`
}

var (
	loggedInPattern   = regexp.MustCompile(`(?i)(Logged in OK|to Steam Public\.\.\.OK)`)
	passwordPattern   = regexp.MustCompile(`(?i)password:\s*$`)
	guardPattern      = regexp.MustCompile(`(?i)(Steam Guard code|Two-factor code):\s*$`)
	noCachePattern    = regexp.MustCompile(`(?i)Cached credentials not found`)
	loginFailPattern  = regexp.MustCompile(`(?i)(\.\.\.FAILED|^FAILED|Invalid Password|Login Failure|ERROR \(Rate Limit)`)
	failReasonPattern = regexp.MustCompile(`(?i)FAILED\s*\(([^)]*)\)`)
)

// Authenticator performs logins on sessions opened by a Builder.
type Authenticator struct {
	// Operator supplies terminal lines forwarded to SteamCMD during a first
	// login (the Steam Guard code and the final quit). It is read only while
	// that login runs; when Operator is a file the pending read is cancelled
	// before Login returns.
	Operator io.Reader
	// Notice receives short operator instructions.
	Notice io.Writer
	Logger zerolog.Logger
}

// Login runs the first-time or cached flow. It refuses sessions whose install
// directory was never issued.
//
// A cached login that hits a password prompt returns ErrNoCachedCredentials
// and leaves SteamCMD waiting; callers should Abort the session.
func (a *Authenticator) Login(ctx context.Context, sess *Session, creds Credentials) (Result, error) {
	defer zero(creds.Password)
	if sess == nil || sess.InstallDir() == "" {
		return Result{}, ErrInstallDirNotSet
	}
	if strings.TrimSpace(creds.Username) == "" {
		return Result{}, errors.New("steam username is required")
	}
	if err := sess.transition(AwaitingCredentials); err != nil {
		return Result{}, err
	}

	log := a.Logger.With().Str("username", creds.Username).Bool("first_login", creds.FirstLogin).Logger()
	log.Info().Msg("logging in to steam")
	if err := sess.Send("login " + creds.Username); err != nil {
		return a.fail(sess, creds, err)
	}

	if creds.FirstLogin {
		return a.firstLogin(ctx, sess, creds, log)
	}
	return a.cachedLogin(ctx, sess, creds, log)
}

func (a *Authenticator) cachedLogin(ctx context.Context, sess *Session, creds Credentials, log zerolog.Logger) (Result, error) {
	for {
		tok, err := sess.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrSessionClosed
			}
			return a.fail(sess, creds, err)
		}
		switch {
		case loggedInPattern.MatchString(tok):
			if err := sess.transition(Authenticated); err != nil {
				return a.fail(sess, creds, err)
			}
			log.Info().Msg("logged in with cached credentials")
			return a.result(sess, creds, true), nil
		case loginFailPattern.MatchString(tok):
			return a.fail(sess, creds, &LoginError{Username: creds.Username, Reason: failReason(tok)})
		case noCachePattern.MatchString(tok), passwordPattern.MatchString(tok), guardPattern.MatchString(tok):
			log.Warn().Str("line", tok).Msg("no cached credentials")
			return a.fail(sess, creds, ErrNoCachedCredentials)
		}
	}
}

func (a *Authenticator) firstLogin(ctx context.Context, sess *Session, creds Credentials, log zerolog.Logger) (Result, error) {
	var (
		quitTyped   atomic.Bool
		passthrough = make(chan struct{})
		operator    *operatorInput
	)
	defer func() {
		close(passthrough)
		operator.stop()
	}()
	startPassthrough := func() error {
		if operator != nil {
			return nil
		}
		in, err := openOperator(a.Operator, passthrough)
		if err != nil {
			return err
		}
		operator = in
		go a.forward(sess, in.lines, passthrough, &quitTyped)
		return nil
	}

	for {
		tok, err := sess.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return a.fail(sess, creds, err)
			}
			if sess.State() != Authenticated {
				return a.fail(sess, creds, ErrSessionClosed)
			}
			res := a.result(sess, creds, quitTyped.Load())
			if !res.CachePersisted {
				res.Warning = "steamcmd closed without quit; credentials may not be cached"
				log.Warn().Msg(res.Warning)
			} else {
				log.Info().Msg("credentials cached")
			}
			return res, nil
		}

		switch {
		case loggedInPattern.MatchString(tok):
			if err := sess.transition(Authenticated); err != nil {
				return a.fail(sess, creds, err)
			}
			log.Info().Msg("logged in")
			a.notice("Logged in. Type 'quit' to save the login and continue.")
			if err := startPassthrough(); err != nil {
				return a.fail(sess, creds, err)
			}
		case loginFailPattern.MatchString(tok):
			return a.fail(sess, creds, &LoginError{Username: creds.Username, Reason: failReason(tok)})
		case guardPattern.MatchString(tok):
			if sess.State() == AwaitingCredentials {
				if err := sess.transition(AwaitingSecondFactor); err != nil {
					return a.fail(sess, creds, err)
				}
				log.Info().Msg("steam guard code requested")
				a.notice("Enter the Steam Guard code from your email or mobile app.")
			}
		case passwordPattern.MatchString(tok) && operator == nil:
			if len(creds.Password) == 0 {
				return a.fail(sess, creds, errors.New("steam password is required for first login"))
			}
			if err := sess.sendSecret(creds.Password); err != nil {
				return a.fail(sess, creds, err)
			}
			zero(creds.Password)
			if err := startPassthrough(); err != nil {
				return a.fail(sess, creds, err)
			}
		}
	}
}

// forward copies operator lines into the session until done is closed.
func (a *Authenticator) forward(sess *Session, lines <-chan string, done <-chan struct{}, quitTyped *atomic.Bool) {
	for {
		select {
		case <-done:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			cmd := strings.ToLower(strings.TrimSpace(line))
			if cmd == "quit" || cmd == "exit" {
				quitTyped.Store(true)
			}
			if err := sess.Send(line); err != nil {
				return
			}
		}
	}
}

// operatorInput reads operator lines for the duration of one login.
type operatorInput struct {
	reader cancelreader.CancelReader
	lines  chan string
	exited chan struct{}
}

func openOperator(r io.Reader, done <-chan struct{}) (*operatorInput, error) {
	in := &operatorInput{lines: make(chan string), exited: make(chan struct{})}
	if r == nil {
		close(in.lines)
		close(in.exited)
		return in, nil
	}
	cr, err := cancelreader.NewReader(r)
	if err != nil {
		// Regular files cannot be polled; read them without cancellation.
		if cr, err = cancelreader.NewReader(struct{ io.Reader }{r}); err != nil {
			return nil, fmt.Errorf("open operator input: %w", err)
		}
	}
	in.reader = cr
	go func() {
		defer close(in.exited)
		defer close(in.lines)
		defer cr.Close()
		scanner := bufio.NewScanner(cr)
		for scanner.Scan() {
			select {
			case in.lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return in, nil
}

// stop cancels the pending read. When the reader supports cancellation it
// waits for the read loop to exit, so no input is consumed after Login.
func (in *operatorInput) stop() {
	if in == nil || in.reader == nil {
		return
	}
	if in.reader.Cancel() {
		<-in.exited
	}
}

func (a *Authenticator) notice(msg string) {
	if a.Notice != nil {
		fmt.Fprintln(a.Notice, msg)
	}
}

func (a *Authenticator) result(sess *Session, creds Credentials, persisted bool) Result {
	return Result{
		Username:       creds.Username,
		FirstLogin:     creds.FirstLogin,
		Authenticated:  sess.State() == Authenticated,
		CachePersisted: persisted,
		State:          sess.State(),
	}
}

func (a *Authenticator) fail(sess *Session, creds Credentials, err error) (Result, error) {
	if !sess.State().Terminal() {
		_ = sess.transition(Failed)
	}
	a.Logger.Error().Err(err).Str("username", creds.Username).Msg("steam login failed")
	return a.result(sess, creds, false), err
}

func failReason(line string) string {
	if m := failReasonPattern.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return line
}
