// Package steamcmdtest scripts a fake SteamCMD console for tests. Credential
// caches persist on the Fake across sessions, like SteamCMD's own config.
package steamcmdtest

import (
	"fmt"
	"strings"
	"sync"

	"vilehvh/internal/runner/runnertest"
)

// UpdateFunc plays an app_update command. Returning stop ends the process
// with code.
type UpdateFunc func(c *runnertest.Conn, appID string, validate bool) (code int, stop bool)

// Fake is a scripted SteamCMD.
type Fake struct {
	Password  string
	GuardCode string
	Update    UpdateFunc

	mu       sync.Mutex
	cached   map[string]bool
	sessions [][]string
	// LoginBeforeInstallDir is set when any session saw login first.
	LoginBeforeInstallDir bool
}

// New returns a fake accepting password and guard code ("" skips Steam Guard).
func New(password, guardCode string) *Fake {
	return &Fake{Password: password, GuardCode: guardCode, cached: map[string]bool{}}
}

// Launcher wraps the fake in a runnertest.Launcher.
func (f *Fake) Launcher() *runnertest.Launcher {
	return &runnertest.Launcher{Script: f.Script}
}

// Cache marks a user as having cached credentials.
func (f *Fake) Cache(user string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cached[user] = true
}

// Cached reports whether a user has cached credentials.
func (f *Fake) Cached(user string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cached[user]
}

// Sessions returns the commands each session received, in order.
func (f *Fake) Sessions() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.sessions))
	for i, s := range f.sessions {
		out[i] = append([]string(nil), s...)
	}
	return out
}

func (f *Fake) record(idx int, line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[idx] = append(f.sessions[idx], line)
}

// Script implements runnertest.Script.
func (f *Fake) Script(_ []string, c *runnertest.Conn) int {
	f.mu.Lock()
	idx := len(f.sessions)
	f.sessions = append(f.sessions, nil)
	f.mu.Unlock()

	var (
		installDir string
		user       string
		authed     bool
	)
	c.Println("Redirecting stderr to 'logs/stderr.txt'")
	c.Println("Loading Steam API...OK")
	c.Prompt("Steam>")
	for {
		line, ok := c.ReadLine()
		if !ok {
			return 0
		}
		f.record(idx, line)
		fields := strings.Fields(line)
		if len(fields) == 0 {
			c.Prompt("Steam>")
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "force_install_dir":
			installDir = strings.Trim(strings.TrimPrefix(line, fields[0]+" "), `"`)
		case "login":
			if installDir == "" {
				f.mu.Lock()
				f.LoginBeforeInstallDir = true
				f.mu.Unlock()
			}
			if len(fields) < 2 {
				c.Println("Usage: login <username>")
				break
			}
			user = fields[1]
			authed = f.login(c, idx, user)
		case "app_update":
			if !authed {
				c.Println(fmt.Sprintf("ERROR! Failed to install app '%s' (No subscription)", fields[1]))
				break
			}
			validate := len(fields) > 2 && fields[2] == "validate"
			if f.Update != nil {
				if code, stop := f.Update(c, fields[1], validate); stop {
					return code
				}
				break
			}
			c.Println(fmt.Sprintf("Success! App '%s' fully installed.", fields[1]))
		case "quit", "exit":
			if authed {
				f.Cache(user)
			}
			return 0
		}
		c.Prompt("Steam>")
	}
}

func (f *Fake) login(c *runnertest.Conn, idx int, user string) bool {
	if f.Cached(user) {
		c.Println(fmt.Sprintf("Logging in user '%s' to Steam Public...OK", user))
		c.Println("Waiting for user info...OK")
		return true
	}
	c.Println("Cached credentials not found.")
	c.Prompt("password: ")
	pw, ok := c.ReadLine()
	if !ok {
		return false
	}
	f.record(idx, "<password>")
	if pw != f.Password {
		c.Println(fmt.Sprintf("Logging in user '%s' to Steam Public...FAILED (Invalid Password)", user))
		return false
	}
	if f.GuardCode != "" {
		c.Println("This computer has not been authenticated for your account using Steam Guard.")
		c.Prompt("Steam Guard code:")
		code, ok := c.ReadLine()
		if !ok {
			return false
		}
		f.record(idx, code)
		if code != f.GuardCode {
			c.Println(fmt.Sprintf("Logging in user '%s' to Steam Public...FAILED (Invalid Login Auth Code)", user))
			return false
		}
	}
	c.Println("Logged in OK")
	c.Println("Waiting for user info...OK")
	return true
}
