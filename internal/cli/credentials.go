package cli

import (
	"context"
	"errors"
	"strings"

	"vilehvh/internal/session"
	"vilehvh/internal/setup"
)

// credentialSource asks for whatever the login needs once it is needed. The
// prompter is closed afterwards so SteamCMD gets the terminal.
func credentialSource(p prompter, username string, pause func()) setup.CredentialSource {
	return func(_ context.Context, firstLogin bool) (session.Credentials, error) {
		if pause != nil {
			pause()
		}
		defer p.Close()

		user := strings.TrimSpace(username)
		if user == "" {
			answer, err := p.Line("Steam username", "")
			if err != nil {
				return session.Credentials{}, err
			}
			user = strings.TrimSpace(answer)
		}
		if user == "" {
			return session.Credentials{}, errors.New("a Steam username is required")
		}

		creds := session.Credentials{Username: user, FirstLogin: firstLogin}
		if firstLogin {
			secret, err := p.Password("Steam password")
			if err != nil {
				return session.Credentials{}, err
			}
			creds.Password = secret
		}
		return creds, nil
	}
}

// askFirstLogin resolves the first-login choice from the flag or a prompt.
func askFirstLogin(p prompter, flagSet, flagValue bool) (bool, error) {
	if flagSet {
		return flagValue, nil
	}
	return p.YesNo("Is this your first time logging in to Steam on this machine?", true)
}
