package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestStreamPrompter(t *testing.T) {
	out := &bytes.Buffer{}
	p := newStreamPrompter(strings.NewReader("gaben\n\nyes\nhunter2\n"), out)

	if got, err := p.Line("Steam username", ""); err != nil || got != "gaben" {
		t.Fatalf("Line = %q, %v", got, err)
	}
	if got, err := p.Line("Install directory", "/srv/csgo"); err != nil || got != "/srv/csgo" {
		t.Fatalf("Line default = %q, %v", got, err)
	}
	if got, err := p.YesNo("First login?", false); err != nil || !got {
		t.Fatalf("YesNo = %v, %v", got, err)
	}
	if got, err := p.Password("Steam password"); err != nil || string(got) != "hunter2" {
		t.Fatalf("Password = %q, %v", got, err)
	}
	if _, err := p.Line("more", ""); !errors.Is(err, errAborted) {
		t.Fatalf("expected errAborted at EOF, got %v", err)
	}
	if !strings.Contains(out.String(), "First login? [y/N]: ") {
		t.Errorf("expected yes/no hint in %q", out.String())
	}
}

func TestParseYesNo(t *testing.T) {
	tests := []struct {
		in     string
		def    bool
		want   bool
		wantOK bool
	}{
		{"", true, true, true},
		{"", false, false, true},
		{"Y", false, true, true},
		{"no", true, false, true},
		{"maybe", true, false, false},
	}
	for _, tt := range tests {
		got, ok := parseYesNo(tt.in, tt.def)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseYesNo(%q, %v) = %v, %v; want %v, %v", tt.in, tt.def, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCredentialSource(t *testing.T) {
	p := newStreamPrompter(strings.NewReader("hunter2\n"), &bytes.Buffer{})
	paused := false
	source := credentialSource(p, "gaben", func() { paused = true })

	cached, err := source(context.Background(), false)
	if err != nil {
		t.Fatalf("cached: %v", err)
	}
	if cached.Username != "gaben" || cached.Password != nil || cached.FirstLogin {
		t.Errorf("cached login must not ask for a password: %+v", cached)
	}
	if !paused {
		t.Error("expected the status line to be paused before prompting")
	}

	first, err := source(context.Background(), true)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if string(first.Password) != "hunter2" || !first.FirstLogin {
		t.Errorf("unexpected first-login credentials: %+v", first)
	}
}

func TestCredentialSourceRequiresUsername(t *testing.T) {
	p := newStreamPrompter(strings.NewReader("\n"), &bytes.Buffer{})
	if _, err := credentialSource(p, "", nil)(context.Background(), false); err == nil {
		t.Fatal("expected an error for an empty username")
	}
}

func TestAskFirstLoginUsesFlag(t *testing.T) {
	p := newStreamPrompter(strings.NewReader(""), &bytes.Buffer{})
	got, err := askFirstLogin(p, true, false)
	if err != nil || got {
		t.Fatalf("askFirstLogin = %v, %v", got, err)
	}
	if _, err := askFirstLogin(p, false, false); !errors.Is(err, errAborted) {
		t.Fatalf("expected prompt at EOF to abort, got %v", err)
	}
}
