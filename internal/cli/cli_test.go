package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"vilehvh/internal/config"
	"vilehvh/internal/paths"
	"vilehvh/internal/plugins"
	"vilehvh/internal/system"
	"vilehvh/internal/tools"
)

// withGlobals isolates the package-level flag variables for one test.
func withGlobals(t *testing.T) {
	t.Helper()
	prevConfig, prevInstall, prevJSON := configPath, installDir, outputJSON
	prevProbe, prevForce := probeSystem, configInitForce
	t.Cleanup(func() {
		configPath, installDir, outputJSON = prevConfig, prevInstall, prevJSON
		probeSystem, configInitForce = prevProbe, prevForce
	})
	configPath = filepath.Join(t.TempDir(), "vilehvh.yaml")
	installDir = ""
	outputJSON = false
	probeSystem = func(context.Context, zerolog.Logger) system.Profile {
		return system.Profile{OS: "linux", Family: system.FamilyDebian, DistroID: "ubuntu", DistroVersion: "22.04", Arch: "amd64"}
	}
}

func newServerTree(t *testing.T) paths.InstallTarget {
	t.Helper()
	target, err := paths.NewInstallTarget(t.TempDir())
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	if err := os.MkdirAll(target.PluginsDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return target
}

func TestJoinComma(t *testing.T) {
	tests := []struct {
		input []string
		want  string
	}{
		{nil, ""},
		{[]string{"a"}, "a"},
		{[]string{"a", "b"}, "a, b"},
		{[]string{"a", "b", "c"}, "a, b, c"},
	}

	for _, tt := range tests {
		got := joinComma(tt.input)
		if got != tt.want {
			t.Errorf("joinComma(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCheckConfigWithError(t *testing.T) {
	result := checkConfig(config.Config{}, errors.New("unmarshal config: bad yaml"))

	if result.Status != "error" {
		t.Errorf("got status=%q, want error", result.Status)
	}
	if result.Name != "Config" {
		t.Errorf("got name=%q, want Config", result.Name)
	}
}

func TestCheckConfigWarnsWithoutUsername(t *testing.T) {
	cfg := config.Default()
	if got := checkConfig(cfg, nil).Status; got != "warning" {
		t.Errorf("got status=%q, want warning", got)
	}

	cfg.Steam.Username = "gaben"
	if got := checkConfig(cfg, nil).Status; got != "ok" {
		t.Errorf("got status=%q, want ok", got)
	}
}

func TestCheckSteamCMD(t *testing.T) {
	missing := checkSteamCMD(tools.Status{Tool: tools.ToolName, Hints: []string{"sudo apt install steamcmd"}})
	if missing.Status != "error" || !strings.Contains(missing.Summary, "sudo apt install steamcmd") {
		t.Errorf("unexpected check for missing tool: %+v", missing)
	}

	present := checkSteamCMD(tools.Status{Tool: tools.ToolName, Present: true, Path: "/usr/games/steamcmd", Source: tools.SourceSystem})
	if present.Status != "ok" {
		t.Errorf("got status=%q, want ok", present.Status)
	}
}

func TestCheckServer(t *testing.T) {
	target := newServerTree(t)
	if got := checkServer(target, "linux").Status; got != "error" {
		t.Errorf("got status=%q before deploy, want error", got)
	}
	if err := os.WriteFile(filepath.Join(target.Root, "srcds_run"), []byte("#!/bin/sh"), 0o755); err != nil {
		t.Fatal(err)
	}
	if got := checkServer(target, "linux").Status; got != "ok" {
		t.Errorf("got status=%q after deploy, want ok", got)
	}
}

func TestPluginsCommands(t *testing.T) {
	withGlobals(t)
	target := newServerTree(t)
	installDir = target.Root
	if err := os.WriteFile(filepath.Join(target.PluginsDir, "hvh_core.smx"), []byte("smx"), 0o644); err != nil {
		t.Fatal(err)
	}

	run := func(args ...string) string {
		t.Helper()
		cmd := newPluginsCmd()
		stdout := &bytes.Buffer{}
		cmd.SetOut(stdout)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		if err := cmd.Execute(); err != nil {
			t.Fatalf("plugins %v: %v", args, err)
		}
		return stdout.String()
	}

	if out := run("list"); !strings.Contains(out, "hvh_core") || !strings.Contains(out, "enabled") {
		t.Errorf("unexpected list output:\n%s", out)
	}

	run("disable", "hvh_core.smx")
	run("disable", "hvh_core")
	if _, err := os.Stat(filepath.Join(target.PluginsDir, "hvh_core.smx.disabled")); err != nil {
		t.Errorf("expected disabled file: %v", err)
	}

	outputJSON = true
	var records []plugins.Record
	if err := json.Unmarshal([]byte(run("enable", "hvh_core")), &records); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(records) != 1 || !records[0].Enabled {
		t.Errorf("expected one enabled plugin, got %+v", records)
	}

	run("remove", "hvh_core")
	run("remove", "hvh_core")
	if out := run("list"); strings.TrimSpace(out) != "[]" {
		t.Errorf("expected empty list, got %q", out)
	}
}

func TestPluginsRequireServer(t *testing.T) {
	withGlobals(t)
	installDir = filepath.Join(t.TempDir(), "missing")

	cmd := newPluginsCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"list"})
	if err := cmd.Execute(); !errors.Is(err, errNoServer) {
		t.Fatalf("expected errNoServer, got %v", err)
	}
}

func TestDetectJSON(t *testing.T) {
	withGlobals(t)
	outputJSON = true

	cmd := newDetectCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("detect: %v", err)
	}

	var profile system.Profile
	if err := json.Unmarshal(stdout.Bytes(), &profile); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if profile.Family != system.FamilyDebian || profile.DistroID != "ubuntu" {
		t.Errorf("unexpected profile %+v", profile)
	}
}

func TestConfigInit(t *testing.T) {
	withGlobals(t)

	run := func(args ...string) error {
		cmd := newConfigCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	if err := run("init"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := config.Load(configPath); err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if err := run("init"); err == nil {
		t.Error("expected init to refuse overwriting")
	}
	if err := run("init", "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

func TestDoctorJSON(t *testing.T) {
	withGlobals(t)
	outputJSON = true
	target := newServerTree(t)
	installDir = target.Root

	cmd := newDoctorCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("doctor: %v", err)
	}

	var checks []healthCheck
	if err := json.Unmarshal(stdout.Bytes(), &checks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	names := make([]string, len(checks))
	for i, c := range checks {
		names[i] = c.Name
	}
	want := "Config, System, SteamCMD, Server, Mods, Plugins"
	if got := joinComma(names); got != want {
		t.Errorf("checks = %s, want %s", got, want)
	}
}
