package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewInstallTargetLayout(t *testing.T) {
	root := t.TempDir()
	target, err := NewInstallTarget(root)
	if err != nil {
		t.Fatalf("NewInstallTarget: %v", err)
	}

	want := map[string]string{
		"GameDir":         filepath.Join(root, "csgo"),
		"AddonsDir":       filepath.Join(root, "csgo", "addons"),
		"MetamodDir":      filepath.Join(root, "csgo", "addons", "metamod"),
		"SourcemodDir":    filepath.Join(root, "csgo", "addons", "sourcemod"),
		"PluginsDir":      filepath.Join(root, "csgo", "addons", "sourcemod", "plugins"),
		"TranslationsDir": filepath.Join(root, "csgo", "addons", "sourcemod", "translations"),
		"BinDir":          filepath.Join(root, "bin"),
	}
	got := map[string]string{
		"GameDir":         target.GameDir,
		"AddonsDir":       target.AddonsDir,
		"MetamodDir":      target.MetamodDir,
		"SourcemodDir":    target.SourcemodDir,
		"PluginsDir":      target.PluginsDir,
		"TranslationsDir": target.TranslationsDir,
		"BinDir":          target.BinDir,
	}
	for key, w := range want {
		if got[key] != w {
			t.Errorf("%s = %q, want %q", key, got[key], w)
		}
	}
}

func TestNewInstallTargetRejectsEmpty(t *testing.T) {
	if _, err := NewInstallTarget("  "); err == nil {
		t.Fatal("expected error for empty install dir")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/csgo-server"); got != filepath.Join(home, "csgo-server") {
		t.Fatalf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/opt/server"); got != "/opt/server" {
		t.Fatalf("ExpandHome changed absolute path: %q", got)
	}
}

func TestGlobalDirOverrides(t *testing.T) {
	base := t.TempDir()
	t.Setenv(EnvStateDir, filepath.Join(base, "state"))
	t.Setenv(EnvDataDir, filepath.Join(base, "data"))
	t.Setenv(EnvConfigDir, filepath.Join(base, "config"))

	logs, err := LogsDir()
	if err != nil {
		t.Fatalf("LogsDir: %v", err)
	}
	if logs != filepath.Join(base, "state", "logs") {
		t.Fatalf("LogsDir = %q", logs)
	}
	if ok, _ := DirExists(logs); !ok {
		t.Fatal("expected logs dir to be created")
	}

	data, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir: %v", err)
	}
	if data != filepath.Join(base, "data") {
		t.Fatalf("DataDir = %q", data)
	}

	if got := ConfigFile(); got != filepath.Join(base, "config", "vilehvh.yaml") {
		t.Fatalf("ConfigFile = %q", got)
	}
}

func TestFileAndDirExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "srcds_run")
	if err := os.WriteFile(file, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	if ok, err := FileExists(file); err != nil || !ok {
		t.Fatalf("FileExists(file) = %v, %v", ok, err)
	}
	if ok, _ := FileExists(dir); ok {
		t.Fatal("FileExists(dir) should be false")
	}
	if ok, err := DirExists(dir); err != nil || !ok {
		t.Fatalf("DirExists(dir) = %v, %v", ok, err)
	}
	if ok, err := DirExists(filepath.Join(dir, "missing")); err != nil || ok {
		t.Fatalf("DirExists(missing) = %v, %v", ok, err)
	}
}
