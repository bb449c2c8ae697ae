package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const (
	appName = "vilehvh"

	// GameSubdir is the mod directory of the payload under the install root.
	GameSubdir = "csgo"
	// Modloader is the plugin framework whose subtree plugins are merged into.
	Modloader = "sourcemod"
)

// Environment overrides for the global directories.
const (
	EnvConfigDir = "VILEHVH_CONFIG_DIR"
	EnvStateDir  = "VILEHVH_STATE_DIR"
	EnvDataDir   = "VILEHVH_DATA_DIR"
)

// InstallTarget captures canonical locations inside a deployed server.
type InstallTarget struct {
	Root            string
	GameDir         string
	AddonsDir       string
	MetamodDir      string
	SourcemodDir    string
	PluginsDir      string
	ScriptingDir    string
	ConfigsDir      string
	GamedataDir     string
	TranslationsDir string
	BinDir          string
}

// NewInstallTarget resolves root to an absolute path and derives the layout.
func NewInstallTarget(root string) (InstallTarget, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return InstallTarget{}, fmt.Errorf("install directory is empty")
	}
	abs, err := filepath.Abs(ExpandHome(root))
	if err != nil {
		return InstallTarget{}, fmt.Errorf("resolve install directory: %w", err)
	}
	return newInstallTarget(abs), nil
}

func newInstallTarget(root string) InstallTarget {
	game := filepath.Join(root, GameSubdir)
	addons := filepath.Join(game, "addons")
	sm := filepath.Join(addons, Modloader)
	return InstallTarget{
		Root:            root,
		GameDir:         game,
		AddonsDir:       addons,
		MetamodDir:      filepath.Join(addons, "metamod"),
		SourcemodDir:    sm,
		PluginsDir:      filepath.Join(sm, "plugins"),
		ScriptingDir:    filepath.Join(sm, "scripting"),
		ConfigsDir:      filepath.Join(sm, "configs"),
		GamedataDir:     filepath.Join(sm, "gamedata"),
		TranslationsDir: filepath.Join(sm, "translations"),
		BinDir:          filepath.Join(root, "bin"),
	}
}

// EnsureRoot makes sure the install root exists on disk.
func (t InstallTarget) EnsureRoot() error {
	if err := os.MkdirAll(t.Root, 0o755); err != nil {
		return fmt.Errorf("create install root: %w", err)
	}
	return nil
}

// DefaultInstallRoot returns the platform default server directory.
func DefaultInstallRoot(goos string) (string, error) {
	if goos == "windows" {
		return `C:\csgo-server`, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("detect user home: %w", err)
	}
	return filepath.Join(home, "csgo-server"), nil
}

// DefaultSteamCMDDir returns the directory archive-based installs unpack into.
func DefaultSteamCMDDir(goos string) (string, error) {
	if goos == "windows" {
		return `C:\steamcmd`, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("detect user home: %w", err)
	}
	return filepath.Join(home, "steamcmd"), nil
}

// ConfigFile returns the user config file path (vilehvh.yaml).
func ConfigFile() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return filepath.Join(dir, appName+".yaml")
	}
	return filepath.Join(xdg.ConfigHome, appName, appName+".yaml")
}

// StateDir returns the per-user state directory, creating it if needed.
func StateDir() (string, error) {
	dir := os.Getenv(EnvStateDir)
	if dir == "" {
		dir = filepath.Join(xdg.StateHome, appName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	return dir, nil
}

// LogsDir returns the directory run logs are written to.
func LogsDir() (string, error) {
	state, err := StateDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(state, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create logs dir: %w", err)
	}
	return dir, nil
}

// DataDir returns the per-user data directory holding the tool manifest.
func DataDir() (string, error) {
	dir := os.Getenv(EnvDataDir)
	if dir == "" {
		dir = filepath.Join(xdg.DataHome, appName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return dir, nil
}

// ExpandHome replaces a leading ~ with the user home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
