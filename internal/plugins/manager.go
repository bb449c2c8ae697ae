// Package plugins merges SourceMod plugin bundles into a deployed server and
// manages installed plugins by file name.
package plugins

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"vilehvh/internal/archive"
	"vilehvh/internal/config"
	"vilehvh/internal/paths"
	"vilehvh/internal/runner"
)

// Record is one installed plugin, derived from the plugins directory.
type Record struct {
	Name    string `json:"name"`
	File    string `json:"file"`
	Enabled bool   `json:"enabled"`
}

// Manager operates on one install target. It keeps no plugin state; every
// query re-reads the directory.
type Manager struct {
	Target         paths.InstallTarget
	Modloader      string
	Extension      string
	DisabledSuffix string
	Runner         runner.Runner
	Client         *http.Client
	Logger         zerolog.Logger
}

// NewManager returns a manager using the plugin naming convention in cfg.
func NewManager(target paths.InstallTarget, cfg config.PluginsConfig, logger zerolog.Logger) *Manager {
	return &Manager{
		Target:         target,
		Modloader:      cfg.Modloader,
		Extension:      cfg.Extension,
		DisabledSuffix: cfg.DisabledSuffix,
		Runner:         runner.CmdRunner{},
		Logger:         logger,
	}
}

// subtreeDir is addons/<modloader> inside the game directory.
func (m *Manager) subtreeDir() string {
	return filepath.Join(m.Target.AddonsDir, m.Modloader)
}

func (m *Manager) pluginsDir() string {
	return filepath.Join(m.subtreeDir(), "plugins")
}

// Scan validates a candidate directory against the manager's modloader.
func (m *Manager) Scan(candidate string) (Bundle, error) {
	return Scan(candidate, m.Modloader)
}

// InstallFromDirectory copies every file under the candidate's
// addons/<modloader> into the server, overwriting files with the same
// relative path, and returns the plugins now installed.
func (m *Manager) InstallFromDirectory(candidate string) ([]Record, error) {
	bundle, err := m.Scan(candidate)
	if err != nil {
		return nil, err
	}
	src := filepath.Join(candidate, filepath.FromSlash(bundle.Subtree))
	for _, f := range bundle.Files {
		rel := filepath.FromSlash(f.Rel)
		if err := copyFile(filepath.Join(src, rel), filepath.Join(m.subtreeDir(), rel)); err != nil {
			return nil, &CopyError{Path: f.Rel, Err: err}
		}
		m.Logger.Debug().Str("file", f.Rel).Str("category", string(f.Category)).Msg("copied")
	}
	counts := bundle.ByCategory()
	m.Logger.Info().
		Str("source", candidate).
		Int("files", len(bundle.Files)).
		Int("plugins", counts[CategoryPlugin]).
		Msg("plugin bundle installed")
	return m.List()
}

// InstallFromSource installs from a local directory, a local or remote
// plugin binary, a remote archive, or a git repository (shallow clone).
func (m *Manager) InstallFromSource(ctx context.Context, source string) ([]Record, error) {
	switch {
	case isGitSource(source):
		return m.installFromGit(ctx, source)
	case isHTTP(source):
		return m.installFromURL(ctx, source)
	}

	if ok, _ := paths.DirExists(source); ok {
		return m.InstallFromDirectory(source)
	}
	if strings.HasSuffix(source, m.Extension) {
		if ok, _ := paths.FileExists(source); ok {
			return m.installBinary(source)
		}
	}
	if repoShorthand.MatchString(source) {
		return m.installFromGit(ctx, "https://github.com/"+source+".git")
	}
	return nil, fmt.Errorf("plugin source %s: not a directory, %s file, archive URL or git repository", source, m.Extension)
}

func (m *Manager) installFromGit(ctx context.Context, repo string) ([]Record, error) {
	tmp, err := os.MkdirTemp("", "vilehvh-plugin-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	dest := filepath.Join(tmp, "repo")
	m.Logger.Info().Str("repo", repo).Msg("cloning plugin repository")
	if _, err := m.Runner.Run(ctx, "git", []string{"clone", "--depth", "1", repo, dest}, runner.RunOptions{}); err != nil {
		return nil, fmt.Errorf("git clone %s: %w", repo, err)
	}
	return m.InstallFromDirectory(dest)
}

func (m *Manager) installFromURL(ctx context.Context, url string) ([]Record, error) {
	name, err := archive.FileName(url)
	if err != nil {
		return nil, err
	}
	tmp, err := os.MkdirTemp("", "vilehvh-plugin-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	file := filepath.Join(tmp, name)
	if err := archive.Download(ctx, url, file, archive.DownloadOptions{Client: m.Client}); err != nil {
		return nil, err
	}
	if strings.HasSuffix(name, m.Extension) {
		return m.installBinary(file)
	}
	if archive.DetectFormat(name) == archive.FormatUnknown {
		return nil, fmt.Errorf("unsupported plugin download %s", name)
	}
	extracted := filepath.Join(tmp, "bundle")
	if err := archive.Extract(file, extracted); err != nil {
		return nil, err
	}
	return m.InstallFromDirectory(extracted)
}

func (m *Manager) installBinary(path string) ([]Record, error) {
	name := filepath.Base(path)
	if err := copyFile(path, filepath.Join(m.pluginsDir(), name)); err != nil {
		return nil, &CopyError{Path: name, Err: err}
	}
	m.Logger.Info().Str("plugin", name).Msg("plugin installed")
	return m.List()
}

// List scans the plugins directory. A missing directory yields no records.
func (m *Manager) List() ([]Record, error) {
	entries, err := os.ReadDir(m.pluginsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("read plugins dir: %w", err)
	}
	records := []Record{}
	disabledExt := m.Extension + m.DisabledSuffix
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, disabledExt):
			records = append(records, Record{Name: strings.TrimSuffix(name, disabledExt), File: name})
		case strings.HasSuffix(name, m.Extension):
			records = append(records, Record{Name: strings.TrimSuffix(name, m.Extension), File: name, Enabled: true})
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

// Enable renames <name>.smx.disabled back to <name>.smx. Enabling an enabled
// plugin is a no-op.
func (m *Manager) Enable(name string) error {
	enabled, disabled, err := m.files(name)
	if err != nil {
		return err
	}
	if ok, _ := paths.FileExists(disabled); ok {
		if err := os.Rename(disabled, enabled); err != nil {
			return fmt.Errorf("enable %s: %w", name, err)
		}
		m.Logger.Info().Str("plugin", name).Msg("enabled")
		return nil
	}
	if ok, _ := paths.FileExists(enabled); ok {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
}

// Disable renames <name>.smx to <name>.smx.disabled. Disabling a disabled
// plugin is a no-op.
func (m *Manager) Disable(name string) error {
	enabled, disabled, err := m.files(name)
	if err != nil {
		return err
	}
	if ok, _ := paths.FileExists(enabled); ok {
		if err := os.Rename(enabled, disabled); err != nil {
			return fmt.Errorf("disable %s: %w", name, err)
		}
		m.Logger.Info().Str("plugin", name).Msg("disabled")
		return nil
	}
	if ok, _ := paths.FileExists(disabled); ok {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
}

// Remove deletes the plugin whether enabled or disabled. Removing an absent
// plugin is a no-op.
func (m *Manager) Remove(name string) error {
	enabled, disabled, err := m.files(name)
	if err != nil {
		return err
	}
	for _, path := range []string{enabled, disabled} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	m.Logger.Info().Str("plugin", name).Msg("removed")
	return nil
}

// files normalizes name (with or without extension) to its two file paths.
func (m *Manager) files(name string) (string, string, error) {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, m.DisabledSuffix)
	name = strings.TrimSuffix(name, m.Extension)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	enabled := filepath.Join(m.pluginsDir(), name+m.Extension)
	return enabled, enabled + m.DisabledSuffix, nil
}

// repoShorthand matches "owner/repo" when no such local path exists.
var repoShorthand = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

func isHTTP(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func isGitSource(source string) bool {
	if strings.HasPrefix(source, "git@") || strings.HasPrefix(source, "git://") || strings.HasSuffix(source, ".git") {
		return true
	}
	if !isHTTP(source) {
		return false
	}
	// Bare GitHub/GitLab repository pages clone; release asset links download.
	trimmed := strings.TrimPrefix(strings.TrimPrefix(source, "https://"), "http://")
	host, path, _ := strings.Cut(trimmed, "/")
	if host != "github.com" && host != "gitlab.com" {
		return false
	}
	return len(strings.Split(strings.Trim(path, "/"), "/")) == 2
}

func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	dest, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dest, source); err != nil {
		dest.Close()
		return err
	}
	return dest.Close()
}
