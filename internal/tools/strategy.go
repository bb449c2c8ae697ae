package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vilehvh/internal/archive"
	"vilehvh/internal/runner"
	"vilehvh/internal/system"
)

// Strategy installs SteamCMD on hosts matching its predicate and returns the
// path of the installed binary.
type Strategy struct {
	Name    StrategyName
	Matches func(profile system.Profile) bool
	Install func(ctx context.Context, p *Provisioner, profile system.Profile) (string, error)
}

// Strategies returns the decision table in priority order. The predicates are
// mutually exclusive and together cover every profile.
func Strategies() []Strategy {
	return []Strategy{
		{Name: StrategyAUR, Matches: matchesAUR, Install: installAUR},
		{Name: StrategyApt, Matches: matchesApt, Install: installApt},
		{Name: StrategyWindowsZip, Matches: matchesWindows, Install: installWindowsZip},
		{Name: StrategyTarball, Matches: matchesTarball, Install: installTarball},
	}
}

// Select returns the first strategy whose predicate matches.
func Select(profile system.Profile) Strategy {
	table := Strategies()
	for _, s := range table {
		if s.Matches(profile) {
			return s
		}
	}
	return table[len(table)-1]
}

func matchesAUR(p system.Profile) bool {
	return p.Family == system.FamilyArch && (p.Has(system.Yay) || p.Has(system.Paru) || p.Has(system.Pacman))
}

func matchesApt(p system.Profile) bool {
	return p.Family == system.FamilyDebian && p.Has(system.Apt)
}

func matchesWindows(p system.Profile) bool {
	return p.Family == system.FamilyWindows
}

func matchesTarball(p system.Profile) bool {
	return !matchesAUR(p) && !matchesApt(p) && !matchesWindows(p)
}

func installAUR(ctx context.Context, p *Provisioner, profile system.Profile) (string, error) {
	for _, helper := range []system.PackageManager{system.Yay, system.Paru} {
		if profile.Has(helper) {
			if err := p.run(ctx, "", nil, nil, string(helper), "-S", "--noconfirm", ToolName); err != nil {
				return "", err
			}
			return p.systemBinary()
		}
	}

	p.Logger.Info().Msg("no AUR helper found, building steamcmd with makepkg")
	if err := p.runPrivileged(ctx, nil, nil, "pacman", "-S", "--needed", "--noconfirm", "base-devel", "git"); err != nil {
		return "", err
	}
	buildRoot, err := os.MkdirTemp("", "steamcmd-aur-")
	if err != nil {
		return "", fmt.Errorf("create build dir: %w", err)
	}
	defer os.RemoveAll(buildRoot)

	pkgDir := filepath.Join(buildRoot, ToolName)
	if err := p.run(ctx, "", nil, nil, "git", "clone", p.Config.AURRepo, pkgDir); err != nil {
		return "", err
	}
	if err := p.run(ctx, pkgDir, nil, nil, "makepkg", "-si", "--noconfirm"); err != nil {
		return "", err
	}
	return p.systemBinary()
}

const (
	aptSourcesList = "/etc/apt/sources.list"
	aptSourcesGlob = "/etc/apt/sources.list.d/*"
)

// steamcmd's package asks for the Steam license through debconf.
const steamDebconf = "steam steam/question select I AGREE\nsteam steam/license note ''\n"

func installApt(ctx context.Context, p *Provisioner, profile system.Profile) (string, error) {
	enabled, err := p.foreignArchEnabled(ctx, "i386")
	if err != nil {
		return "", err
	}
	if enabled {
		p.Logger.Debug().Msg("i386 architecture already enabled")
	} else if err := p.runPrivileged(ctx, nil, nil, "dpkg", "--add-architecture", "i386"); err != nil {
		return "", err
	}

	component := restrictedComponent(profile)
	if p.componentEnabled(component) {
		p.Logger.Debug().Str("component", component).Msg("apt component already enabled")
	} else if err := p.runPrivileged(ctx, nil, nil, "add-apt-repository", "-y", component); err != nil {
		return "", err
	}

	if err := p.runPrivileged(ctx, nil, strings.NewReader(steamDebconf), "debconf-set-selections"); err != nil {
		return "", err
	}
	env := []string{"DEBIAN_FRONTEND=noninteractive"}
	if err := p.runPrivileged(ctx, env, nil, "apt-get", "update"); err != nil {
		return "", err
	}
	if err := p.runPrivileged(ctx, env, nil, "apt-get", "install", "-y", ToolName); err != nil {
		return "", err
	}
	return p.systemBinary()
}

// restrictedComponent is the apt component that carries steamcmd.
func restrictedComponent(profile system.Profile) string {
	if profile.IsDistro("ubuntu") {
		return "multiverse"
	}
	return "non-free"
}

func (p *Provisioner) foreignArchEnabled(ctx context.Context, arch string) (bool, error) {
	var out bytes.Buffer
	_, err := p.Runner.Run(ctx, "dpkg", []string{"--print-foreign-architectures"}, runner.RunOptions{Stdout: &out})
	if err != nil {
		return false, fmt.Errorf("dpkg --print-foreign-architectures: %w", err)
	}
	for _, field := range strings.Fields(out.String()) {
		if field == arch {
			return true, nil
		}
	}
	return false, nil
}

// componentEnabled scans one-line and deb822 apt sources for component.
func (p *Provisioner) componentEnabled(component string) bool {
	files := []string{aptSourcesList}
	if extra, err := p.Glob(aptSourcesGlob); err == nil {
		files = append(files, extra...)
	}
	for _, file := range files {
		data, err := p.ReadFile(file)
		if err != nil {
			continue
		}
		if sourcesHaveComponent(string(data), component) {
			return true
		}
	}
	return false
}

func sourcesHaveComponent(data, component string) bool {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var fields []string
		switch {
		case strings.HasPrefix(line, "deb ") || strings.HasPrefix(line, "deb-src "):
			fields = strings.Fields(line)
			// Skip "deb [options] uri suite".
			if len(fields) > 0 && strings.HasPrefix(fields[1], "[") {
				for i, f := range fields {
					if strings.HasSuffix(f, "]") {
						fields = fields[i+1:]
						break
					}
				}
			} else {
				fields = fields[1:]
			}
			if len(fields) < 3 {
				continue
			}
			fields = fields[2:]
		case strings.HasPrefix(line, "Components:"):
			fields = strings.Fields(strings.TrimPrefix(line, "Components:"))
		default:
			continue
		}
		for _, f := range fields {
			if f == component {
				return true
			}
		}
	}
	return false
}

func installWindowsZip(ctx context.Context, p *Provisioner, _ system.Profile) (string, error) {
	if err := p.fetchAndExtract(ctx, p.Config.WindowsURL); err != nil {
		return "", err
	}
	return p.userBinary(), nil
}

func installTarball(ctx context.Context, p *Provisioner, _ system.Profile) (string, error) {
	if err := p.fetchAndExtract(ctx, p.Config.LinuxURL); err != nil {
		return "", err
	}
	binary := p.userBinary()
	if err := os.Chmod(binary, 0o755); err != nil {
		return "", fmt.Errorf("chmod %s: %w", binary, err)
	}
	return binary, nil
}

func (p *Provisioner) fetchAndExtract(ctx context.Context, url string) error {
	name, err := archive.FileName(url)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", p.Dir, err)
	}
	archivePath := filepath.Join(p.Dir, name)
	p.Logger.Info().Str("url", url).Str("dir", p.Dir).Msg("downloading steamcmd")
	if err := p.Download(ctx, url, archivePath); err != nil {
		return err
	}
	defer os.Remove(archivePath)
	if err := archive.Extract(archivePath, p.Dir); err != nil {
		return fmt.Errorf("extract %s: %w", name, err)
	}
	return nil
}
