package system

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const osReleasePath = "/etc/os-release"

// Prober reads the host environment. The function fields are seams for
// tests; nil fields fall back to the real host.
type Prober struct {
	GOOS     string
	GOARCH   string
	ReadFile func(path string) ([]byte, error)
	LookPath func(file string) (string, error)
	// Output runs a short command and returns its stdout.
	Output func(ctx context.Context, name string, args ...string) ([]byte, error)
	Logger zerolog.Logger
}

// Probe inspects the current host with default seams.
func Probe(ctx context.Context, logger zerolog.Logger) Profile {
	return (&Prober{Logger: logger}).Probe(ctx)
}

// Probe never fails: anything it cannot determine is left empty and the
// family degrades to generic Linux.
func (p *Prober) Probe(ctx context.Context) Profile {
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	p.defaults()

	profile := Profile{OS: p.GOOS, Arch: p.GOARCH}
	if p.GOOS == "linux" {
		profile.DistroID, profile.DistroVersion, profile.DistroLike = p.detectDistro(ctx)
	}
	profile.Family, profile.Ambiguous = classify(p.GOOS, profile.DistroID, profile.DistroLike)
	profile.PackageManagers = p.detectPackageManagers()

	p.Logger.Info().
		Str("os", profile.OS).
		Str("family", string(profile.Family)).
		Str("distro", profile.DistroID).
		Str("distro_version", profile.DistroVersion).
		Str("arch", profile.Arch).
		Int("package_managers", len(profile.PackageManagers)).
		Msg("system detected")
	if profile.Ambiguous {
		p.Logger.Warn().Str("os", profile.OS).Str("distro", profile.DistroID).Msg("host not recognised, using generic linux strategy")
	}
	return profile
}

func (p *Prober) defaults() {
	if p.GOOS == "" {
		p.GOOS = runtime.GOOS
	}
	if p.GOARCH == "" {
		p.GOARCH = runtime.GOARCH
	}
	if p.ReadFile == nil {
		p.ReadFile = os.ReadFile
	}
	if p.LookPath == nil {
		p.LookPath = exec.LookPath
	}
	if p.Output == nil {
		p.Output = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		}
	}
}

func (p *Prober) detectDistro(ctx context.Context) (string, string, []string) {
	if data, err := p.ReadFile(osReleasePath); err == nil {
		fields := ParseOSRelease(data)
		id := strings.ToLower(fields["ID"])
		var like []string
		for _, item := range strings.Fields(fields["ID_LIKE"]) {
			like = append(like, strings.ToLower(item))
		}
		p.Logger.Debug().Str("id", id).Str("version", fields["VERSION_ID"]).Msg("distro from os-release")
		return id, fields["VERSION_ID"], like
	}
	p.Logger.Debug().Msg("os-release not readable, trying lsb_release")

	out, err := p.Output(ctx, "lsb_release", "-is")
	if err != nil {
		return "", "", nil
	}
	id := strings.ToLower(strings.TrimSpace(string(out)))
	version := ""
	if vout, err := p.Output(ctx, "lsb_release", "-rs"); err == nil {
		version = strings.TrimSpace(string(vout))
	}
	return id, version, nil
}

func (p *Prober) detectPackageManagers() []PackageManager {
	var found []PackageManager
	for _, pm := range KnownPackageManagers {
		if _, err := p.LookPath(string(pm)); err == nil {
			found = append(found, pm)
			p.Logger.Debug().Str("package_manager", string(pm)).Msg("package manager found")
		}
	}
	if len(found) == 0 {
		p.Logger.Warn().Msg("no known package managers detected")
	}
	return found
}

// ParseOSRelease parses an os-release file. Each line is decoded on its own
// so a malformed entry does not hide the rest.
func ParseOSRelease(data []byte) map[string]string {
	fields := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, "=") {
			continue
		}
		kv, err := godotenv.Unmarshal(line)
		if err != nil {
			continue
		}
		for k, v := range kv {
			if k != "" {
				fields[k] = v
			}
		}
	}
	return fields
}
