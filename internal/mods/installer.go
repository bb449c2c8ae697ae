// Package mods installs archive-distributed server mods (Metamod:Source and
// SourceMod) into the game directory.
package mods

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"vilehvh/internal/archive"
	"vilehvh/internal/config"
	"vilehvh/internal/paths"
	"vilehvh/internal/progress"
)

// Spec describes one archive mod. Paths are relative to the game directory.
type Spec struct {
	Name     string
	URL      string
	Marker   string
	Requires []string
	// PostInstall runs after the marker is verified.
	PostInstall func(target paths.InstallTarget) error
}

// Installer downloads and unpacks mods into a deployed server.
type Installer struct {
	Target   paths.InstallTarget
	Client   *http.Client
	Logger   zerolog.Logger
	Reporter progress.Reporter
	// Force reinstalls mods whose marker already exists.
	Force bool
}

// DefaultSpecs returns Metamod then SourceMod for goos, from config.
func DefaultSpecs(cfg config.ModsConfig, goos string) []Spec {
	metamod := Spec{
		Name:   "metamod",
		URL:    cfg.Metamod.URLFor(goos),
		Marker: cfg.Metamod.Marker,
	}
	if goos == "linux" {
		metamod.PostInstall = FixMetamodArch
	}
	sourcemod := Spec{
		Name:     "sourcemod",
		URL:      cfg.Sourcemod.URLFor(goos),
		Marker:   cfg.Sourcemod.Marker,
		Requires: []string{cfg.Metamod.Marker},
	}
	return []Spec{metamod, sourcemod}
}

// Install fetches spec.URL, extracts it over the game directory and checks
// the marker. A mod whose marker exists is left untouched unless Force.
// Failed extractions may leave partial files; re-running overwrites them.
func (i *Installer) Install(ctx context.Context, spec Spec) error {
	log := i.Logger.With().Str("mod", spec.Name).Logger()
	task := progress.NewTask(spec.Name, "", false)
	i.report(task)

	if ok, _ := paths.DirExists(i.Target.GameDir); !ok {
		return i.fail(task, spec, ErrMissingPrerequisite, fmt.Errorf("game directory %s not found; deploy the server first", i.Target.GameDir))
	}

	marker := filepath.Join(i.Target.GameDir, filepath.FromSlash(spec.Marker))
	if ok, _ := paths.FileExists(marker); ok && !i.Force {
		log.Info().Msg("already installed")
		task.Message = "already installed"
		task.Complete()
		i.report(task)
		return nil
	}

	for _, req := range spec.Requires {
		if ok, _ := paths.FileExists(filepath.Join(i.Target.GameDir, filepath.FromSlash(req))); !ok {
			return i.fail(task, spec, ErrMissingPrerequisite, fmt.Errorf("%s not found", req))
		}
	}

	name, err := archive.FileName(spec.URL)
	if err != nil {
		return i.fail(task, spec, ErrDownloadFailed, err)
	}
	tmpDir, err := os.MkdirTemp("", "vilehvh-"+spec.Name+"-")
	if err != nil {
		return i.fail(task, spec, ErrDownloadFailed, fmt.Errorf("create temp dir: %w", err))
	}
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, name)
	log.Info().Str("url", spec.URL).Msg("downloading")
	err = archive.Download(ctx, spec.URL, archivePath, archive.DownloadOptions{
		Client: i.Client,
		Progress: func(done, total int64) {
			pct := 0.0
			if total > 0 {
				pct = float64(done) / float64(total) * 100
			}
			task.Apply(progress.Update{Phase: progress.PhaseDownloading, Percent: pct, BytesDone: done, BytesTotal: total})
			i.report(task)
		},
	})
	if err != nil {
		return i.fail(task, spec, ErrDownloadFailed, err)
	}

	log.Info().Str("dest", i.Target.GameDir).Msg("extracting")
	if err := archive.Extract(archivePath, i.Target.GameDir); err != nil {
		// The marker may already be on disk; without it a re-run extracts again.
		if rmErr := os.Remove(marker); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn().Err(rmErr).Str("marker", spec.Marker).Msg("could not remove marker after failed extract")
		}
		return i.fail(task, spec, ErrExtractFailed, err)
	}

	task.Apply(progress.Update{Phase: progress.PhaseValidating, Percent: 100})
	i.report(task)
	if ok, _ := paths.FileExists(marker); !ok {
		return i.fail(task, spec, ErrVerificationFailed, fmt.Errorf("marker %s missing after extract", spec.Marker))
	}

	if spec.PostInstall != nil {
		if err := spec.PostInstall(i.Target); err != nil {
			log.Warn().Err(err).Msg("post-install step failed")
		}
	}

	task.Complete()
	i.report(task)
	log.Info().Msg("installed")
	return nil
}

// InstallAll installs specs in order, stopping at the first failure.
func (i *Installer) InstallAll(ctx context.Context, specs []Spec) error {
	for _, spec := range specs {
		if err := i.Install(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

// IsInstalled reports whether spec's marker exists.
func (i *Installer) IsInstalled(spec Spec) bool {
	ok, _ := paths.FileExists(filepath.Join(i.Target.GameDir, filepath.FromSlash(spec.Marker)))
	return ok
}

func (i *Installer) fail(task *progress.Task, spec Spec, kind, err error) error {
	task.Fail(kind.Error())
	i.report(task)
	i.Logger.Error().Err(err).Str("mod", spec.Name).Str("kind", kind.Error()).Msg("mod install failed")
	return &InstallError{Mod: spec.Name, Kind: kind, Err: err}
}

func (i *Installer) report(task *progress.Task) {
	if i.Reporter != nil {
		i.Reporter.Report(*task)
	}
}

// FixMetamodArch points metamod's linux64 binaries at linux32, since the
// legacy server is a 32-bit process. It does nothing when linux32 is absent
// or linux64 is already a link.
func FixMetamodArch(target paths.InstallTarget) error {
	bin := filepath.Join(target.MetamodDir, "bin")
	linux64 := filepath.Join(bin, "linux64")
	linux32 := filepath.Join(bin, "linux32")

	info, err := os.Lstat(linux64)
	if err != nil || info.Mode()&os.ModeSymlink != 0 || !info.IsDir() {
		return nil
	}
	if ok, _ := paths.DirExists(linux32); !ok {
		return nil
	}
	if err := os.RemoveAll(linux64); err != nil {
		return fmt.Errorf("remove linux64: %w", err)
	}
	if err := os.Symlink("linux32", linux64); err != nil {
		return fmt.Errorf("link linux64 to linux32: %w", err)
	}
	return nil
}
