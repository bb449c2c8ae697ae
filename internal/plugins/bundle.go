package plugins

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"vilehvh/internal/paths"
)

// Category classifies a bundle file by its first path segment.
type Category string

const (
	CategoryPlugin      Category = "plugin"
	CategoryScript      Category = "script"
	CategoryConfig      Category = "config"
	CategoryGamedata    Category = "gamedata"
	CategoryTranslation Category = "translation"
	CategoryOther       Category = "other"
)

var categoryDirs = map[string]Category{
	"plugins":      CategoryPlugin,
	"scripting":    CategoryScript,
	"configs":      CategoryConfig,
	"gamedata":     CategoryGamedata,
	"translations": CategoryTranslation,
}

// Classify returns the category for a slash path relative to the modloader dir.
func Classify(rel string) Category {
	first, _, _ := strings.Cut(rel, "/")
	if c, ok := categoryDirs[first]; ok {
		return c
	}
	return CategoryOther
}

// BundleFile is one file of a candidate plugin directory.
type BundleFile struct {
	Rel      string   `json:"rel"`
	Category Category `json:"category"`
}

// Bundle is a validated candidate directory.
type Bundle struct {
	Source  string       `json:"source"`
	Subtree string       `json:"subtree"`
	Files   []BundleFile `json:"files"`
}

// ByCategory counts files per category.
func (b Bundle) ByCategory() map[Category]int {
	counts := map[Category]int{}
	for _, f := range b.Files {
		counts[f.Category]++
	}
	return counts
}

var (
	// ErrInvalidStructure means the candidate lacks addons/<modloader>/plugins.
	ErrInvalidStructure = errors.New("plugin directory must contain addons/sourcemod/plugins")
	ErrPluginNotFound   = errors.New("plugin not found")
	ErrInvalidName      = errors.New("invalid plugin name")
)

// CopyError reports an I/O failure while merging a bundle.
type CopyError struct {
	Path string
	Err  error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy %s: %v", e.Path, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// Scan validates candidate and lists the files under addons/<modloader>.
func Scan(candidate, modloader string) (Bundle, error) {
	subtree := filepath.Join("addons", modloader)
	root := filepath.Join(candidate, subtree)
	if ok, _ := paths.DirExists(filepath.Join(root, "plugins")); !ok {
		return Bundle{}, fmt.Errorf("%w: %s", ErrInvalidStructure, candidate)
	}

	bundle := Bundle{Source: candidate, Subtree: filepath.ToSlash(subtree)}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		bundle.Files = append(bundle.Files, BundleFile{Rel: rel, Category: Classify(rel)})
		return nil
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("scan %s: %w", candidate, err)
	}
	return bundle, nil
}
