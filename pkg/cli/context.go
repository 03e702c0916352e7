// Package cli implements the agpm command-line surface of spec §6.1:
// install, update, and validate, each a thin cobra.Command wiring the
// manifest loader, source manager, resolver, and installer together.
package cli

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/agpm-dev/agpm/pkg/globalconfig"
	"github.com/agpm-dev/agpm/pkg/logger"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/source"
)

var log = logger.New("agpm:cli")

// manifestFileName is the default manifest basename resolved in the current
// working directory (spec §6.2).
const manifestFileName = "agpm.toml"

// runContext bundles the pieces every command needs: the parsed manifest,
// its directory, and a source manager rooted at the resolved cache dir.
type runContext struct {
	root string
	m    *manifest.Manifest
	sm   *source.Manager
}

// loadContext resolves agpm.toml in the current working directory, loads
// the global config's credential resolver, and constructs a source.Manager
// rooted at the effective cache directory (AGPM_CACHE_DIR, or
// ~/.agpm/cache per spec §6.1). noCache wipes the persistent bare-clone and
// worktree cache first, forcing every source to be re-cloned.
func loadContext(noCache bool) (*runContext, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	manifestPath := filepath.Join(wd, manifestFileName)
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}

	resolver, err := globalconfig.LoadDefault()
	if err != nil {
		return nil, err
	}

	cacheDir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	log.Printf("cache dir: %s", cacheDir)

	if noCache {
		if err := os.RemoveAll(filepath.Join(cacheDir, "sources")); err != nil {
			return nil, err
		}
		if err := os.RemoveAll(filepath.Join(cacheDir, "worktrees")); err != nil {
			return nil, err
		}
	}

	sm := source.NewManager(cacheDir, resolver, runtime.NumCPU())
	return &runContext{root: wd, m: m, sm: sm}, nil
}

// cacheDir returns AGPM_CACHE_DIR if set, else ~/.agpm/cache.
func cacheDir() (string, error) {
	if dir := os.Getenv("AGPM_CACHE_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".agpm", "cache"), nil
}

// isCI reports whether the process is running under a continuous
// integration environment, per spec §4.7.5 / §6.1.
func isCI() bool {
	return os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
}
