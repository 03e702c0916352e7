package manifest

import (
	"os"
	"path/filepath"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
	"github.com/agpm-dev/agpm/pkg/fsutil"
)

// Load reads and parses the agpm.toml at manifestPath, additionally
// resolving the escaping-local-path exception of spec §4.1 (a local
// dependency path that normalizes outside the manifest directory is allowed
// only when the target file exists).
func Load(manifestPath string) (*Manifest, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, agpmerr.Wrap(agpmerr.KindIO, err, "reading manifest %s", manifestPath)
	}
	m, err := Parse(string(data))
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(manifestPath)
	for _, ref := range m.AllDependencies() {
		if err := checkLocalEscape(dir, ref.Dependency); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func checkLocalEscape(manifestDir string, dep Dependency) error {
	if dep.IsLocal() && dep.Path != "" {
		normalized := fsutil.NormalizeRelative(dep.Path)
		if fsutil.EscapesRoot(normalized) {
			full := filepath.Join(manifestDir, filepath.FromSlash(normalized))
			if !fsutil.Exists(full) {
				return agpmerr.New(agpmerr.KindPathEscapesRoot,
					"local dependency %q path %q escapes the manifest directory and no such file exists", dep.Alias, dep.Path).
					WithContext(dep.Alias, "", dep.Path, "")
			}
		}
	}
	for _, child := range dep.Dependencies {
		if err := checkLocalEscape(manifestDir, child.Dependency); err != nil {
			return err
		}
	}
	return nil
}
