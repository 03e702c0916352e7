package installer

import (
	"os"
	"path/filepath"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
	"github.com/agpm-dev/agpm/pkg/fsutil"
)

// writeAtomic writes data to a project-relative, forward-slash path under
// root via fsutil's temp-file-then-rename primitive (spec §4.7.4).
func writeAtomic(path string, data []byte) error {
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return agpmerr.Wrap(agpmerr.KindIO, err, "writing %s", path)
	}
	return nil
}

// nativePath joins root with a forward-slash, project-relative path,
// converting to the host's native separator.
func nativePath(root, rel string) string {
	return filepath.Join(root, fsutil.FromSlash(rel))
}

// readFileIfExists returns a file's contents, or "" if it doesn't exist.
func readFileIfExists(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", agpmerr.Wrap(agpmerr.KindIO, err, "reading %s", path)
	}
	return string(data), nil
}
