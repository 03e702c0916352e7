package manifest

import (
	"path"
	"strings"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
)

// validate performs the cross-field checks of spec §4.1 that can't be
// decided while a single table is being decoded: dependencies referencing an
// undefined source, and dependency paths that are absolute or escape their
// base directory.
func validate(m *Manifest) error {
	for _, ref := range m.AllDependencies() {
		if err := validateDependency(m, ref.Dependency); err != nil {
			return err
		}
	}
	for rt, byAlias := range m.Patch {
		for alias := range byAlias {
			if _, ok := m.Resources[rt][alias]; !ok {
				return agpmerr.New(agpmerr.KindValidation,
					"patch.%s.%s refers to an undefined dependency", rt, alias).WithContext(alias, "", "", "")
			}
		}
	}
	return nil
}

func validateDependency(m *Manifest, dep Dependency) error {
	if dep.Source != "" {
		if _, ok := m.Sources[dep.Source]; !ok {
			return agpmerr.New(agpmerr.KindValidation, "dependency %q references undefined source %q", dep.Alias, dep.Source).
				WithContext(dep.Alias, dep.Source, "", "")
		}
	}
	if err := validatePath(dep); err != nil {
		return err
	}
	for _, child := range dep.Dependencies {
		if err := validateDependency(m, child.Dependency); err != nil {
			return err
		}
	}
	return nil
}

// validatePath rejects absolute paths outright, and rejects paths that
// normalize to escape their base directory unless the dependency is local
// and the escaping path exists relative to the manifest's own directory —
// resolution of that existence check happens in the loader, which has the
// manifest directory; validate only rejects what can never be legal.
func validatePath(dep Dependency) error {
	if dep.Path == "" {
		return nil
	}
	if strings.HasPrefix(dep.Path, "/") || (len(dep.Path) > 1 && dep.Path[1] == ':') {
		return agpmerr.New(agpmerr.KindPathEscapesRoot, "dependency %q has an absolute path %q", dep.Alias, dep.Path).
			WithContext(dep.Alias, dep.Source, dep.Path, "")
	}
	clean := path.Clean(strings.ReplaceAll(dep.Path, "\\", "/"))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		if !dep.IsLocal() {
			return agpmerr.New(agpmerr.KindPathEscapesRoot, "dependency %q path %q escapes its source root", dep.Alias, dep.Path).
				WithContext(dep.Alias, dep.Source, dep.Path, "")
		}
		// Local dependencies are allowed to escape the manifest directory
		// only when the target file actually exists; the loader re-checks
		// this with the real manifest directory (spec §4.1).
	}
	return nil
}
