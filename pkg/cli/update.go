package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agpm-dev/agpm/pkg/console"
	"github.com/agpm-dev/agpm/pkg/installer"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/resolver"
)

// ErrUpdatesAvailable is returned by `update --check` when at least one
// dependency would move to a different commit, per spec §6.1.
var ErrUpdatesAvailable = errors.New("updates are available")

// NewUpdateCommand builds the `update` command (spec §6.1): re-resolves the
// manifest's dependencies, allowing version bumps within their declared
// constraints, and refreshes the lockfile and installed files accordingly.
func NewUpdateCommand() *cobra.Command {
	var check, dryRun, backup, quiet bool

	cmd := &cobra.Command{
		Use:   "update [name...]",
		Short: "Re-resolve dependencies, allowing version bumps within constraints",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := loadContext(false)
			if err != nil {
				return err
			}

			lockPath := rc.root + string(os.PathSeparator) + "agpm.lock"
			previous, err := readExistingLockfile(lockPath)
			if err != nil {
				return err
			}

			g, _, err := resolver.Resolve(cmd.Context(), rc.m, rc.sm, rc.root)
			if err != nil {
				return err
			}

			changes := diffUpdates(previous, g, args)
			if !quiet {
				for _, c := range changes {
					fmt.Fprintln(cmd.OutOrStdout(), console.FormatInfoMessage(
						fmt.Sprintf("%s: %s -> %s", c.alias, c.from, c.to)))
				}
			}

			if check {
				if len(changes) > 0 {
					return ErrUpdatesAvailable
				}
				if !quiet {
					fmt.Fprintln(cmd.OutOrStdout(), console.FormatSuccessMessage("no updates available"))
				}
				return nil
			}

			if dryRun {
				if !quiet {
					fmt.Fprintln(cmd.OutOrStdout(), console.FormatInfoMessage(
						fmt.Sprintf("%d update(s) available (dry run, nothing written)", len(changes))))
				}
				return nil
			}

			if backup && previous != nil {
				if err := os.WriteFile(lockPath+".bak", []byte(previous.raw), 0o644); err != nil {
					return err
				}
			}

			res, err := installer.Install(cmd.Context(), rc.root, rc.m, rc.sm, installer.Options{Force: true})
			if err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintln(cmd.OutOrStdout(), console.FormatSuccessMessage(
					fmt.Sprintf("updated, %d resources installed", len(res.InstalledPaths))))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "exit 1 if any update is available, without writing")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	cmd.Flags().BoolVar(&backup, "backup", false, "save the existing lockfile as agpm.lock.bak first")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")

	return cmd
}

type existingLockfile struct {
	raw     string
	entries map[string]manifest.LockEntry
}

func readExistingLockfile(path string) (*existingLockfile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lock, err := manifest.ParseLockfile(string(data))
	if err != nil {
		return nil, err
	}
	byAlias := map[string]manifest.LockEntry{}
	for _, e := range lock.AllEntries() {
		if e.ManifestAlias != "" {
			byAlias[e.ManifestAlias] = e
		}
	}
	return &existingLockfile{raw: string(data), entries: byAlias}, nil
}

type updateChange struct {
	alias, from, to string
}

// diffUpdates compares the previous lockfile's resolved commit for each
// direct dependency against the freshly resolved graph, restricted to
// names when given. A dependency with no previous entry, or one resolving
// to a different commit, counts as an available update.
func diffUpdates(previous *existingLockfile, g *resolver.Graph, names []string) []updateChange {
	wanted := map[string]bool{}
	for _, n := range names {
		wanted[n] = true
	}

	var changes []updateChange
	for _, n := range g.Roots {
		for _, alias := range n.ManifestAliases {
			if len(wanted) > 0 && !wanted[alias] {
				continue
			}
			if n.IsLocal() {
				continue
			}
			from := "none"
			if previous != nil {
				if e, ok := previous.entries[alias]; ok {
					from = e.ResolvedCommit
				}
			}
			if from != n.CommitSHA {
				changes = append(changes, updateChange{alias: alias, from: shortSHA(from), to: shortSHA(n.CommitSHA)})
			}
		}
	}
	return changes
}

func shortSHA(sha string) string {
	if len(sha) > 10 {
		return sha[:10]
	}
	return sha
}
