package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agpm-dev/agpm/pkg/console"
	"github.com/agpm-dev/agpm/pkg/installer"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/resolver"
)

// NewValidateCommand builds the `validate` command (spec §6.1): checks that
// agpm.toml parses and, optionally, that it agrees with agpm.lock and that
// its dependency graph actually resolves.
func NewValidateCommand() *cobra.Command {
	var checkLock, doResolve, showPaths bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Verify manifest and lockfile consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := loadContext(false)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), console.FormatSuccessMessage("agpm.toml is valid"))

			if checkLock {
				if err := validateLockfile(cmd, rc.root, rc.m); err != nil {
					return err
				}
			}

			if doResolve || showPaths {
				g, warnings, err := resolver.Resolve(cmd.Context(), rc.m, rc.sm, rc.root)
				if err != nil {
					return err
				}
				for _, w := range warnings {
					fmt.Fprintln(cmd.OutOrStdout(), console.FormatWarningMessage(w.Message))
				}
				fmt.Fprintln(cmd.OutOrStdout(), console.FormatSuccessMessage(
					fmt.Sprintf("dependency graph resolves, %d resource(s)", len(g.All))))

				if showPaths {
					for _, n := range g.InstallOrder() {
						if !n.Install {
							continue
						}
						fmt.Fprintln(cmd.OutOrStdout(), console.FormatPathMessage(installer.InstalledPath(rc.m, n)))
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&checkLock, "check-lock", false, "verify agpm.lock agrees with agpm.toml")
	cmd.Flags().BoolVar(&doResolve, "resolve", false, "fully resolve the dependency graph")
	cmd.Flags().BoolVar(&showPaths, "paths", false, "print each resource's installed path")

	return cmd
}

func validateLockfile(cmd *cobra.Command, root string, m *manifest.Manifest) error {
	lockPath := root + string(os.PathSeparator) + "agpm.lock"
	data, err := os.ReadFile(lockPath)
	if os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), console.FormatWarningMessage("no agpm.lock present"))
		return nil
	}
	if err != nil {
		return err
	}
	lock, err := manifest.ParseLockfile(string(data))
	if err != nil {
		return err
	}
	divergences := installer.CheckStaleness(m, lock)
	if len(divergences) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), console.FormatSuccessMessage("agpm.lock is current"))
		return nil
	}
	for _, line := range installer.DivergenceLines(divergences) {
		fmt.Fprintln(cmd.OutOrStdout(), console.FormatWarningMessage(line))
	}
	return installer.StalenessError(divergences)
}
