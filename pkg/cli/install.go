package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agpm-dev/agpm/pkg/console"
	"github.com/agpm-dev/agpm/pkg/installer"
)

// NewInstallCommand builds the `install` command (spec §6.1): resolves the
// manifest's dependency graph and materializes it under the current
// directory, exiting 1 on staleness under --frozen/CI or any fatal error.
func NewInstallCommand() *cobra.Command {
	var opts installer.Options
	var quiet, verbose, noCache bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Resolve and install dependencies from agpm.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.CI = isCI()
			rc, err := loadContext(noCache)
			if err != nil {
				return err
			}

			res, err := installer.Install(cmd.Context(), rc.root, rc.m, rc.sm, opts)
			if err != nil {
				return err
			}

			if !quiet {
				for _, d := range res.StaleWarning {
					fmt.Fprintln(cmd.OutOrStdout(), console.FormatWarningMessage(
						"lockfile divergence: "+d.Alias+" "+d.Field+": "+d.Old+" -> "+d.New))
				}
				for _, w := range res.Warnings {
					fmt.Fprintln(cmd.OutOrStdout(), console.FormatWarningMessage(w.Message))
				}
				for _, path := range res.InstalledPaths {
					if verbose {
						fmt.Fprintln(cmd.OutOrStdout(), console.FormatInfoMessage("installed "+console.FormatPathMessage(path)))
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), console.FormatSuccessMessage(
					fmt.Sprintf("installed %d resources", len(res.InstalledPaths))))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Frozen, "frozen", false, "fail instead of warning on a stale lockfile")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "bypass the staleness check entirely")
	cmd.Flags().BoolVar(&opts.Regenerate, "regenerate", false, "delete the lockfile before resolving")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the persistent source cache")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every installed path")

	return cmd
}
