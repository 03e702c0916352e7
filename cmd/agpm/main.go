package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
	"github.com/agpm-dev/agpm/pkg/cli"
	"github.com/agpm-dev/agpm/pkg/console"
)

// Build-time variable set by GoReleaser.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "agpm",
	Short:   "A Git-based package manager for AI-agent assets",
	Version: version,
	Long: `agpm installs and updates agent definitions, snippets, commands,
scripts, hooks, and MCP server configs declared in agpm.toml.

Common tasks:
  agpm install             # resolve and install every dependency
  agpm update              # re-resolve, allowing version bumps
  agpm validate --resolve  # check the manifest without writing anything

For detailed help on any command, use:
  agpm [command] --help`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.SetOut(os.Stderr)
	rootCmd.SetVersionTemplate(fmt.Sprintf("%s\n", console.FormatInfoMessage("agpm version {{.Version}}")))

	rootCmd.AddCommand(cli.NewInstallCommand())
	rootCmd.AddCommand(cli.NewUpdateCommand())
	rootCmd.AddCommand(cli.NewValidateCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error to the exit codes of spec §6.1: 1 for a
// user-visible error (validation, staleness, an available update under
// --check), 2 for anything else.
func exitCodeFor(err error) int {
	var agpmErr *agpmerr.Error
	if errors.As(err, &agpmErr) {
		return 1
	}
	if errors.Is(err, cli.ErrUpdatesAvailable) {
		return 1
	}
	return 2
}
