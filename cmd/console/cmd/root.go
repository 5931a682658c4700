// Package cmd holds the recruitpipe console commands: sign-in, session inspection, route
// checks and the step-up password change.
package cmd

import (
	"github.com/spf13/cobra"
)

// Execute runs the console with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds a fresh command tree. Commands that touch the session open it on entry
// and close it on every exit path.
func NewRootCmd() *cobra.Command {
	var (
		a       = &app{}
		noColor bool
	)
	root := &cobra.Command{
		Use:   "console",
		Short: "Recruitment dashboard identity console",
		Long: `console signs in to the recruitment dashboard and manages the local session.

Example usage:
  console login --email ava@example.com --password-stdin
  console whoami
  console route /admin/users
  console password           # step-up verification, then a new password
  console logout`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.printer = newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), !noColor)
		},
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newRefreshCmd(a),
		newProfileCmd(a),
		newRouteCmd(a),
		newPasswordCmd(a),
		newPolicyCmd(a),
	)
	return root
}
