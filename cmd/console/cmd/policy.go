package cmd

import (
	"github.com/spf13/cobra"

	"recruitpipe/console/internal/security"
)

func newPolicyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "policy [password]",
		Short: "Check a password against the password requirements",
		Long: `Print each password requirement and whether the candidate meets it. Without an
argument the candidate is read from stdin. No session is needed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pw string
			if len(args) == 1 {
				pw = args[0]
			} else {
				a.printer.Prompt("Password: ")
				var err error
				if pw, err = newLineInput(cmd.InOrStdin()).secret(a.printer); err != nil {
					return err
				}
			}
			a.printer.Policy(security.EvaluatePassword(pw))
			if err := security.ValidatePassword(pw); err != nil {
				return err
			}
			a.printer.Success("Password accepted")
			return nil
		},
	}
}
