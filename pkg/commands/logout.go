package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func addLogout(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved login.",
		Example: `
messer logout
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			defer env.Close()

			if err := env.Lifecycle(cmd).Logout(cmd.Context()); err != nil {
				return oo.HandleError(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}

	topLevel.AddCommand(cmd)
}
