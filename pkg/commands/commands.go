package commands

import (
	"github.com/spf13/cobra"

	"tableflip.dev/messer/pkg/commands/options"
)

var (
	oo = &options.OutputOptions{}
	so = &options.SessionOptions{}
)

func New() *cobra.Command {
	co := &options.CommandOptions{}

	cmd := &cobra.Command{
		Use:   "messer",
		Short: options.Wrap80("Chat from the command line."),
		Long: options.Wrap80(`Chat from the command line. Without arguments messer logs in and
reads commands until input ends. Type help once logged in for the list of
commands.`),
		Example: `
messer
messer -c 'message "bob" see you at 5'
messer --mailbox /srv/messer logout
`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			defer env.Close()

			l := env.Lifecycle(cmd)
			if co.Single() {
				return oo.HandleError(l.RunSingle(cmd.Context(), co.Command, cmd.OutOrStdout(), cmd.ErrOrStderr()))
			}
			return oo.HandleError(l.Start(cmd.Context()))
		},
	}

	options.AddSessionArgs(cmd, so)
	options.AddOutputArg(cmd, oo)
	options.AddCommandArgs(cmd, co)

	AddCommands(cmd)
	return cmd
}

func AddCommands(topLevel *cobra.Command) {
	addLogout(topLevel)
	addVersion(topLevel)
}
