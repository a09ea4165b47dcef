package options

import (
	"github.com/spf13/cobra"
)

// CommandOptions
type CommandOptions struct {
	Command string
}

func AddCommandArgs(cmd *cobra.Command, o *CommandOptions) {
	cmd.Flags().StringVarP(&o.Command, "command", "c", "",
		`Run a single command and exit, example: -c 'message "bob" hi'.`)
}

// Single reports whether a one shot command was given.
func (o *CommandOptions) Single() bool {
	return o.Command != ""
}
