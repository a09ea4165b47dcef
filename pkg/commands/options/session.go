package options

import (
	"github.com/spf13/cobra"
)

// SessionOptions locate session state. The flag names match config keys so
// they override the config file and MESSER_* environment.
type SessionOptions struct {
	Debug   bool
	Dir     string
	Mailbox string
}

func AddSessionArgs(cmd *cobra.Command, o *SessionOptions) {
	cmd.PersistentFlags().BoolVar(&o.Debug, "debug", false,
		"Write a debug log to the state directory.")
	cmd.PersistentFlags().StringVar(&o.Dir, "dir", "~/.messer",
		"Directory for the saved login and logs.")
	cmd.PersistentFlags().StringVar(&o.Mailbox, "mailbox", "",
		Wrap80("Shared mailbox directory. Defaults to <dir>/mailbox. Point several users at the same mailbox to message each other."))
}
