package handler

// Options tune the default command table.
type Options struct {
	// History is the default count for history and recent.
	History int
}

// Default builds the registry of built in commands.
func Default(o Options) *Registry {
	if o.History <= 0 {
		o.History = 5
	}
	q := &queries{limit: o.History}

	r, err := NewRegistry(
		Command{Name: Message, Aliases: []string{"m"}, Usage: usageMessage,
			Short: "Send a message to a thread or user.", Handler: HandlerFunc(sendMessage)},
		Command{Name: "reply", Aliases: []string{"r"}, Usage: usageReply,
			Short: "Reply to the last active thread.", Handler: HandlerFunc(reply)},
		Command{Name: Delete, Aliases: []string{"d"}, Usage: usageDelete,
			Short: "Delete your last messages in a thread.", Handler: HandlerFunc(deleteMessages)},
		Command{Name: "lock", Aliases: []string{"l"}, Usage: usageLock,
			Short: "Send everything you type to one thread. --secret deletes each message after sending.", Handler: HandlerFunc(lockThread)},
		Command{Name: Unlock, Aliases: []string{"u"}, Usage: "unlock",
			Short: "Leave locked mode.", Handler: HandlerFunc(unlockThread)},
		Command{Name: "history", Aliases: []string{"h"}, Usage: usageHistory,
			Short: "Show the latest messages in a thread.", Handler: HandlerFunc(q.history)},
		Command{Name: "recent", Usage: usageRecent,
			Short: "List the most recently active threads.", Handler: HandlerFunc(q.recent)},
		Command{Name: "contacts", Usage: "contacts",
			Short: "List known users.", Handler: HandlerFunc(contacts)},
		Command{Name: "clear", Usage: "clear",
			Short: "Clear the screen and unread notifications.", Handler: HandlerFunc(clearScreen)},
		Command{Name: "logout", Usage: "logout",
			Short: "Log out and end the session.", Handler: HandlerFunc(logout)},
	)
	if err != nil {
		panic(err)
	}
	if err := r.register(Command{Name: "help", Usage: "help",
		Short: "Show this help.", Handler: help(r)}); err != nil {
		panic(err)
	}
	return r
}
