// Package cli wires the command-line participant: authentication, room
// REST calls, and the live session loop over the relay.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/liteclass/liteclass/internal/logging"
)

type rootOptions struct {
	server string
	token  string
	email  string
	name   string
	log    *logrus.Logger
}

// NewRootCommand builds the liteclass CLI.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "liteclass",
		Short: "Audio classroom client",
		Long:  "Terminal client for liteclass rooms: join a class, talk, vote, and follow the shared whiteboard.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.log = logging.Init()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:8080", "signaling server base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", "", "session token; obtained via --email/--name when empty")
	root.PersistentFlags().StringVar(&opts.email, "email", "", "identity email for login")
	root.PersistentFlags().StringVar(&opts.name, "name", "", "display name for login")

	root.AddCommand(newJoinCommand(opts))
	root.AddCommand(newCreateCommand(opts))

	return root
}
