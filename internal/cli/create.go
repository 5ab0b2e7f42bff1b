package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newCreateCommand(opts *rootOptions) *cobra.Command {
	var join bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room, print its code, and optionally host it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			token, err := opts.resolveToken(ctx)
			if err != nil {
				return err
			}
			opts.token = token

			code, err := opts.createRoom(ctx, token)
			if err != nil {
				return err
			}
			cmd.Println(code)

			if !join {
				return nil
			}
			return runSession(ctx, opts, code)
		},
	}

	cmd.Flags().BoolVar(&join, "join", true, "join the room after creating it")

	return cmd
}
