package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/huddle/client"
	"github.com/luma/huddle/presenter/cli"
)

var (
	// Server to connect to before reading commands
	chatAddr string

	// Username to join as once connected
	chatUsername string
)

func init() {
	flags := ChatCmd.PersistentFlags()

	flags.StringVarP(&chatAddr, "addr", "s", "", "Server to connect to, overrides HUDDLE_SERVER_ADDR")
	flags.StringVarP(&chatUsername, "username", "u", "", "Username to join as once connected")
}

var ChatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat from the terminal",
	Long: `Chat from the terminal

Usage
	huddle chat
	huddle chat --addr localhost:7363 --username alice

Type help once it is running for the list of commands.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer signalStop()

		conf, log, err := setup(ctx)
		if err != nil {
			return err
		}

		if chatAddr == "" {
			chatAddr = conf.ServerAddr
		}

		c := client.New(clientOptions(conf, log))
		shell := cli.New(c, os.Stdin, os.Stdout, log.Named("cli"))

		if chatAddr != "" {
			if err := shell.Exec(ctx, "connect "+chatAddr); err != nil {
				return err
			}
		}

		if chatAddr != "" && chatUsername != "" {
			if err := shell.Exec(ctx, "join "+chatUsername); err != nil {
				return err
			}
		}

		if err := shell.Run(ctx); err != nil {
			log.Error("Chat ended with an error", zap.Error(err))
			return err
		}

		return nil
	},
}
