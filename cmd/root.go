package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/huddle/client"
	"github.com/luma/huddle/cmd/gen"
	"github.com/luma/huddle/internal/env"
)

var (
	// Overrides HUDDLE_LOG_LEVEL when set
	logLevel string
)

var RootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "A client for the huddle group chat protocol",
	Long: `A client for the huddle group chat protocol.

Chat from the terminal with "huddle chat", from a browser with "huddle web",
or start a small local server to try them against with "huddle peer".`,
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level, overrides HUDDLE_LOG_LEVEL")

	RootCmd.AddCommand(ChatCmd)
	RootCmd.AddCommand(WebCmd)
	RootCmd.AddCommand(PeerCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

// Execute runs the root command and exits non zero when it fails.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger every command uses.
func setup(ctx context.Context) (*env.Config, *zap.Logger, error) {
	conf, err := env.LoadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	if logLevel != "" {
		conf.LogLevel = logLevel
	}

	log, err := env.MakeLogger(conf.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	return conf, log, nil
}

func clientOptions(conf *env.Config, log *zap.Logger) client.Options {
	return client.Options{
		RequestTimeout:    conf.RequestTimeout,
		DisconnectTimeout: conf.DisconnectTimeout,
		DisconnectPoll:    conf.DisconnectPoll,
		Workers:           conf.DispatchWorkers,
		MaxFrameSize:      conf.MaxFrameSize,
		Log:               log.Named("client"),
	}
}
