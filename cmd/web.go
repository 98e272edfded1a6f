package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/huddle/client"
	"github.com/luma/huddle/presenter/web"
)

var (
	// The host to listen on
	webHost string

	// The port to listen for http requests on
	webPort int

	// Server to connect to on start up
	webAddr string
)

func init() {
	flags := WebCmd.PersistentFlags()

	flags.IntVar(&webPort, "http-port", web.DefaultPort, "The port to listen to HTTP requests on")
	flags.StringVarP(&webHost, "host", "a", "127.0.0.1", "The host to listen on")
	flags.StringVarP(&webAddr, "addr", "s", "", "Server to connect to on start up, overrides HUDDLE_SERVER_ADDR")
}

var WebCmd = &cobra.Command{
	Use:   "web",
	Short: "Chat from a browser",
	Long: `Serve a JSON API and a long poll event feed for a browser front end

Usage
	huddle web --http-port 7362

`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, log, err := setup(ctx)
		if err != nil {
			return err
		}

		if webAddr == "" {
			webAddr = conf.ServerAddr
		}

		c := client.New(clientOptions(conf, log))

		if webAddr != "" {
			if err := c.Connect(ctx, webAddr); err != nil {
				return err
			}
		}

		w := web.New(c, web.Options{
			Host:  webHost,
			Port:  webPort,
			Debug: conf.DebugHTTP,
			Log:   log.Named("web"),
		})

		log.Info("Starting web front end",
			zap.Any("config", conf),
			zap.String("host", webHost),
			zap.Int("httpPort", webPort))

		if err := w.Run(ctx); err != nil {
			return err
		}

		log.Info("Exiting")
		return nil
	},
}
