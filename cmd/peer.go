package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/huddle/internal/peer"
)

var (
	// The host to listen on
	peerHost string

	// The port to listen for clients on
	peerPort int

	// Groups the room starts with, after the global group
	peerGroups []string
)

func init() {
	flags := PeerCmd.PersistentFlags()

	flags.IntVarP(&peerPort, "port", "p", 7363, "The port to listen for client connections on")
	flags.StringVarP(&peerHost, "host", "a", "0.0.0.0", "The host to listen on")
	flags.StringSliceVarP(&peerGroups, "group", "g", []string{"Group 1", "Group 2", "Group 3", "Group 4", "Group 5"},
		"Groups to create besides the global group")
}

var PeerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Start a local chat server to try the client against",
	Long: `Start a local chat server to try the client against

It keeps everything in memory and forgets it all on exit.

Usage
	huddle peer --port 7363 --group Cats --group Dogs

`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, log, err := setup(ctx)
		if err != nil {
			return err
		}

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		room := peer.NewRoom(log.Named("room"), append([]string{"Global"}, peerGroups...)...)

		server := peer.NewServer(peer.Options{
			Host:         peerHost,
			Port:         peerPort,
			Reuseport:    true,
			MaxFrameSize: conf.MaxFrameSize,
			Handler:      room,
			Log:          log.Named("peer"),
		})

		if err := server.Start(ctx); err != nil {
			return err
		}

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down, press Ctrl+C again to force")

		if err := server.Close(); err != nil {
			log.Error("Server forced to shutdown", zap.Error(err))
		}

		log.Info("Exiting")
		return nil
	},
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
