package main

import (
	"github.com/spf13/cobra"

	"github.com/spachava753/smsbridge/channel"
	"github.com/spachava753/smsbridge/logger"
	"github.com/spachava753/smsbridge/server"
	"github.com/spachava753/smsbridge/smschannel"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the SMS channel over HTTP and WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			messenger := channel.NewMessenger(logger.L)
			smschannel.Register(messenger, a.cfg.Channel.Name, a.adapter())
			logger.L.Info("channel registered", "channel", a.cfg.Channel.Name, "store", a.cfg.Store.Path, "demo", a.demo)

			return server.Run(cmd.Context(), addr, server.NewRouter(messenger, logger.L), logger.L)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
