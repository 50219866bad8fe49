package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pve-k3s-tool/pkg/config"
	"pve-k3s-tool/pkg/pusher"
	"pve-k3s-tool/pkg/pve"
	"pve-k3s-tool/pkg/serve"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 PVE 管理面 HTTP 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := config.ValidatePVE(cfg); err != nil {
				return err
			}

			client, err := pve.NewClient(cfg.PVE, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve.NewServer(cfg.Serve, client, log).ListenAndServe(ctx)
		},
	}
}

func newPusherCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pusher",
		Short: "启动 Alertmanager 告警转发服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := config.ValidatePusher(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return pusher.New(cfg.Pusher, log).ListenAndServe(ctx)
		},
	}
}
