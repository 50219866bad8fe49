package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"pve-k3s-tool/pkg/bootstrap"
	"pve-k3s-tool/pkg/config"
)

func newNodeCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "node <" + config.RoleArgControl + "|" + config.RoleArgWorker + ">",
		Short: "在当前机器上执行节点引导",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			log := newLogger()

			cfg, err := loadConfig()
			if err != nil {
				log.Error(err)
				os.Exit(bootstrap.ExitGeneric)
			}

			b := bootstrap.New(cfg, log)
			b.DryRun = dryRun
			if err := b.Run(cmd.Context(), args[0]); err != nil {
				log.Error(err)
				os.Exit(bootstrap.ExitCode(err))
			}
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "只做检查不执行动作")
	return cmd
}
