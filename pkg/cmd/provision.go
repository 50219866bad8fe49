package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"pve-k3s-tool/pkg/provision"
)

func newProvisionCmd() *cobra.Command {
	var (
		dryRun     bool
		reportPath string
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "通过 SSH 批量引导配置文件中的所有节点",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return provision.Run(cmd.Context(), cfg, dryRun, reportPath, os.Stdout)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "只做检查不执行动作")
	cmd.Flags().StringVar(&reportPath, "report", "provision-report.log", "节点日志汇总文件路径")
	return cmd
}
