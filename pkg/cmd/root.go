// Package cmd 定义命令行入口。
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pve-k3s-tool/pkg/config"
)

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "pve-k3s-tool",
	Short:         "PVE 虚拟机上的 k3s 集群引导工具",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "example/config.yaml", "配置文件路径。e.g. config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")

	rootCmd.AddCommand(newNodeCmd())
	rootCmd.AddCommand(newProvisionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newPusherCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// newLogger 构造全局 logger, verbose 时打开 debug 级别
func newLogger() *logrus.Entry {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return logrus.NewEntry(l)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "打印版本号",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.ToolVersion)
		},
	}
}
