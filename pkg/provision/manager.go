// Package provision 是运维端的批量引导: 依次 SSH 到每个节点,
// 推送工具与配置, 远程执行节点引导 (control 节点先行)。
package provision

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pve-k3s-tool/pkg/config"
	"pve-k3s-tool/pkg/ssh"
	"pve-k3s-tool/pkg/ui"
)

const (
	remoteToolPath   = "/usr/local/bin/pve-k3s-tool"
	remoteConfigDir  = "/etc/pve-k3s-tool"
	remoteConfigPath = remoteConfigDir + "/config.yaml"
)

// Manager 对应一个节点的远程引导任务
type Manager struct {
	globalCfg *config.Config
	nodeCfg   *config.NodeConfig
	client    *ssh.Client
	nodeCtx   *ui.NodeContext
}

// NewManager 创建针对特定节点的管理器
func NewManager(globalCfg *config.Config, nodeCfg *config.NodeConfig, nodeCtx *ui.NodeContext) (*Manager, error) {
	port := nodeCfg.SSHPort
	if port == 0 {
		port = globalCfg.SSHPort
	}

	commandTimeout := time.Duration(globalCfg.CommandTimeoutSeconds) * time.Second
	client, err := ssh.NewClient(nodeCfg.IP, port, globalCfg.User, nodeCfg.Password, nodeCfg.KeyFile, commandTimeout)
	if err != nil {
		return nil, fmt.Errorf("ssh connection to %s failed: %v", nodeCfg.IP, err)
	}

	return &Manager{
		globalCfg: globalCfg,
		nodeCfg:   nodeCfg,
		client:    client,
		nodeCtx:   nodeCtx,
	}, nil
}

func (m *Manager) Close() {
	if m.client != nil {
		m.client.Close()
	}
}

func (m *Manager) roleArg() string {
	if m.nodeCfg.IsMaster {
		return config.RoleArgControl
	}
	return config.RoleArgWorker
}

func (m *Manager) serviceUnit() string {
	if m.nodeCfg.IsMaster {
		return "k3s"
	}
	return "k3s-agent"
}

type step struct {
	Name   string
	Check  func() (bool, error)
	Action func() error
}

// TotalSteps 是每个节点的远程步骤数, 供进度条初始化
const TotalSteps = 3

// Run 执行该节点的远程引导步骤
func (m *Manager) Run(ctx context.Context, dryRun bool) error {
	start := time.Now()
	steps := []step{
		{
			Name:   "上传引导工具",
			Check:  m.checkTool,
			Action: m.uploadTool,
		},
		{
			Name:   "下发节点配置",
			Check:  func() (bool, error) { return false, nil }, // 配置每次覆盖
			Action: m.uploadConfig,
		},
		{
			Name:   "执行节点引导",
			Check:  m.checkInstalled,
			Action: m.runBootstrap,
		},
	}

	var err error
	for _, s := range steps {
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
		stepStart := time.Now()
		m.nodeCtx.StartStep(s.Name)

		var ok bool
		ok, err = s.Check()
		if err != nil {
			m.nodeCtx.EndStep(err, time.Since(stepStart))
			break
		}
		if ok {
			m.nodeCtx.EndStep(nil, time.Since(stepStart))
			continue
		}
		if dryRun {
			m.nodeCtx.EndStep(nil, time.Since(stepStart))
			continue
		}

		err = s.Action()
		m.nodeCtx.EndStep(err, time.Since(stepStart))
		if err != nil {
			break
		}
	}

	m.nodeCtx.Finish(err == nil, time.Since(start))
	return err
}

// checkTool 比对远端工具版本, 一致则跳过上传
func (m *Manager) checkTool() (bool, error) {
	out, err := m.client.RunCommand(fmt.Sprintf("%s version 2>/dev/null", remoteToolPath))
	if err != nil {
		return false, nil
	}
	return strings.Contains(out, config.ToolVersion), nil
}

func (m *Manager) uploadTool() error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %v", err)
	}
	f, err := os.Open(self)
	if err != nil {
		return fmt.Errorf("open executable: %v", err)
	}
	defer f.Close()
	return m.client.WriteFile(remoteToolPath, f)
}

func (m *Manager) uploadConfig() error {
	// 节点端引导不需要运维侧的节点清单与凭据
	remote := *m.globalCfg
	remote.Nodes = nil
	data, err := yaml.Marshal(&remote)
	if err != nil {
		return fmt.Errorf("render node config: %v", err)
	}
	return m.client.WriteFile(remoteConfigPath, strings.NewReader(string(data)))
}

// checkInstalled 已有活跃的 k3s 服务则跳过引导
func (m *Manager) checkInstalled() (bool, error) {
	out, err := m.client.RunCommand(fmt.Sprintf("systemctl is-active %s 2>/dev/null", m.serviceUnit()))
	return err == nil && strings.TrimSpace(out) == "active", nil
}

func (m *Manager) runBootstrap() error {
	cmd := fmt.Sprintf("%s node %s --config %s", remoteToolPath, m.roleArg(), remoteConfigPath)
	out, err := m.client.RunCommand(cmd)
	if out != "" {
		fmt.Fprintln(m.nodeCtx, out)
	}
	return err
}
