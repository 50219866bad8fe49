// Package install 驱动 k3s 的安装: control 节点初始化集群,
// worker 节点用共享存储里的 join record 加入集群。
package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"pve-k3s-tool/pkg/cmdexec"
	"pve-k3s-tool/pkg/config"
	"pve-k3s-tool/pkg/role"
	"pve-k3s-tool/pkg/store"
)

// State 是安装状态机的显式状态
type State int

const (
	StateIdle State = iota
	StateInstallingControl
	StateJoiningWorker
	StateInstalled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateInstallingControl:
		return "InstallingControl"
	case StateJoiningWorker:
		return "JoiningWorker"
	case StateInstalled:
		return "Installed"
	case StateFailed:
		return "Failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MissingArtifactError 表示本地工作区缺少必备工件,
// 意味着共享存储没有被正确填充, 不可重试。
type MissingArtifactError struct {
	Name string
	Path string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("required artifact %q not found at %s (shared store not populated?)", e.Name, e.Path)
}

// RegistryConfigWriteError 表示镜像仓库配置写入失败
type RegistryConfigWriteError struct {
	Path string
	Err  error
}

func (e *RegistryConfigWriteError) Error() string {
	return fmt.Sprintf("write registry config %s failed: %v", e.Path, e.Err)
}

func (e *RegistryConfigWriteError) Unwrap() error { return e.Err }

// InstallError 表示安装脚本非零退出, 底层退出码保留在包装的 ExitError 里
type InstallError struct {
	Role role.Role
	Err  error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("k3s install (%s) failed: %v", e.Role, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// Installer 按角色执行一次安装, 状态单调推进到 Installed 或 Failed
type Installer struct {
	Cfg       *config.Config
	Role      role.Role
	Workspace string
	Store     store.Store
	Runner    cmdexec.Runner
	Log       *logrus.Entry

	// 测试注入点
	RegistriesPath string
	BinDir         string

	state State
}

func NewInstaller(cfg *config.Config, r role.Role, workspace string, st store.Store, runner cmdexec.Runner, log *logrus.Entry) *Installer {
	return &Installer{
		Cfg:            cfg,
		Role:           r,
		Workspace:      workspace,
		Store:          st,
		Runner:         runner,
		Log:            log,
		RegistriesPath: config.RegistriesConfigPath,
		BinDir:         "/usr/local/bin",
		state:          StateIdle,
	}
}

func (i *Installer) State() State { return i.state }

func (i *Installer) artifactPath(name string) string {
	return filepath.Join(i.Workspace, name)
}

// checkPreconditions 要求安装器二进制和安装脚本已就位
func (i *Installer) checkPreconditions() error {
	for _, name := range []string{config.ArtifactK3sBinary, config.ArtifactInstallScript} {
		p := i.artifactPath(name)
		if _, err := os.Stat(p); err != nil {
			return &MissingArtifactError{Name: name, Path: p}
		}
	}
	return nil
}

// Run 推进状态机: Idle → InstallingControl|JoiningWorker → Installed|Failed。
// worker 在执行任何安装动作之前必须拿到 join record。
func (i *Installer) Run(ctx context.Context) error {
	if err := i.checkPreconditions(); err != nil {
		i.state = StateFailed
		return err
	}

	var rec *store.JoinRecord
	if i.Role == role.Worker {
		r, err := i.Store.ReadJoinRecord(ctx)
		if err != nil {
			i.state = StateFailed
			return err
		}
		rec = r
	}

	// 每次引导都重写镜像仓库配置 (幂等覆盖, 原子发布)
	if err := i.writeRegistries(); err != nil {
		i.state = StateFailed
		return err
	}

	// skip-download 模式要求二进制先落在 BIN_DIR
	if err := i.stageBinary(); err != nil {
		i.state = StateFailed
		return err
	}

	cmd := i.buildInstallCommand(rec)
	if i.Role == role.Control {
		i.state = StateInstallingControl
	} else {
		i.state = StateJoiningWorker
	}
	i.Log.WithFields(logrus.Fields{"state": i.state.String(), "cmd": cmd.String()}).Info("running k3s installer")

	if _, err := i.Runner.Run(ctx, cmd); err != nil {
		i.state = StateFailed
		return &InstallError{Role: i.Role, Err: err}
	}
	i.state = StateInstalled
	return nil
}

func (i *Installer) stageBinary() error {
	src := i.artifactPath(config.ArtifactK3sBinary)
	dst := filepath.Join(i.BinDir, config.ArtifactK3sBinary)

	data, err := os.ReadFile(src)
	if err != nil {
		return &MissingArtifactError{Name: config.ArtifactK3sBinary, Path: src}
	}
	tmp := dst + ".staging"
	if err := os.WriteFile(tmp, data, 0o755); err != nil {
		return fmt.Errorf("stage k3s binary: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("stage k3s binary: %w", err)
	}
	return nil
}

// buildInstallCommand 组装安装脚本调用: 显式参数列表 + 环境映射,
// 二进制已经预置, 跳过下载。
func (i *Installer) buildInstallCommand(rec *store.JoinRecord) cmdexec.Command {
	env := map[string]string{
		"INSTALL_K3S_SKIP_DOWNLOAD": "true",
		"INSTALL_K3S_BIN_DIR":       i.BinDir,
	}
	if rec != nil {
		env["K3S_URL"] = fmt.Sprintf("https://%s:%d", rec.MasterIP, config.K3sAPIPort)
		env["K3S_TOKEN"] = rec.Token
	}
	return cmdexec.Command{
		Path: "sh",
		Args: []string{i.artifactPath(config.ArtifactInstallScript)},
		Env:  env,
		Dir:  i.Workspace,
	}
}
