// Package bootstrap 把节点引导编排为一条短路的步骤流水线:
// 角色解析 → 共享存储挂载 → 工件暂存 → k3s 安装 → join record 收尾。
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"pve-k3s-tool/pkg/cmdexec"
	"pve-k3s-tool/pkg/config"
	"pve-k3s-tool/pkg/install"
	"pve-k3s-tool/pkg/mount"
	"pve-k3s-tool/pkg/role"
	"pve-k3s-tool/pkg/runner"
	"pve-k3s-tool/pkg/store"
)

// Bootstrapper 在当前机器上执行一次完整的节点引导
type Bootstrapper struct {
	Cfg    *config.Config
	Runner cmdexec.Runner
	Log    *logrus.Entry
	Output io.Writer
	DryRun bool

	// 测试注入点
	Resolver  *role.Resolver
	Mounter   *mount.Manager
	NewStore  func(root string) store.Store
	Chdir     func(dir string) error
	Finalizer *install.Finalizer
}

func New(cfg *config.Config, log *logrus.Entry) *Bootstrapper {
	r := cmdexec.NewRunner()
	b := &Bootstrapper{
		Cfg:    cfg,
		Runner: r,
		Log:    log,
		Output: os.Stdout,
		Chdir:  os.Chdir,
	}
	b.Resolver = role.NewResolver(r)
	b.Mounter = mount.NewManager(cfg.Share, r, log)
	b.NewStore = func(root string) store.Store {
		return store.NewFileStore(root, store.RetryPolicy{
			Attempts:     cfg.Join.Attempts,
			InitialDelay: time.Duration(cfg.Join.InitialDelaySeconds) * time.Second,
			MaxDelay:     time.Duration(cfg.Join.MaxDelaySeconds) * time.Second,
		}, log)
	}
	return b
}

// Run 执行引导序列。roleArg 非法时在任何副作用 (包括挂载) 之前失败。
func (b *Bootstrapper) Run(ctx context.Context, roleArg string) error {
	r, err := role.Parse(roleArg)
	if err != nil {
		return err
	}
	if err := config.ValidateBootstrap(b.Cfg); err != nil {
		return err
	}

	var (
		identity  *role.Identity
		workspace string
		inst      *install.Installer
		st        store.Store
	)

	prefix := fmt.Sprintf("[%s] ", roleArg)
	steps := []runner.Step{
		{
			Name: "解析节点身份并设置主机名",
			Action: func(ctx context.Context) error {
				id, err := b.Resolver.Resolve(r)
				if err != nil {
					return err
				}
				if err := b.Resolver.Apply(ctx, id); err != nil {
					return err
				}
				identity = id
				b.Log.WithField("hostname", id.Hostname).Info("node identity applied")
				return nil
			},
		},
		{
			Name: "安装 NFS 客户端",
			Check: func() (bool, error) {
				return cmdexec.LookPath("mount.nfs"), nil
			},
			Action: b.Mounter.EnsureClient,
		},
		{
			Name: "挂载共享配置存储",
			Check: func() (bool, error) {
				return b.Mounter.Mounted()
			},
			Action: b.Mounter.EnsureMounted,
		},
		{
			Name: "拷贝引导工件到工作区",
			Action: func(ctx context.Context) error {
				ws, err := mount.ResolveWorkspace(b.Cfg.ServiceUser)
				if err != nil {
					return err
				}
				set, err := config.ArtifactSet()
				if err != nil {
					return err
				}
				if err := b.Mounter.StageArtifacts(ws, set); err != nil {
					return err
				}
				if err := b.Chdir(ws); err != nil {
					return &mount.WorkspaceError{Path: ws, Err: err}
				}
				workspace = ws
				return nil
			},
		},
		{
			Name: fmt.Sprintf("安装 k3s (%s)", roleArg),
			Action: func(ctx context.Context) error {
				st = b.NewStore(b.Cfg.Share.MountPoint)
				inst = install.NewInstaller(b.Cfg, r, workspace, st, b.Runner, b.Log)
				return inst.Run(ctx)
			},
		},
		{
			Name: "发布 join record",
			Action: func(ctx context.Context) error {
				fin := b.Finalizer
				if fin == nil {
					fin = install.NewFinalizer(st, b.Log)
				}
				return fin.Finalize(ctx, r)
			},
		},
	}

	if err := runner.RunPipeline(ctx, steps, prefix, b.Output, b.DryRun); err != nil {
		return err
	}
	if identity != nil {
		b.Log.WithFields(logrus.Fields{"hostname": identity.Hostname, "role": string(r)}).Info("bootstrap finished")
	}
	return nil
}
