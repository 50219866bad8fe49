// Package mount 负责把共享配置存储挂到本地并把引导工件拷入执行工作区。
package mount

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pve-k3s-tool/pkg/cmdexec"
	"pve-k3s-tool/pkg/config"
)

// MountError 表示挂载失败, 属于环境配置问题, 不应自动重试
type MountError struct {
	Source     string
	MountPoint string
	Err        error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("mount %s on %s failed: %v", e.Source, e.MountPoint, e.Err)
}

func (e *MountError) Unwrap() error { return e.Err }

// MountTimeoutError 表示挂载在限定时间内没有完成 (远端存储不可达)
type MountTimeoutError struct {
	Source  string
	Timeout time.Duration
}

func (e *MountTimeoutError) Error() string {
	return fmt.Sprintf("mount of %s did not complete within %s", e.Source, e.Timeout)
}

// ClientInstallError 表示 NFS 客户端安装失败
type ClientInstallError struct {
	Err error
}

func (e *ClientInstallError) Error() string {
	return fmt.Sprintf("nfs client install failed: %v", e.Err)
}

func (e *ClientInstallError) Unwrap() error { return e.Err }

// Manager 幂等地保证共享存储处于挂载状态
type Manager struct {
	Share  config.ShareConfig
	Runner cmdexec.Runner
	Log    *logrus.Entry

	// 测试注入点
	MountsFile string
}

func NewManager(share config.ShareConfig, runner cmdexec.Runner, log *logrus.Entry) *Manager {
	return &Manager{Share: share, Runner: runner, Log: log, MountsFile: "/proc/self/mounts"}
}

func (m *Manager) source() string {
	return m.Share.Server + ":" + m.Share.Export
}

// Mounted 报告挂载点当前是否已有挂载
func (m *Manager) Mounted() (bool, error) {
	f, err := os.Open(m.MountsFile)
	if err != nil {
		return false, err
	}
	defer f.Close()

	target := strings.TrimRight(m.Share.MountPoint, "/")
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == target {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// EnsureClient 在缺少 mount.nfs 时安装 NFS 客户端包
func (m *Manager) EnsureClient(ctx context.Context) error {
	if cmdexec.LookPath("mount.nfs") {
		return nil
	}
	m.Log.Info("installing nfs client package")
	cmd := cmdexec.Command{
		Path: "apt-get",
		Args: []string{"install", "-y", "nfs-common"},
		Env:  map[string]string{"DEBIAN_FRONTEND": "noninteractive"},
	}
	if _, err := m.Runner.Run(ctx, cmd); err != nil {
		return &ClientInstallError{Err: err}
	}
	return nil
}

// EnsureMounted 幂等挂载: 已挂载时是 no-op 而不是错误。
// 挂载命令在显式超时内执行, 远端不可达不会无限阻塞。
func (m *Manager) EnsureMounted(ctx context.Context) error {
	mounted, err := m.Mounted()
	if err != nil {
		return &MountError{Source: m.source(), MountPoint: m.Share.MountPoint, Err: err}
	}
	if mounted {
		m.Log.WithField("mount_point", m.Share.MountPoint).Info("share already mounted")
		return nil
	}

	if err := os.MkdirAll(m.Share.MountPoint, 0o755); err != nil {
		return &MountError{Source: m.source(), MountPoint: m.Share.MountPoint, Err: err}
	}

	timeout := time.Duration(m.Share.MountTimeoutSeconds) * time.Second
	mctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := cmdexec.Command{
		Path: "mount",
		Args: []string{"-t", "nfs", m.source(), m.Share.MountPoint},
	}
	if _, err := m.Runner.Run(mctx, cmd); err != nil {
		if errors.Is(mctx.Err(), context.DeadlineExceeded) {
			return &MountTimeoutError{Source: m.source(), Timeout: timeout}
		}
		return &MountError{Source: m.source(), MountPoint: m.Share.MountPoint, Err: err}
	}
	m.Log.WithFields(logrus.Fields{"source": m.source(), "mount_point": m.Share.MountPoint}).Info("share mounted")
	return nil
}
