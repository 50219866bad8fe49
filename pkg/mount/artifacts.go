package mount

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"

	"pve-k3s-tool/pkg/config"
)

// WorkspaceError 表示无法确定或进入执行工作区
type WorkspaceError struct {
	Path string
	Err  error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace %q unusable: %v", e.Path, e.Err)
}

func (e *WorkspaceError) Unwrap() error { return e.Err }

// ResolveWorkspace 返回工件落地的工作区目录。
// 提权执行 (sudo) 时优先指定的非 root 用户家目录, 否则用调用用户的家目录。
func ResolveWorkspace(serviceUser string) (string, error) {
	if os.Geteuid() == 0 {
		name := os.Getenv("SUDO_USER")
		if name == "" || name == "root" {
			name = serviceUser
		}
		if name != "" && name != "root" {
			if u, err := user.Lookup(name); err == nil && u.HomeDir != "" {
				return u.HomeDir, nil
			}
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", &WorkspaceError{Err: err}
	}
	return home, nil
}

// StageArtifacts 把工件清单从挂载点拷到工作区。
// 单个工件缺失只告警并跳过, 由后续阶段决定是否致命; 脚本置可执行位。
func (m *Manager) StageArtifacts(workspace string, set []config.Artifact) error {
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return &WorkspaceError{Path: workspace, Err: err}
	}
	for _, art := range set {
		src := filepath.Join(m.Share.MountPoint, art.Name)
		dst := filepath.Join(workspace, art.Name)

		if _, err := os.Stat(src); err != nil {
			m.Log.WithField("artifact", art.Name).Warn("artifact missing in shared store, skipped")
			continue
		}
		if err := copyFile(src, dst); err != nil {
			return &WorkspaceError{Path: dst, Err: err}
		}
		if art.Executable {
			if err := os.Chmod(dst, 0o755); err != nil {
				return &WorkspaceError{Path: dst, Err: err}
			}
		}
		m.Log.WithField("artifact", art.Name).Debug("artifact staged")
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
