package bootstrap

import (
	"errors"

	"pve-k3s-tool/pkg/install"
	"pve-k3s-tool/pkg/mount"
	"pve-k3s-tool/pkg/store"
)

// 进程退出码, 与既有运维脚本约定保持一致
const (
	ExitOK = 0
	// 通用失败: 入参/环境/安装执行
	ExitGeneric = 1
	// 挂载失败及资源不可用 (含 join record 缺失)
	ExitMount = 2
	// 缺少执行脚本/工件
	ExitMissingArtifact = 3
	// 工作区切换失败
	ExitWorkspace = 4
)

// ExitCode 把阶段错误映射到进程退出码。
// 非零码之间不再向调用方细分语义, 详情以日志为准。
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		mountErr        *mount.MountError
		mountTimeout    *mount.MountTimeoutError
		missingRecord   *store.MissingJoinRecordError
		missingArtifact *install.MissingArtifactError
		workspaceErr    *mount.WorkspaceError
	)
	switch {
	case errors.As(err, &mountErr), errors.As(err, &mountTimeout), errors.As(err, &missingRecord):
		return ExitMount
	case errors.As(err, &missingArtifact):
		return ExitMissingArtifact
	case errors.As(err, &workspaceErr):
		return ExitWorkspace
	}
	return ExitGeneric
}
