// Package role 解析节点角色并派生唯一主机名。
package role

import (
	"context"
	"fmt"
	"os"
	"strings"

	"pve-k3s-tool/pkg/cmdexec"
	"pve-k3s-tool/pkg/config"
)

type Role string

const (
	Control Role = "control"
	Worker  Role = "worker"
)

// InvalidRoleError 表示外部角色入参不在允许范围内
type InvalidRoleError struct {
	Input string
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("invalid role %q, expected one of %s", e.Input, strings.Join(config.SupportedRoles, " | "))
}

// MissingMachineIDError 表示机器唯一标识不可用
type MissingMachineIDError struct {
	Path string
	Err  error
}

func (e *MissingMachineIDError) Error() string {
	return fmt.Sprintf("machine id unavailable at %s: %v", e.Path, e.Err)
}

func (e *MissingMachineIDError) Unwrap() error { return e.Err }

// HostnameApplyError 表示操作系统拒绝了主机名设置
type HostnameApplyError struct {
	Hostname string
	Err      error
}

func (e *HostnameApplyError) Error() string {
	return fmt.Sprintf("failed to apply hostname %q: %v", e.Hostname, e.Err)
}

func (e *HostnameApplyError) Unwrap() error { return e.Err }

// Parse 校验角色入参, 非法值不产生任何副作用
func Parse(arg string) (Role, error) {
	switch arg {
	case config.RoleArgControl:
		return Control, nil
	case config.RoleArgWorker:
		return Worker, nil
	}
	return "", &InvalidRoleError{Input: arg}
}

func (r Role) HostnamePrefix() string { return string(r) }

// Arg 返回角色对应的外部参数形式
func (r Role) Arg() string {
	if r == Control {
		return config.RoleArgControl
	}
	return config.RoleArgWorker
}

// Identity 是一次引导运行内不可变的节点身份
type Identity struct {
	Role     Role
	Suffix   string
	Hostname string
}

// Resolver 从机器标识派生身份并应用主机名
type Resolver struct {
	MachineIDPath string
	Runner        cmdexec.Runner
}

func NewResolver(runner cmdexec.Runner) *Resolver {
	return &Resolver{MachineIDPath: config.MachineIDPath, Runner: runner}
}

// Resolve 派生节点身份: 主机名 = 角色前缀 + "-" + machine-id 末 4 位。
// 相同机器标识和角色总是得到相同主机名。
func (rs *Resolver) Resolve(r Role) (*Identity, error) {
	raw, err := os.ReadFile(rs.MachineIDPath)
	if err != nil {
		return nil, &MissingMachineIDError{Path: rs.MachineIDPath, Err: err}
	}
	id := strings.TrimSpace(string(raw))
	if len(id) < 4 {
		return nil, &MissingMachineIDError{Path: rs.MachineIDPath, Err: fmt.Errorf("identifier too short: %q", id)}
	}
	suffix := strings.ToLower(id[len(id)-4:])
	return &Identity{
		Role:     r,
		Suffix:   suffix,
		Hostname: r.HostnamePrefix() + "-" + suffix,
	}, nil
}

// Apply 将派生主机名写入操作系统 (对主机是永久性变更)。
// 优先 hostnamectl, 不可用时退回 hostname。
func (rs *Resolver) Apply(ctx context.Context, id *Identity) error {
	cmd := cmdexec.Command{Path: "hostnamectl", Args: []string{"set-hostname", id.Hostname}}
	if !cmdexec.LookPath("hostnamectl") {
		cmd = cmdexec.Command{Path: "hostname", Args: []string{id.Hostname}}
	}
	if _, err := rs.Runner.Run(ctx, cmd); err != nil {
		return &HostnameApplyError{Hostname: id.Hostname, Err: err}
	}
	return nil
}
