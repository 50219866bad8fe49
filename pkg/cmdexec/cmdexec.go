// Package cmdexec 用显式的参数列表和环境映射描述外部命令,
// 替代拼接 shell 字符串再 eval 的做法。
package cmdexec

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Command 是一次外部命令调用的完整描述
type Command struct {
	Path string
	Args []string
	// Env 在继承进程环境的基础上追加/覆盖
	Env map[string]string
	Dir string
}

// String 仅用于日志展示, 不用于执行
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+len(c.Env)+1)
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+c.Env[k])
	}
	parts = append(parts, c.Path)
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

// Runner 执行命令并返回合并输出 (Stdout + Stderr)
type Runner interface {
	Run(ctx context.Context, cmd Command) (string, error)
}

// ExitError 保留底层工具的退出码, 便于诊断
type ExitError struct {
	Cmd    string
	Code   int
	Output string
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command '%s' failed with exit code %d: %s", e.Cmd, e.Code, strings.TrimSpace(e.Output))
}

func (e *ExitError) Unwrap() error { return e.Err }

type execRunner struct{}

// NewRunner 返回基于 os/exec 的默认 Runner
func NewRunner() Runner { return execRunner{} }

func (execRunner) Run(ctx context.Context, cmd Command) (string, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	if cmd.Dir != "" {
		c.Dir = cmd.Dir
	}
	if len(cmd.Env) > 0 {
		env := os.Environ()
		keys := make([]string, 0, len(cmd.Env))
		for k := range cmd.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env = append(env, k+"="+cmd.Env[k])
		}
		c.Env = env
	}

	out, err := c.CombinedOutput()
	outStr := string(out)
	if err != nil {
		if ctx.Err() != nil {
			return outStr, fmt.Errorf("command '%s' aborted: %w", cmd.String(), ctx.Err())
		}
		code := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		return outStr, &ExitError{Cmd: cmd.String(), Code: code, Output: outStr, Err: err}
	}
	return strings.TrimSpace(outStr), nil
}

// LookPath 报告可执行文件是否在 PATH 中
func LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
