package install

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pve-k3s-tool/pkg/config"
	"pve-k3s-tool/pkg/role"
	"pve-k3s-tool/pkg/store"
)

// TokenReadError 表示安装成功后始终读不到集群 token。
// 这里是硬失败: 没有 token 就没有 join record, 所有 worker 都会被永久阻塞。
type TokenReadError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *TokenReadError) Error() string {
	return fmt.Sprintf("cluster token unreadable at %s after %d attempts: %v", e.Path, e.Attempts, e.Err)
}

func (e *TokenReadError) Unwrap() error { return e.Err }

// Finalizer 在安装成功后收尾: control 节点把 {masterIP, token}
// 发布到共享存储, worker 节点只记录完成。
type Finalizer struct {
	Store store.Store
	Log   *logrus.Entry

	// 测试注入点
	NodeTokenPath string
	TokenAttempts int
	TokenDelay    time.Duration
	AddrFunc      func() (string, error)
}

func NewFinalizer(st store.Store, log *logrus.Entry) *Finalizer {
	return &Finalizer{
		Store:         st,
		Log:           log,
		NodeTokenPath: config.NodeTokenPath,
		TokenAttempts: 10,
		TokenDelay:    2 * time.Second,
		AddrFunc:      primaryIP,
	}
}

// Finalize 必须在安装器到达 Installed 之后调用
func (f *Finalizer) Finalize(ctx context.Context, r role.Role) error {
	if r == role.Worker {
		f.Log.Info("worker bootstrap complete")
		return nil
	}

	ip, err := f.AddrFunc()
	if err != nil {
		return fmt.Errorf("determine primary address: %w", err)
	}

	token, err := f.readToken(ctx)
	if err != nil {
		return err
	}

	rec := &store.JoinRecord{MasterIP: ip, Token: token}
	if err := f.Store.WriteJoinRecord(ctx, rec); err != nil {
		return fmt.Errorf("publish join record: %w", err)
	}
	f.Log.WithField("master_ip", ip).Info("control bootstrap complete, join record published")
	return nil
}

// readToken 有界重试读取 node-token: k3s 写 token 可能滞后于安装脚本返回
func (f *Finalizer) readToken(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= f.TokenAttempts; attempt++ {
		data, err := os.ReadFile(f.NodeTokenPath)
		if err == nil {
			token := strings.TrimSpace(string(data))
			if token != "" {
				return token, nil
			}
			err = fmt.Errorf("token file is empty")
		}
		lastErr = err
		if attempt == f.TokenAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", &TokenReadError{Path: f.NodeTokenPath, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(f.TokenDelay):
		}
	}
	return "", &TokenReadError{Path: f.NodeTokenPath, Attempts: f.TokenAttempts, Err: lastErr}
}

// primaryIP 取本机对外通信使用的首选地址 (不真正发包)
func primaryIP() (string, error) {
	conn, err := net.Dial("udp", "10.255.255.255:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}
