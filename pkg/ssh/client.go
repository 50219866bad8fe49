package ssh

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type Client struct {
	client         *ssh.Client
	sftp           *sftp.Client
	commandTimeout time.Duration
}

// NewClient 建立到节点的 SSH + SFTP 连接。
// keyFile 非空时优先私钥认证, 否则用密码。
func NewClient(ip string, port int, user, password, keyFile string, commandTimeout time.Duration) (*Client, error) {
	var auth []ssh.AuthMethod
	if keyFile != "" {
		key, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read ssh key %s: %w", keyFile, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key %s: %w", keyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if password != "" {
		auth = append(auth, ssh.Password(password))
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", ip, port)
	conn, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %v", err)
	}

	sftpClient, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create sftp client: %v", err)
	}

	return &Client{
		client:         conn,
		sftp:           sftpClient,
		commandTimeout: commandTimeout,
	}, nil
}

func (c *Client) Close() {
	if c.sftp != nil {
		c.sftp.Close()
	}
	if c.client != nil {
		c.client.Close()
	}
}

// RunCommand 执行远程命令并返回输出 (Stdout + Stderr)
func (c *Client) RunCommand(cmd string) (string, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(cmd)
		done <- result{out, err}
	}()

	var res result
	if c.commandTimeout > 0 {
		select {
		case res = <-done:
		case <-time.After(c.commandTimeout):
			session.Close()
			return "", fmt.Errorf("command '%s' timed out after %v", cmd, c.commandTimeout)
		}
	} else {
		res = <-done
	}

	outStr := string(res.out)
	if res.err != nil {
		return outStr, fmt.Errorf("command '%s' failed: %v, output: %s", cmd, res.err, strings.TrimSpace(outStr))
	}
	return strings.TrimSpace(outStr), nil
}

// WriteFile 将流数据写入远程文件 (Stream Mode)
func (c *Client) WriteFile(remotePath string, src io.Reader) error {
	remotePath = filepath.ToSlash(remotePath)

	dir := path.Dir(remotePath)

	// 确保父目录存在
	_, err := c.RunCommand(fmt.Sprintf("mkdir -p %s", dir))
	if err != nil {
		return fmt.Errorf("mkdir -p %s failed: %v", dir, err)
	}

	f, err := c.sftp.Create(remotePath)
	if err != nil {
		return fmt.Errorf("sftp create file %s failed: %v", remotePath, err)
	}
	defer f.Close()

	// 流式拷贝, 大文件不整段读入内存
	if _, err := io.Copy(f, src); err != nil {
		return fmt.Errorf("sftp transfer failed: %v", err)
	}

	f.Chmod(0755)
	return nil
}
