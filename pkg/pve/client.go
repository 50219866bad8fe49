// Package pve 是 Proxmox VE API 的精简客户端: API Token 认证,
// 封装 VM 生命周期操作和异步任务 (UPID) 轮询。
package pve

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pve-k3s-tool/pkg/config"
)

// ErrMissingCredentials 表示 API Token 配置不完整
var ErrMissingCredentials = errors.New("pve api token credentials missing")

// APIError 保留 PVE 返回的状态码与错误详情
type APIError struct {
	Status int
	Path   string
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pve api %s returned %d: %s (check token permissions)", e.Path, e.Status, e.Detail)
}

type Client struct {
	baseURL      string
	authHeader   string
	httpc        *http.Client
	log          *logrus.Entry
	pollInterval time.Duration
}

// NewClient 创建客户端。Token 认证是无状态的, 这里只校验配置完整性。
func NewClient(cfg config.PVEConfig, log *logrus.Entry) (*Client, error) {
	if cfg.Host == "" || cfg.TokenID == "" || cfg.TokenSecret == "" {
		return nil, ErrMissingCredentials
	}

	transport := &http.Transport{}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		baseURL:    fmt.Sprintf("https://%s:%d/api2/json", cfg.Host, cfg.Port),
		authHeader: fmt.Sprintf("PVEAPIToken %s=%s", cfg.TokenID, cfg.TokenSecret),
		httpc: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		log:          log,
		pollInterval: 2 * time.Second,
	}, nil
}

// WithBaseURL 仅测试用: 指向 httptest 服务
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// WithPollInterval 仅测试用: 缩短任务轮询间隔
func (c *Client) WithPollInterval(d time.Duration) *Client {
	c.pollInterval = d
	return c
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// do 发送请求并把响应 data 字段解码到 out (out 可为 nil)
func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.authHeader)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("pve request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("pve read response %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(raw))
		var env envelope
		if json.Unmarshal(raw, &env) == nil && len(env.Data) > 0 {
			detail = string(env.Data)
		}
		return &APIError{Status: resp.StatusCode, Path: path, Detail: detail}
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("pve decode response %s: %w", path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("pve decode data %s: %w", path, err)
	}
	return nil
}

// upidCall 执行返回 UPID 的异步操作
func (c *Client) upidCall(ctx context.Context, method, path string, form url.Values) (string, error) {
	var upid string
	if err := c.do(ctx, method, path, form, &upid); err != nil {
		return "", err
	}
	if upid != "" && !strings.HasPrefix(upid, "UPID") {
		return "", fmt.Errorf("pve %s returned unexpected task id %q", path, upid)
	}
	return upid, nil
}
