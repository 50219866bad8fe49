package pve

import (
	"context"
	"fmt"
	"net/url"
)

// NodeInfo 是集群节点的概要状态
type NodeInfo struct {
	Node   string `json:"node"`
	Status string `json:"status"`
}

// VMSummary 是节点上虚拟机列表的一项
type VMSummary struct {
	VMID   int    `json:"vmid"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// VMStatus 是单个 QEMU 虚拟机的状态详情
type VMStatus struct {
	VMID      int     `json:"vmid"`
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	QMPStatus string  `json:"qmpstatus"`
	CPU       float64 `json:"cpu"`
	CPUs      int     `json:"cpus"`
	MaxMem    int64   `json:"maxmem"`
	Mem       int64   `json:"mem"`
	MaxDisk   int64   `json:"maxdisk"`
	Uptime    int64   `json:"uptime"`
	Template  int     `json:"template"`
}

// ListNodes 获取集群中的所有节点
func (c *Client) ListNodes(ctx context.Context) ([]NodeInfo, error) {
	var nodes []NodeInfo
	if err := c.do(ctx, "GET", "/nodes", nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// ListVMs 获取特定节点上的所有虚拟机
func (c *Client) ListVMs(ctx context.Context, node string) ([]VMSummary, error) {
	var vms []VMSummary
	if err := c.do(ctx, "GET", fmt.Sprintf("/nodes/%s/qemu", node), nil, &vms); err != nil {
		return nil, err
	}
	return vms, nil
}

// GetVMStatus 获取特定虚拟机的状态详情
func (c *Client) GetVMStatus(ctx context.Context, node string, vmid int) (*VMStatus, error) {
	var st VMStatus
	path := fmt.Sprintf("/nodes/%s/qemu/%d/status/current", node, vmid)
	if err := c.do(ctx, "GET", path, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// CreateVM 创建新虚拟机, 返回异步任务 UPID
func (c *Client) CreateVM(ctx context.Context, node string, vmid int, params url.Values) (string, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("vmid", fmt.Sprint(vmid))
	return c.upidCall(ctx, "POST", fmt.Sprintf("/nodes/%s/qemu", node), params)
}

// DeleteVM 删除虚拟机, 返回异步任务 UPID
func (c *Client) DeleteVM(ctx context.Context, node string, vmid int) (string, error) {
	return c.upidCall(ctx, "DELETE", fmt.Sprintf("/nodes/%s/qemu/%d", node, vmid), nil)
}

// CloneVM 从模板克隆虚拟机, 返回异步任务 UPID
func (c *Client) CloneVM(ctx context.Context, node string, sourceVMID int, params url.Values) (string, error) {
	return c.upidCall(ctx, "POST", fmt.Sprintf("/nodes/%s/qemu/%d/clone", node, sourceVMID), params)
}

// UpdateVMConfig 更新虚拟机配置
func (c *Client) UpdateVMConfig(ctx context.Context, node string, vmid int, updates url.Values) error {
	return c.do(ctx, "PUT", fmt.Sprintf("/nodes/%s/qemu/%d/config", node, vmid), updates, nil)
}

// StartVM 启动虚拟机
func (c *Client) StartVM(ctx context.Context, node string, vmid int) (string, error) {
	return c.upidCall(ctx, "POST", fmt.Sprintf("/nodes/%s/qemu/%d/status/start", node, vmid), nil)
}

// ShutdownVM 软关机虚拟机
func (c *Client) ShutdownVM(ctx context.Context, node string, vmid int) (string, error) {
	return c.upidCall(ctx, "POST", fmt.Sprintf("/nodes/%s/qemu/%d/status/shutdown", node, vmid), nil)
}

// RebootVM 重启虚拟机
func (c *Client) RebootVM(ctx context.Context, node string, vmid int) (string, error) {
	return c.upidCall(ctx, "POST", fmt.Sprintf("/nodes/%s/qemu/%d/status/reboot", node, vmid), nil)
}
