package pve

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// TaskStatus 是异步任务的当前状态
type TaskStatus struct {
	Status     string `json:"status"`
	ExitStatus string `json:"exitstatus"`
}

// TaskFailedError 表示任务结束但退出状态不是 OK
type TaskFailedError struct {
	UPID       string
	ExitStatus string
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s finished with exit status %q (check pve task log)", e.UPID, e.ExitStatus)
}

// TaskTimeoutError 表示任务在限定时间内没有结束
type TaskTimeoutError struct {
	UPID    string
	Timeout time.Duration
	Status  string
}

func (e *TaskTimeoutError) Error() string {
	return fmt.Sprintf("task %s timed out after %s, current status: %s", e.UPID, e.Timeout, e.Status)
}

// GetTaskStatus 查询一次任务状态
func (c *Client) GetTaskStatus(ctx context.Context, node, upid string) (*TaskStatus, error) {
	var st TaskStatus
	path := fmt.Sprintf("/nodes/%s/tasks/%s/status", node, url.PathEscape(upid))
	if err := c.do(ctx, "GET", path, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// WaitTask 轮询任务直到 stopped 或超时。
// 完成状态为 stopped, 成功退出状态为 OK。
func (c *Client) WaitTask(ctx context.Context, node, upid string, timeout time.Duration) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := c.pollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastStatus := "unknown"
	for {
		select {
		case <-wctx.Done():
			return &TaskTimeoutError{UPID: upid, Timeout: timeout, Status: lastStatus}
		case <-ticker.C:
		}

		st, err := c.GetTaskStatus(wctx, node, upid)
		if err != nil {
			if wctx.Err() != nil {
				return &TaskTimeoutError{UPID: upid, Timeout: timeout, Status: lastStatus}
			}
			return fmt.Errorf("fetch task status for %s: %w", upid, err)
		}
		lastStatus = st.Status

		if st.Status == "stopped" {
			if st.ExitStatus == "OK" {
				return nil
			}
			return &TaskFailedError{UPID: upid, ExitStatus: st.ExitStatus}
		}
	}
}
