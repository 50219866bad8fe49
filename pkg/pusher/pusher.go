// Package pusher 接收 Alertmanager Webhook 告警并转发给 agent。
package pusher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pve-k3s-tool/pkg/config"
)

// Alert 是 Alertmanager webhook payload 中的单条告警
type Alert struct {
	Status      string            `json:"status"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    string            `json:"startsAt"`
}

type webhookPayload struct {
	Alerts []Alert `json:"alerts"`
}

// agent 的 chat 接口约定: thread_id 999 为告警专用会话
type agentMessage struct {
	Message  string `json:"message"`
	ThreadID int    `json:"thread_id"`
}

const alertThreadID = 999

type Pusher struct {
	cfg   config.PusherConfig
	httpc *http.Client
	log   *logrus.Entry
}

func New(cfg config.PusherConfig, log *logrus.Entry) *Pusher {
	return &Pusher{
		cfg:   cfg,
		httpc: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:   log,
	}
}

// FormatAlerts 把 webhook 告警转成 agent 可读的中文描述
func FormatAlerts(alerts []Alert) string {
	if len(alerts) == 0 {
		return "收到空告警通知。"
	}

	lines := make([]string, 0, len(alerts))
	for _, a := range alerts {
		status := "【已解决】"
		if a.Status == "firing" {
			status = "【激活中】"
		}
		lines = append(lines, fmt.Sprintf(
			"%s 级别: %s 告警名称: %s。 目标节点: %s。 详细描述: %s。 触发时间: %s。",
			status,
			labelOr(a.Labels, "severity", "未知"),
			labelOr(a.Labels, "alertname", "未知告警"),
			labelOr(a.Labels, "instance", "未知节点"),
			labelOr(a.Annotations, "summary", "无摘要"),
			a.StartsAt,
		))
	}
	return strings.Join(lines, "\n")
}

func labelOr(m map[string]string, key, fallback string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return fallback
}

func (p *Pusher) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/alertmanager", p.handleWebhook)
	return mux
}

func (p *Pusher) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		p.writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error", "message": "invalid webhook payload",
		})
		return
	}

	msg := "紧急告警通知，请注意:\n" + FormatAlerts(payload.Alerts)
	p.log.WithField("alerts", len(payload.Alerts)).Info("forwarding alert to agent")

	if err := p.forward(r.Context(), msg); err != nil {
		p.log.WithError(err).Error("forward alert failed")
		p.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error", "message": fmt.Sprintf("PVE Agent returned error: %v", err),
		})
		return
	}
	p.writeJSON(w, http.StatusOK, map[string]string{
		"status": "success", "message": "Alert forwarded to PVE Agent.",
	})
}

func (p *Pusher) forward(ctx context.Context, message string) error {
	body, err := json.Marshal(agentMessage{Message: message, ThreadID: alertThreadID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.AgentURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("agent responded with status %d", resp.StatusCode)
	}
	return nil
}

func (p *Pusher) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		p.log.WithError(err).Warn("encode response failed")
	}
}

// ListenAndServe 启动 webhook 服务并在 ctx 取消时优雅关停
func (p *Pusher) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         p.cfg.Listen,
		Handler:      p.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(p.cfg.TimeoutSeconds+5) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		p.log.WithField("listen", p.cfg.Listen).Info("alert pusher started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
