package pusher

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"pve-k3s-tool/pkg/config"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestFormatAlerts(t *testing.T) {
	tests := []struct {
		name   string
		alerts []Alert
		want   []string
	}{
		{
			name:   "Empty payload",
			alerts: nil,
			want:   []string{"收到空告警通知。"},
		},
		{
			name: "Firing alert",
			alerts: []Alert{{
				Status:      "firing",
				Labels:      map[string]string{"severity": "critical", "alertname": "NodeDown", "instance": "192.168.1.21:9100"},
				Annotations: map[string]string{"summary": "节点失联超过 5 分钟"},
				StartsAt:    "2026-08-30T10:00:00Z",
			}},
			want: []string{"【激活中】", "critical", "NodeDown", "192.168.1.21:9100", "节点失联超过 5 分钟"},
		},
		{
			name: "Resolved alert with missing labels",
			alerts: []Alert{{
				Status: "resolved",
				Labels: map[string]string{},
			}},
			want: []string{"【已解决】", "未知", "未知告警", "未知节点", "无摘要"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatAlerts(tt.alerts)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("FormatAlerts() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestFormatAlertsMultiple(t *testing.T) {
	got := FormatAlerts([]Alert{
		{Status: "firing", Labels: map[string]string{"alertname": "A"}},
		{Status: "resolved", Labels: map[string]string{"alertname": "B"}},
	})
	if len(strings.Split(got, "\n")) != 2 {
		t.Errorf("want one line per alert, got %q", got)
	}
}

func TestWebhookForwardsToAgent(t *testing.T) {
	var forwarded agentMessage
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&forwarded); err != nil {
			t.Fatal(err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer agent.Close()

	p := New(config.PusherConfig{AgentURL: agent.URL, TimeoutSeconds: 5}, quietLog())
	body := `{"alerts":[{"status":"firing","labels":{"alertname":"NodeDown"},"annotations":{},"startsAt":"2026-08-30T10:00:00Z"}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/alertmanager", strings.NewReader(body))
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if forwarded.ThreadID != alertThreadID {
		t.Errorf("thread_id = %d, want %d", forwarded.ThreadID, alertThreadID)
	}
	if !strings.Contains(forwarded.Message, "紧急告警通知") || !strings.Contains(forwarded.Message, "NodeDown") {
		t.Errorf("message = %q", forwarded.Message)
	}
}

func TestWebhookAgentFailure(t *testing.T) {
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer agent.Close()

	p := New(config.PusherConfig{AgentURL: agent.URL, TimeoutSeconds: 5}, quietLog())
	req := httptest.NewRequest(http.MethodPost, "/webhook/alertmanager", strings.NewReader(`{"alerts":[]}`))
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestWebhookRejectsBadPayload(t *testing.T) {
	p := New(config.PusherConfig{AgentURL: "http://unused", TimeoutSeconds: 5}, quietLog())
	req := httptest.NewRequest(http.MethodPost, "/webhook/alertmanager", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
