// Package serve 是管理面 HTTP 服务: 把 PVE 虚拟机生命周期操作
// 暴露为给上层 agent 消费的工具接口。
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"pve-k3s-tool/pkg/config"
	"pve-k3s-tool/pkg/pve"
)

type Server struct {
	cfg    config.ServeConfig
	client *pve.Client
	log    *logrus.Entry
}

func NewServer(cfg config.ServeConfig, client *pve.Client, log *logrus.Entry) *Server {
	return &Server{cfg: cfg, client: client, log: log}
}

// Handler 组装路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /nodes", s.handleListNodes)
	mux.HandleFunc("GET /nodes/{node}/qemu", s.handleListVMs)
	mux.HandleFunc("POST /nodes/{node}/qemu", s.handleCreateVM)
	mux.HandleFunc("GET /nodes/{node}/qemu/{vmid}/status", s.handleVMStatus)
	mux.HandleFunc("PUT /nodes/{node}/qemu/{vmid}/config", s.handleUpdateVMConfig)
	mux.HandleFunc("POST /nodes/{node}/qemu/{vmid}/start", s.vmAction((*pve.Client).StartVM))
	mux.HandleFunc("POST /nodes/{node}/qemu/{vmid}/shutdown", s.vmAction((*pve.Client).ShutdownVM))
	mux.HandleFunc("POST /nodes/{node}/qemu/{vmid}/reboot", s.vmAction((*pve.Client).RebootVM))
	mux.HandleFunc("POST /nodes/{node}/qemu/{vmid}/clone", s.handleCloneVM)
	mux.HandleFunc("DELETE /nodes/{node}/qemu/{vmid}", s.handleDeleteVM)
	mux.HandleFunc("GET /nodes/{node}/tasks/{upid}", s.handleTaskStatus)
	mux.HandleFunc("POST /nodes/{node}/tasks/{upid}/wait", s.handleTaskWait)
	return mux
}

// ListenAndServe 启动服务并在 ctx 取消时优雅关停
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // 任务等待接口可能长时间挂起
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("listen", s.cfg.Listen).Info("pve control service started")
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

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("encode response failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var apiErr *pve.APIError
	if errors.As(err, &apiErr) {
		status = http.StatusBadGateway
	}
	var timeoutErr *pve.TaskTimeoutError
	if errors.As(err, &timeoutErr) {
		status = http.StatusGatewayTimeout
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "PVE control service is authenticated and running.")
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.client.ListNodes(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data": nodes})
}

func (s *Server) handleListVMs(w http.ResponseWriter, r *http.Request) {
	vms, err := s.client.ListVMs(r.Context(), r.PathValue("node"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data": vms})
}

func vmidOf(r *http.Request) (int, error) {
	return strconv.Atoi(r.PathValue("vmid"))
}

func (s *Server) handleVMStatus(w http.ResponseWriter, r *http.Request) {
	vmid, err := vmidOf(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid vmid"})
		return
	}
	st, err := s.client.GetVMStatus(r.Context(), r.PathValue("node"), vmid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data": st})
}

// vmAction 把返回 UPID 的单参操作适配为 handler
func (s *Server) vmAction(op func(*pve.Client, context.Context, string, int) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vmid, err := vmidOf(r)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid vmid"})
			return
		}
		upid, err := op(s.client, r.Context(), r.PathValue("node"), vmid)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]string{"upid": upid})
	}
}

// decodeParams 把 JSON 对象平铺成 PVE 的表单参数
func decodeParams(r *http.Request) (url.Values, error) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	params := url.Values{}
	for k, v := range body {
		switch val := v.(type) {
		case bool:
			if val {
				params.Set(k, "1")
			} else {
				params.Set(k, "0")
			}
		case float64:
			params.Set(k, strconv.FormatFloat(val, 'f', -1, 64))
		default:
			params.Set(k, fmt.Sprint(val))
		}
	}
	return params, nil
}

func (s *Server) handleCreateVM(w http.ResponseWriter, r *http.Request) {
	params, err := decodeParams(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	vmid, err := strconv.Atoi(params.Get("vmid"))
	if err != nil || vmid <= 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "vmid is required"})
		return
	}
	params.Del("vmid")

	upid, err := s.client.CreateVM(r.Context(), r.PathValue("node"), vmid, params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"upid": upid})
}

func (s *Server) handleUpdateVMConfig(w http.ResponseWriter, r *http.Request) {
	vmid, err := vmidOf(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid vmid"})
		return
	}
	params, err := decodeParams(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := s.client.UpdateVMConfig(r.Context(), r.PathValue("node"), vmid, params); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type cloneRequest struct {
	NewID int    `json:"newid"`
	Name  string `json:"name"`
	Full  bool   `json:"full"`
}

func (s *Server) handleCloneVM(w http.ResponseWriter, r *http.Request) {
	vmid, err := vmidOf(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid vmid"})
		return
	}
	var req cloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewID == 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "newid is required"})
		return
	}

	params := url.Values{}
	params.Set("newid", strconv.Itoa(req.NewID))
	if req.Name != "" {
		params.Set("name", req.Name)
	}
	if req.Full {
		params.Set("full", "1")
	}
	upid, err := s.client.CloneVM(r.Context(), r.PathValue("node"), vmid, params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"upid": upid})
}

func (s *Server) handleDeleteVM(w http.ResponseWriter, r *http.Request) {
	vmid, err := vmidOf(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid vmid"})
		return
	}
	upid, err := s.client.DeleteVM(r.Context(), r.PathValue("node"), vmid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"upid": upid})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.client.GetTaskStatus(r.Context(), r.PathValue("node"), r.PathValue("upid"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data": st})
}

func (s *Server) handleTaskWait(w http.ResponseWriter, r *http.Request) {
	timeout := 300 * time.Second
	if v := r.URL.Query().Get("timeout"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid timeout"})
			return
		}
		timeout = time.Duration(secs) * time.Second
	}

	node, upid := r.PathValue("node"), r.PathValue("upid")
	if err := s.client.WaitTask(r.Context(), node, upid, timeout); err != nil {
		var failed *pve.TaskFailedError
		if errors.As(err, &failed) {
			s.writeJSON(w, http.StatusOK, map[string]string{"upid": upid, "status": "stopped", "exitstatus": failed.ExitStatus})
			return
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"upid": upid, "status": "stopped", "exitstatus": "OK"})
}
