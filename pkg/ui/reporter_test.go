package ui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNodeContextStepAccounting(t *testing.T) {
	n := NewNodeContext("10.0.0.1", "Control", 3, false)

	n.StartStep("上传引导工具")
	if n.CurrentStep != 1 || n.CurrentStepName != "上传引导工具" {
		t.Errorf("after StartStep: step=%d name=%q", n.CurrentStep, n.CurrentStepName)
	}

	n.EndStep(nil, time.Second)
	if n.Err != nil {
		t.Errorf("Err = %v after successful step", n.Err)
	}

	n.StartStep("执行节点引导")
	boom := errors.New("ssh: broken pipe")
	n.EndStep(boom, time.Second)
	if n.Err != boom {
		t.Errorf("Err = %v, want recorded failure", n.Err)
	}

	n.Finish(false, 5*time.Second)
	if n.Success {
		t.Error("Success = true after failure")
	}
}

func TestNodeContextCollectsLogs(t *testing.T) {
	n := NewNodeContext("10.0.0.1", "Worker", 3, false)
	if _, err := n.Write([]byte("remote output line\n")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(n.LogBuffer.String(), "remote output line") {
		t.Errorf("LogBuffer = %q", n.LogBuffer.String())
	}
}

func TestGenerateFinalReport(t *testing.T) {
	control := NewNodeContext("10.0.0.1", "Control", 3, false)
	worker := NewNodeContext("10.0.0.2", "Worker", 3, false)
	control.Write([]byte("control install log\n"))
	worker.Write([]byte("worker join log\n"))

	path := filepath.Join(t.TempDir(), "report.log")
	if err := GenerateFinalReport([]*NodeContext{worker, control}, path); err != nil {
		t.Fatalf("GenerateFinalReport() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	report := string(data)
	for _, want := range []string{"Control 节点组", "Worker 节点组", "control install log", "worker join log"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}
	// control 组先于 worker 组
	if strings.Index(report, "control install log") > strings.Index(report, "worker join log") {
		t.Error("control logs should precede worker logs")
	}
}
