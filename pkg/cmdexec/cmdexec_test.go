package cmdexec

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCommandString(t *testing.T) {
	cmd := Command{
		Path: "sh",
		Args: []string{"install.sh"},
		Env:  map[string]string{"B_KEY": "2", "A_KEY": "1"},
	}
	got := cmd.String()
	// 环境变量按键排序, 输出稳定
	if got != "A_KEY=1 B_KEY=2 sh install.sh" {
		t.Errorf("String() = %q", got)
	}
}

func TestRunCapturesOutput(t *testing.T) {
	out, err := NewRunner().Run(context.Background(), Command{Path: "sh", Args: []string{"-c", "echo hello"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != "hello" {
		t.Errorf("output = %q, want %q", out, "hello")
	}
}

func TestRunAppendsEnv(t *testing.T) {
	out, err := NewRunner().Run(context.Background(), Command{
		Path: "sh",
		Args: []string{"-c", "printf '%s' \"$MARKER\""},
		Env:  map[string]string{"MARKER": "present"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != "present" {
		t.Errorf("output = %q, want injected env value", out)
	}
}

func TestRunPreservesExitCode(t *testing.T) {
	_, err := NewRunner().Run(context.Background(), Command{Path: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error type = %T, want *ExitError", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("Code = %d, want 3", exitErr.Code)
	}
	if !strings.Contains(exitErr.Output, "boom") {
		t.Errorf("Output = %q, should contain stderr", exitErr.Output)
	}
}

func TestRunContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewRunner().Run(ctx, Command{Path: "sleep", Args: []string{"10"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestLookPath(t *testing.T) {
	if !LookPath("sh") {
		t.Error("LookPath(sh) = false")
	}
	if LookPath("definitely-not-a-real-binary-42") {
		t.Error("LookPath on bogus name = true")
	}
}
