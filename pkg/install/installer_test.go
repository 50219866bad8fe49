package install

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"pve-k3s-tool/pkg/cmdexec"
	"pve-k3s-tool/pkg/config"
	"pve-k3s-tool/pkg/role"
	"pve-k3s-tool/pkg/store"
)

type fakeRunner struct {
	cmds []cmdexec.Command
	err  error
}

func (r *fakeRunner) Run(ctx context.Context, cmd cmdexec.Command) (string, error) {
	r.cmds = append(r.cmds, cmd)
	return "", r.err
}

type fakeStore struct {
	rec     *store.JoinRecord
	readErr error
	written []*store.JoinRecord
	reads   int
}

func (s *fakeStore) ReadJoinRecord(ctx context.Context) (*store.JoinRecord, error) {
	s.reads++
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.rec, nil
}

func (s *fakeStore) WriteJoinRecord(ctx context.Context, rec *store.JoinRecord) error {
	s.written = append(s.written, rec)
	return nil
}

func (s *fakeStore) ArtifactPath(name string) string { return name }

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func testConfig() *config.Config {
	return &config.Config{
		ManagerHost: "192.168.1.10",
		Registry:    config.RegistryConfig{Port: 5000, FallbackMirror: "https://mirror.example.com"},
	}
}

// newTestInstaller 准备好工作区里的必备工件
func newTestInstaller(t *testing.T, r role.Role, st store.Store, runner cmdexec.Runner) *Installer {
	t.Helper()
	workspace := t.TempDir()
	for _, name := range []string{config.ArtifactK3sBinary, config.ArtifactInstallScript} {
		if err := os.WriteFile(filepath.Join(workspace, name), []byte("#!/bin/sh\n"), 0755); err != nil {
			t.Fatal(err)
		}
	}

	i := NewInstaller(testConfig(), r, workspace, st, runner, quietLog())
	i.RegistriesPath = filepath.Join(t.TempDir(), "registries.yaml")
	i.BinDir = t.TempDir()
	return i
}

func TestControlInstallSucceeds(t *testing.T) {
	runner := &fakeRunner{}
	st := &fakeStore{}
	i := newTestInstaller(t, role.Control, st, runner)

	if err := i.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if i.State() != StateInstalled {
		t.Errorf("State() = %s, want Installed", i.State())
	}
	if st.reads != 0 {
		t.Errorf("control node read join record %d times, want 0", st.reads)
	}

	if len(runner.cmds) != 1 {
		t.Fatalf("runner invoked %d times, want 1", len(runner.cmds))
	}
	cmd := runner.cmds[0]
	if cmd.Env["INSTALL_K3S_SKIP_DOWNLOAD"] != "true" {
		t.Errorf("installer must run in skip-download mode, env = %v", cmd.Env)
	}
	if _, ok := cmd.Env["K3S_URL"]; ok {
		t.Error("control install must not carry K3S_URL")
	}

	// registries.yaml 已写入
	data, err := os.ReadFile(i.RegistriesPath)
	if err != nil {
		t.Fatalf("registries config not written: %v", err)
	}
	if len(data) == 0 {
		t.Error("registries config is empty")
	}
	// k3s 二进制已预置到 BIN_DIR
	if _, err := os.Stat(filepath.Join(i.BinDir, config.ArtifactK3sBinary)); err != nil {
		t.Errorf("k3s binary not staged: %v", err)
	}
}

func TestWorkerInstallUsesJoinRecord(t *testing.T) {
	runner := &fakeRunner{}
	st := &fakeStore{rec: &store.JoinRecord{MasterIP: "192.168.1.21", Token: "K10abc"}}
	i := newTestInstaller(t, role.Worker, st, runner)

	if err := i.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if i.State() != StateInstalled {
		t.Errorf("State() = %s, want Installed", i.State())
	}

	cmd := runner.cmds[0]
	if cmd.Env["K3S_URL"] != "https://192.168.1.21:6443" {
		t.Errorf("K3S_URL = %q", cmd.Env["K3S_URL"])
	}
	if cmd.Env["K3S_TOKEN"] != "K10abc" {
		t.Errorf("K3S_TOKEN = %q", cmd.Env["K3S_TOKEN"])
	}
}

func TestWorkerWithoutJoinRecordHasNoSideEffects(t *testing.T) {
	runner := &fakeRunner{}
	st := &fakeStore{readErr: &store.MissingJoinRecordError{Path: "k3s_config.conf", Attempts: 3, Err: os.ErrNotExist}}
	i := newTestInstaller(t, role.Worker, st, runner)

	err := i.Run(context.Background())
	var missing *store.MissingJoinRecordError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want *MissingJoinRecordError", err)
	}
	if i.State() != StateFailed {
		t.Errorf("State() = %s, want Failed", i.State())
	}

	// join record 不可用时不允许有任何安装副作用
	if len(runner.cmds) != 0 {
		t.Errorf("installer invoked %d commands, want 0", len(runner.cmds))
	}
	if _, err := os.Stat(i.RegistriesPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("registries config should not exist, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(i.BinDir, config.ArtifactK3sBinary)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("k3s binary should not be staged, stat err = %v", err)
	}
}

func TestMissingArtifactFailsBeforeInstall(t *testing.T) {
	runner := &fakeRunner{}
	i := NewInstaller(testConfig(), role.Control, t.TempDir(), &fakeStore{}, runner, quietLog())
	i.RegistriesPath = filepath.Join(t.TempDir(), "registries.yaml")
	i.BinDir = t.TempDir()

	err := i.Run(context.Background())
	var missing *MissingArtifactError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want *MissingArtifactError", err)
	}
	if i.State() != StateFailed {
		t.Errorf("State() = %s, want Failed", i.State())
	}
	if len(runner.cmds) != 0 {
		t.Errorf("installer invoked %d commands, want 0", len(runner.cmds))
	}
}

func TestInstallScriptFailure(t *testing.T) {
	runner := &fakeRunner{err: &cmdexec.ExitError{Cmd: "sh install.sh", Code: 1}}
	i := newTestInstaller(t, role.Control, &fakeStore{}, runner)

	err := i.Run(context.Background())
	var installErr *InstallError
	if !errors.As(err, &installErr) {
		t.Fatalf("error = %v, want *InstallError", err)
	}
	var exitErr *cmdexec.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Errorf("underlying exit code not preserved: %v", err)
	}
	if i.State() != StateFailed {
		t.Errorf("State() = %s, want Failed", i.State())
	}
}

func TestRerunOverwritesRegistries(t *testing.T) {
	runner := &fakeRunner{}
	i := newTestInstaller(t, role.Control, &fakeStore{}, runner)

	if err := i.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(i.RegistriesPath)
	if err != nil {
		t.Fatal(err)
	}

	// 换一个仓库端口重跑, 配置被覆盖而不是追加
	i.Cfg.Registry.Port = 5001
	i.state = StateIdle
	if err := i.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(i.RegistriesPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) == string(second) {
		t.Error("registries config not rewritten on rerun")
	}
}
