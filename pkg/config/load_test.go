package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `manager_host: 192.168.1.10
share:
  export: /srv/k3s-share
nodes:
  - ip: 192.168.1.21
    password: secret
    is_master: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ManagerHost != "192.168.1.10" {
		t.Errorf("ManagerHost = %q", cfg.ManagerHost)
	}
	if cfg.Share.Export != "/srv/k3s-share" {
		t.Errorf("Share.Export = %q", cfg.Share.Export)
	}
	if len(cfg.Nodes) != 1 || !cfg.Nodes[0].IsMaster {
		t.Errorf("Nodes = %+v", cfg.Nodes)
	}
	// 默认值已回填
	if cfg.Share.MountPoint != DefaultMountPoint {
		t.Errorf("Share.MountPoint = %q, want default", cfg.Share.MountPoint)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() with explicit missing file should fail")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("manager_host: 192.168.1.10\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PVE_TOOL_MANAGER_HOST", "10.0.0.1")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ManagerHost != "10.0.0.1" {
		t.Errorf("ManagerHost = %q, want env override", cfg.ManagerHost)
	}
}
