package install

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"pve-k3s-tool/pkg/config"
)

// registriesFile 对应 k3s 的 /etc/rancher/k3s/registries.yaml 结构
type registriesFile struct {
	Mirrors map[string]registryMirror `yaml:"mirrors"`
}

type registryMirror struct {
	Endpoint []string `yaml:"endpoint"`
}

// RenderRegistries 生成镜像仓库配置: 首选 manager 主机上的私有仓库,
// 失效时回落到固定的外部镜像。
func RenderRegistries(managerHost string, reg config.RegistryConfig) ([]byte, error) {
	primary := fmt.Sprintf("http://%s:%d", managerHost, reg.Port)
	f := registriesFile{
		Mirrors: map[string]registryMirror{
			"docker.io": {Endpoint: []string{primary, reg.FallbackMirror}},
		},
	}
	return yaml.Marshal(&f)
}

// writeRegistries 原子覆盖运行时配置, 容器运行时不会观察到半写状态
func (i *Installer) writeRegistries() error {
	data, err := RenderRegistries(i.Cfg.ManagerHost, i.Cfg.Registry)
	if err != nil {
		return &RegistryConfigWriteError{Path: i.RegistriesPath, Err: err}
	}

	dir := filepath.Dir(i.RegistriesPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &RegistryConfigWriteError{Path: i.RegistriesPath, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".registries.yaml.*")
	if err != nil {
		return &RegistryConfigWriteError{Path: i.RegistriesPath, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &RegistryConfigWriteError{Path: i.RegistriesPath, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &RegistryConfigWriteError{Path: i.RegistriesPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &RegistryConfigWriteError{Path: i.RegistriesPath, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &RegistryConfigWriteError{Path: i.RegistriesPath, Err: err}
	}
	if err := os.Rename(tmpName, i.RegistriesPath); err != nil {
		return &RegistryConfigWriteError{Path: i.RegistriesPath, Err: err}
	}
	i.Log.WithField("path", i.RegistriesPath).Info("registry mirror config written")
	return nil
}
