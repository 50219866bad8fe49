package config

import (
	"errors"
	"fmt"
	"strings"
)

func stringInSlice(str string, slice []string) bool {
	for _, item := range slice {
		if item == str {
			return true
		}
	}
	return false
}

// ApplyDefaultsAndValidate applies default values and validates the configuration
func ApplyDefaultsAndValidate(cfg *Config) error {
	if cfg.CommandTimeoutSeconds <= 0 {
		cfg.CommandTimeoutSeconds = 600
	}
	if cfg.SSHPort == 0 {
		cfg.SSHPort = 22
	}
	if cfg.User == "" {
		cfg.User = "root"
	}
	if cfg.ServiceUser == "" {
		cfg.ServiceUser = DefaultServiceUser
	}

	if cfg.Share.MountPoint == "" {
		cfg.Share.MountPoint = DefaultMountPoint
	}
	if cfg.Share.MountTimeoutSeconds <= 0 {
		cfg.Share.MountTimeoutSeconds = 30
	}

	if cfg.Registry.Port == 0 {
		cfg.Registry.Port = DefaultRegistryPort
	}
	if cfg.Registry.FallbackMirror == "" {
		cfg.Registry.FallbackMirror = DefaultFallbackMirror
	}

	if cfg.Join.Attempts <= 0 {
		cfg.Join.Attempts = 10
	}
	if cfg.Join.InitialDelaySeconds <= 0 {
		cfg.Join.InitialDelaySeconds = 2
	}
	if cfg.Join.MaxDelaySeconds <= 0 {
		cfg.Join.MaxDelaySeconds = 30
	}

	if cfg.PVE.Port == 0 {
		cfg.PVE.Port = 8006
	}
	if cfg.Serve.Listen == "" {
		cfg.Serve.Listen = ":8811"
	}
	if cfg.Pusher.Listen == "" {
		cfg.Pusher.Listen = ":9095"
	}
	if cfg.Pusher.TimeoutSeconds <= 0 {
		cfg.Pusher.TimeoutSeconds = 30
	}

	for i, node := range cfg.Nodes {
		if strings.TrimSpace(node.IP) == "" {
			return fmt.Errorf("Error: Node[%d] ip is required.", i)
		}
		if strings.TrimSpace(node.Password) == "" && strings.TrimSpace(node.KeyFile) == "" {
			return fmt.Errorf("Error: Node[%d] password or key_file is required.", i)
		}
	}

	return nil
}

// ValidateBootstrap 校验本机节点引导所需的字段
func ValidateBootstrap(cfg *Config) error {
	if strings.TrimSpace(cfg.ManagerHost) == "" {
		return errors.New("Error: manager_host is required (registry mirror and share server default to it).")
	}
	if cfg.Share.Server == "" {
		cfg.Share.Server = cfg.ManagerHost
	}
	if cfg.Share.Export == "" {
		return errors.New("Error: share.export is required.")
	}
	return nil
}

// ValidateProvision 校验运维端批量部署所需的字段
func ValidateProvision(cfg *Config) error {
	if len(cfg.Nodes) == 0 {
		return errors.New("Error: No nodes defined in config.yaml")
	}
	masters := 0
	for i := range cfg.Nodes {
		if cfg.Nodes[i].IsMaster {
			masters++
		}
	}
	if masters != 1 {
		return fmt.Errorf("Error: exactly 1 master node is required, got %d.", masters)
	}
	return nil
}

// ValidatePVE 校验 PVE 控制面服务所需的字段
func ValidatePVE(cfg *Config) error {
	if cfg.PVE.Host == "" || cfg.PVE.TokenSecret == "" {
		return errors.New("Error: pve.host and pve.token_secret are required.")
	}
	if cfg.PVE.TokenID == "" {
		return errors.New("Error: pve.token_id is required, e.g. 'root@pam!tokenname'.")
	}
	return nil
}

// ValidatePusher 校验告警转发服务所需的字段
func ValidatePusher(cfg *Config) error {
	if cfg.Pusher.AgentURL == "" {
		return errors.New("Error: pusher.agent_url is required.")
	}
	return nil
}

// ValidRole 判断外部角色入参是否合法
func ValidRole(role string) bool {
	return stringInSlice(role, SupportedRoles)
}
