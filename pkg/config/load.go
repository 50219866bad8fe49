package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load 读取配置文件并叠加环境变量 (前缀 PVE_TOOL, 嵌套键用下划线,
// 例如 PVE_TOOL_MANAGER_HOST / PVE_TOOL_SHARE_EXPORT)。
// path 为空时按默认搜索路径查找, 找不到文件则只用环境变量和默认值。
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pve-k3s-tool")
	}

	v.SetEnvPrefix("PVE_TOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyDefaultsAndValidate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
