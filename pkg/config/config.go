package config

type Config struct {
	// 全局配置: manager 主机地址由运维环境提供 (镜像仓库/监控/MCP 都指向它)
	ManagerHost string `yaml:"manager_host" mapstructure:"manager_host"`

	Share    ShareConfig    `yaml:"share" mapstructure:"share"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Join     JoinConfig     `yaml:"join" mapstructure:"join"`

	// 默认 SSH 配置 (如果 Node 中未指定则使用此默认值)
	SSHPort int    `yaml:"ssh_port" mapstructure:"ssh_port"`
	User    string `yaml:"user" mapstructure:"user"`
	// 命令执行超时（秒）
	CommandTimeoutSeconds int `yaml:"command_timeout_seconds" mapstructure:"command_timeout_seconds"`

	// 节点列表 (provision 模式使用)
	Nodes []NodeConfig `yaml:"nodes" mapstructure:"nodes"`

	// 本机引导时优先使用的非 root 用户, 提权执行时工件落到该用户家目录
	ServiceUser string `yaml:"service_user" mapstructure:"service_user"`

	PVE    PVEConfig    `yaml:"pve" mapstructure:"pve"`
	Serve  ServeConfig  `yaml:"serve" mapstructure:"serve"`
	Pusher PusherConfig `yaml:"pusher" mapstructure:"pusher"`
}

// ShareConfig 描述共享配置存储 (NFS 导出) 及其本地挂载位置
type ShareConfig struct {
	Server     string `yaml:"server" mapstructure:"server"`
	Export     string `yaml:"export" mapstructure:"export"`
	MountPoint string `yaml:"mount_point" mapstructure:"mount_point"`
	// 挂载操作超时（秒）, 防止远端不可达时无限阻塞
	MountTimeoutSeconds int `yaml:"mount_timeout_seconds" mapstructure:"mount_timeout_seconds"`
}

type NodeConfig struct {
	IP       string `yaml:"ip" mapstructure:"ip"`
	Password string `yaml:"password" mapstructure:"password"`
	KeyFile  string `yaml:"key_file" mapstructure:"key_file"`
	SSHPort  int    `yaml:"ssh_port" mapstructure:"ssh_port"` // 可选：覆盖全局 Port
	IsMaster bool   `yaml:"is_master" mapstructure:"is_master"`
}

type RegistryConfig struct {
	Port           int    `yaml:"port" mapstructure:"port"`
	FallbackMirror string `yaml:"fallback_mirror" mapstructure:"fallback_mirror"`
}

// JoinConfig 控制 worker 等待 join record 的重试节奏
type JoinConfig struct {
	Attempts            int `yaml:"attempts" mapstructure:"attempts"`
	InitialDelaySeconds int `yaml:"initial_delay_seconds" mapstructure:"initial_delay_seconds"`
	MaxDelaySeconds     int `yaml:"max_delay_seconds" mapstructure:"max_delay_seconds"`
}

type PVEConfig struct {
	Host        string `yaml:"host" mapstructure:"host"`
	Port        int    `yaml:"port" mapstructure:"port"`
	TokenID     string `yaml:"token_id" mapstructure:"token_id"`
	TokenSecret string `yaml:"token_secret" mapstructure:"token_secret"`
	// PVE 自签名证书场景跳过校验
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

type ServeConfig struct {
	Listen string `yaml:"listen" mapstructure:"listen"`
}

type PusherConfig struct {
	Listen string `yaml:"listen" mapstructure:"listen"`
	// 告警转发目标 (agent 的 chat 接口)
	AgentURL       string `yaml:"agent_url" mapstructure:"agent_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}
