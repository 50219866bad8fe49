package config

const ToolVersion = "0.4.1"

// 共享存储导出根目录下的固定布局
const (
	ArtifactK3sBinary       = "k3s"
	ArtifactInstallScript   = "install.sh"
	ArtifactBootstrapScript = "create_node.sh"
	ArtifactJoinRecord      = "k3s_config.conf"
)

// k3s 运行时在节点本地的固定路径
const (
	RegistriesConfigPath = "/etc/rancher/k3s/registries.yaml"
	NodeTokenPath        = "/var/lib/rancher/k3s/server/node-token"
	K3sAPIPort           = 6443
)

const MachineIDPath = "/etc/machine-id"

// 角色参数的合法取值 (外部入参, 保持与原有脚本一致)
const (
	RoleArgControl = "control_node"
	RoleArgWorker  = "work_node"
)

var SupportedRoles = []string{RoleArgControl, RoleArgWorker}

const (
	DefaultMountPoint     = "/mnt/k3s-share"
	DefaultRegistryPort   = 5000
	DefaultFallbackMirror = "https://docker.m.daocloud.io"
	DefaultServiceUser    = "ubuntu"
)
