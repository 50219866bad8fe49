package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed artifacts.yaml
var artifactsYAML []byte

// Artifact 描述共享存储里的一个引导工件
type Artifact struct {
	Name       string `yaml:"name"`
	Required   bool   `yaml:"required"`
	Executable bool   `yaml:"executable"`
}

// ArtifactSet 返回按固定顺序排列的必备工件清单
func ArtifactSet() ([]Artifact, error) {
	var set []Artifact
	if err := yaml.Unmarshal(artifactsYAML, &set); err != nil {
		return nil, fmt.Errorf("parse artifacts.yaml failed: %w", err)
	}
	return set, nil
}
