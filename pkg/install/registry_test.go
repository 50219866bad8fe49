package install

import (
	"testing"

	"gopkg.in/yaml.v3"

	"pve-k3s-tool/pkg/config"
)

func TestRenderRegistries(t *testing.T) {
	data, err := RenderRegistries("192.168.1.10", config.RegistryConfig{
		Port:           5000,
		FallbackMirror: "https://docker.m.daocloud.io",
	})
	if err != nil {
		t.Fatalf("RenderRegistries() error = %v", err)
	}

	var parsed registriesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("output is not valid yaml: %v", err)
	}

	mirror, ok := parsed.Mirrors["docker.io"]
	if !ok {
		t.Fatalf("docker.io mirror missing, got %v", parsed.Mirrors)
	}
	want := []string{"http://192.168.1.10:5000", "https://docker.m.daocloud.io"}
	if len(mirror.Endpoint) != 2 || mirror.Endpoint[0] != want[0] || mirror.Endpoint[1] != want[1] {
		t.Errorf("endpoints = %v, want %v (private registry first)", mirror.Endpoint, want)
	}
}
