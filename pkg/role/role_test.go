package role

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pve-k3s-tool/pkg/cmdexec"
	"pve-k3s-tool/pkg/config"
)

type recordingRunner struct {
	cmds []cmdexec.Command
	err  error
}

func (r *recordingRunner) Run(ctx context.Context, cmd cmdexec.Command) (string, error) {
	r.cmds = append(r.cmds, cmd)
	return "", r.err
}

func TestParse(t *testing.T) {
	tests := []struct {
		arg     string
		want    Role
		wantErr bool
	}{
		{arg: config.RoleArgControl, want: Control},
		{arg: config.RoleArgWorker, want: Worker},
		{arg: "", wantErr: true},
		{arg: "master", wantErr: true},
		{arg: "CONTROL_NODE", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := Parse(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			}
			if tt.wantErr {
				var invalid *InvalidRoleError
				if !errors.As(err, &invalid) {
					t.Errorf("error type = %T, want *InvalidRoleError", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.arg, got, tt.want)
			}
		})
	}
}

func TestRoleArgRoundTrip(t *testing.T) {
	for _, arg := range config.SupportedRoles {
		r, err := Parse(arg)
		if err != nil {
			t.Fatal(err)
		}
		if r.Arg() != arg {
			t.Errorf("Arg() = %q, want %q", r.Arg(), arg)
		}
	}
}

func writeMachineID(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "machine-id")
	if err := os.WriteFile(path, []byte(content), 0444); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		machineID string
		role      Role
		want      string
	}{
		{
			name:      "Control node",
			machineID: "9f3a12c4d5e6f7a8b9c0d1e2f3a4b5c6\n",
			role:      Control,
			want:      "control-b5c6",
		},
		{
			name:      "Worker node",
			machineID: "9f3a12c4d5e6f7a8b9c0d1e2f3a4b5c6\n",
			role:      Worker,
			want:      "worker-b5c6",
		},
		{
			name:      "Uppercase identifier is lowered",
			machineID: "ABCDEF12\n",
			role:      Worker,
			want:      "worker-ef12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := &Resolver{MachineIDPath: writeMachineID(t, tt.machineID)}
			id, err := rs.Resolve(tt.role)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if id.Hostname != tt.want {
				t.Errorf("Hostname = %q, want %q", id.Hostname, tt.want)
			}
		})
	}
}

func TestResolveDeterministic(t *testing.T) {
	rs := &Resolver{MachineIDPath: writeMachineID(t, "9f3a12c4d5e6f7a8b9c0d1e2f3a4b5c6")}
	first, err := rs.Resolve(Control)
	if err != nil {
		t.Fatal(err)
	}
	second, err := rs.Resolve(Control)
	if err != nil {
		t.Fatal(err)
	}
	if first.Hostname != second.Hostname {
		t.Errorf("hostnames differ across runs: %q vs %q", first.Hostname, second.Hostname)
	}
}

func TestResolveMachineIDUnavailable(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "Missing file", path: filepath.Join(t.TempDir(), "absent")},
		{name: "Too short", path: ""},
	}
	tests[1].path = writeMachineID(t, "ab\n")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := &Resolver{MachineIDPath: tt.path}
			_, err := rs.Resolve(Control)
			var missing *MissingMachineIDError
			if !errors.As(err, &missing) {
				t.Fatalf("error = %v, want *MissingMachineIDError", err)
			}
		})
	}
}

func TestApplyReportsFailure(t *testing.T) {
	r := &recordingRunner{err: errors.New("permission denied")}
	rs := &Resolver{Runner: r}
	err := rs.Apply(context.Background(), &Identity{Hostname: "control-b5c6"})

	var applyErr *HostnameApplyError
	if !errors.As(err, &applyErr) {
		t.Fatalf("error = %v, want *HostnameApplyError", err)
	}
	if applyErr.Hostname != "control-b5c6" {
		t.Errorf("Hostname = %q", applyErr.Hostname)
	}
	if len(r.cmds) != 1 {
		t.Fatalf("runner invoked %d times, want 1", len(r.cmds))
	}
	if got := r.cmds[0].Args[len(r.cmds[0].Args)-1]; got != "control-b5c6" {
		t.Errorf("hostname argument = %q", got)
	}
}
