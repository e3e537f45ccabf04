package portscan

import "testing"

func TestParsePorts_CommonProfile(t *testing.T) {
	for _, spec := range []string{"", "common", "COMMON"} {
		ports, err := ParsePorts(spec)
		if err != nil {
			t.Fatalf("ParsePorts(%q) error = %v", spec, err)
		}
		if len(ports) != len(commonPorts) {
			t.Errorf("ParsePorts(%q) = %d ports, want %d", spec, len(ports), len(commonPorts))
		}
	}
}

func TestParsePorts_ListAndRange(t *testing.T) {
	ports, err := ParsePorts("443, 22,80,8000-8002,22")
	if err != nil {
		t.Fatalf("ParsePorts() error = %v", err)
	}
	want := []int{22, 80, 443, 8000, 8001, 8002}
	if len(ports) != len(want) {
		t.Fatalf("got %v, want %v", ports, want)
	}
	for i := range want {
		if ports[i] != want[i] {
			t.Errorf("ports[%d] = %d, want %d", i, ports[i], want[i])
		}
	}
}

func TestParsePorts_Errors(t *testing.T) {
	for _, spec := range []string{"0", "65536", "abc", "80-22", "-5"} {
		if _, err := ParsePorts(spec); err == nil {
			t.Errorf("ParsePorts(%q) should fail", spec)
		}
	}
}

func TestServiceName(t *testing.T) {
	if got := ServiceName(3389); got != "rdp" {
		t.Errorf("ServiceName(3389) = %q, want rdp", got)
	}
	if got := ServiceName(49152); got != "" {
		t.Errorf("ServiceName(49152) = %q, want empty", got)
	}
}
