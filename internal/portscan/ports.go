package portscan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// commonPorts is the default scan profile: the services an admin actually
// cares about on a corporate network.
var commonPorts = []int{
	21, 22, 23, 25, 53, 80, 88, 110, 135, 139, 143, 389, 443, 445,
	464, 587, 636, 993, 995, 1433, 1521, 2049, 3128, 3268, 3306,
	3389, 5432, 5900, 5985, 5986, 8080, 8443, 9090, 9443,
}

// serviceNames maps well-known ports to a service guess for the report.
var serviceNames = map[int]string{
	21: "ftp", 22: "ssh", 23: "telnet", 25: "smtp", 53: "dns",
	80: "http", 88: "kerberos", 110: "pop3", 135: "msrpc", 139: "netbios-ssn",
	143: "imap", 389: "ldap", 443: "https", 445: "microsoft-ds", 464: "kpasswd",
	587: "submission", 636: "ldaps", 993: "imaps", 995: "pop3s",
	1433: "mssql", 1521: "oracle", 2049: "nfs", 3128: "squid",
	3268: "gc-ldap", 3306: "mysql", 3389: "rdp", 5432: "postgresql",
	5900: "vnc", 5985: "winrm", 5986: "winrm-https",
	8080: "http-alt", 8443: "https-alt", 9090: "http-mgmt", 9443: "https-mgmt",
}

// ServiceName returns the well-known service for a port, or empty.
func ServiceName(port int) string { return serviceNames[port] }

// ParsePorts parses a port specification: "common", a comma list, and/or
// dash ranges ("22,80,8000-8100"). Duplicates are removed; output is sorted.
func ParsePorts(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, "common") {
		out := make([]int, len(commonPorts))
		copy(out, commonPorts)
		return out, nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := parsePort(lo)
			if err != nil {
				return nil, err
			}
			end, err := parsePort(hi)
			if err != nil {
				return nil, err
			}
			if end < start {
				return nil, fmt.Errorf("port range %q: end below start", part)
			}
			for p := start; p <= end; p++ {
				seen[p] = true
			}
			continue
		}
		p, err := parsePort(part)
		if err != nil {
			return nil, err
		}
		seen[p] = true
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("no ports in spec %q", spec)
	}
	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < 1 || p > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return p, nil
}
