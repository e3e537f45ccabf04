package portscan

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// maxCIDRBits bounds CIDR expansion to 2^16 hosts so a stray /8 or an
// IPv6 block cannot exhaust memory before the scan even starts.
const maxCIDRBits = 16

// ExpandTarget parses a scan target into individual host addresses.
// Accepted forms: a hostname or single IP, a last-octet range
// "192.168.1.10-20", or CIDR notation "10.0.0.0/24". For IPv4 networks
// smaller than /31 the network and broadcast addresses are dropped.
func ExpandTarget(target string) ([]string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("empty target")
	}

	if strings.Contains(target, "/") {
		return expandCIDR(target)
	}
	if i := strings.LastIndex(target, "-"); i > 0 {
		if ips, err := expandOctetRange(target, i); err == nil {
			return ips, nil
		}
		// fall through: hostnames may legally contain '-'
	}
	return []string{target}, nil
}

func expandCIDR(cidr string) ([]string, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("parse CIDR %q: %w", cidr, err)
	}
	ones, bits := ipnet.Mask.Size()
	if bits-ones > maxCIDRBits {
		return nil, fmt.Errorf("CIDR %q expands to more than %d addresses, narrow the prefix", cidr, 1<<maxCIDRBits)
	}

	var ips []string
	for cur := ip.Mask(ipnet.Mask); ipnet.Contains(cur); cur = nextIP(cur) {
		ips = append(ips, cur.String())
	}

	// Drop network and broadcast addresses for regular IPv4 subnets.
	if bits == 32 && ones < 31 && len(ips) > 2 {
		ips = ips[1 : len(ips)-1]
	}
	return ips, nil
}

func nextIP(ip net.IP) net.IP {
	next := make(net.IP, len(ip))
	copy(next, ip)
	for i := len(next) - 1; i >= 0; i-- {
		next[i]++
		if next[i] != 0 {
			break
		}
	}
	return next
}

// expandOctetRange handles "a.b.c.d-e" where e is the final last octet.
func expandOctetRange(target string, dash int) ([]string, error) {
	base := target[:dash]
	endStr := target[dash+1:]

	ip := net.ParseIP(base)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("range base %q is not an IPv4 address", base)
	}
	end, err := strconv.Atoi(endStr)
	if err != nil || end < 0 || end > 255 {
		return nil, fmt.Errorf("invalid range end %q", endStr)
	}

	octets := strings.Split(base, ".")
	start, err := strconv.Atoi(octets[3])
	if err != nil {
		return nil, fmt.Errorf("invalid start octet %q", octets[3])
	}
	if end < start {
		return nil, fmt.Errorf("range end %d below start %d", end, start)
	}

	prefix := strings.Join(octets[:3], ".")
	ips := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		ips = append(ips, fmt.Sprintf("%s.%d", prefix, i))
	}
	return ips, nil
}
