package udp

import (
	"fmt"
	"net"
	"strings"
)

// ExpandDest turns a host given in CIDR form into that subnet's broadcast
// address, so "192.168.1.20/24:10110" becomes "192.168.1.255:10110". Other
// destinations are returned unchanged.
func ExpandDest(dest string) (string, error) {
	host, port, err := net.SplitHostPort(dest)
	if err != nil {
		return "", fmt.Errorf("udp dest %q: %w", dest, err)
	}
	if !strings.Contains(host, "/") {
		return dest, nil
	}
	bcast, err := broadcastAddress(host)
	if err != nil {
		return "", fmt.Errorf("udp dest %q: %w", dest, err)
	}
	return net.JoinHostPort(bcast, port), nil
}

// broadcastAddress returns IP | ^mask for an IPv4 CIDR.
func broadcastAddress(cidr string) (string, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return "", err
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return "", fmt.Errorf("only IPv4 supported")
	}
	mask := ipNet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	out := make(net.IP, len(ip4))
	for i := range ip4 {
		out[i] = ip4[i] | ^mask[i]
	}
	return out.String(), nil
}
