package utils

import (
	"net"
	"strings"
)

// vpnNames are interface name fragments that indicate a tunnel adapter.
var vpnNames = []string{"tun", "tap", "wg", "ppp", "warp"}

// ShouldForceRelay reports whether the host looks like it sits behind a VPN
// or CGNAT, where direct candidates rarely connect and TURN is needed anyway.
func ShouldForceRelay() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	// 100.64.0.0/10 is the CGNAT range; Cloudflare WARP and Tailscale
	// hand out addresses from it too.
	_, cgnatBlock, _ := net.ParseCIDR("100.64.0.0/10")

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		name := strings.ToLower(iface.Name)
		for _, fragment := range vpnNames {
			if strings.Contains(name, fragment) {
				return true
			}
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if cgnatBlock.Contains(ip) {
				return true
			}
		}
	}
	return false
}
