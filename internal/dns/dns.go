package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// publicDNS are resolvers to race when the system resolver fails. All are
// well-known, high-availability providers.
var publicDNS = []string{
	"1.0.0.1",                // Cloudflare
	"1.1.1.1",                // Cloudflare
	"[2606:4700:4700::1111]", // Cloudflare
	"[2606:4700:4700::1001]", // Cloudflare
	"8.8.4.4",                // Google
	"8.8.8.8",                // Google
	"[2001:4860:4860::8844]", // Google
	"[2001:4860:4860::8888]", // Google
	"9.9.9.9",                // Quad9
	"149.112.112.112",        // Quad9
	"[2620:fe::fe]",          // Quad9
	"208.67.220.220",         // Cisco OpenDNS
	"208.67.222.222",         // Cisco OpenDNS
}

// Lookup resolves a hostname, trying the system resolver first and falling
// back to a race across public resolvers. Signaling must stay reachable even
// when captive portals or VPNs break local DNS.
func Lookup(address string) (string, error) {
	if ip := net.ParseIP(address); ip != nil {
		return address, nil
	}

	if ip, err := systemLookup(address); err == nil && ip != "" {
		return ip, nil
	}
	return raceLookup(address)
}

// systemLookup resolves through the local DNS configuration.
func systemLookup(address string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	ips, err := (&net.Resolver{}).LookupHost(ctx, address)
	if err != nil {
		return "", err
	}
	return pickIP(ips)
}

// raceLookup queries every public resolver at once and takes the first
// success.
func raceLookup(address string) (string, error) {
	type result struct {
		ip  string
		err error
	}
	results := make(chan result, len(publicDNS))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, server := range publicDNS {
		go func(server string) {
			ip, err := queryServer(ctx, address, server)
			results <- result{ip: ip, err: err}
		}(server)
	}

	failures := 0
	for range publicDNS {
		select {
		case res := <-results:
			if res.err == nil && res.ip != "" {
				return res.ip, nil
			}
			failures++
		case <-ctx.Done():
			return "", fmt.Errorf("public DNS race timed out resolving %s", address)
		}
	}
	return "", fmt.Errorf("failed to resolve %s: all %d public resolvers failed", address, failures)
}

// queryServer resolves against one specific DNS server.
func queryServer(ctx context.Context, address, server string) (string, error) {
	r := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := new(net.Dialer)
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}

	ips, err := r.LookupHost(ctx, address)
	if err != nil {
		return "", err
	}
	return pickIP(ips)
}

// pickIP prefers an IPv4 address from a lookup result.
func pickIP(ips []string) (string, error) {
	if len(ips) == 0 {
		return "", errors.New("no IP addresses found")
	}
	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}
