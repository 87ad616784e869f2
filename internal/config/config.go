package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BioHazard786/Wavecall/internal/rtc"
)

// Default configuration values (production)
const (
	DefaultDomain = "wavecall.qzz.io"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// Config holds application configuration.
type Config struct {
	// Domain is the signaling server domain.
	Domain string

	// WebSocketURL is constructed from the domain.
	WebSocketURL string

	// ICE servers for WebRTC.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// TURNCredURL, when set, is an HTTP endpoint that vends short-lived
	// TURN credentials; it takes precedence over static TURNUser/TURNPass.
	TURNCredURL string

	// ForceRelay restricts candidate gathering to relayed candidates.
	ForceRelay bool
}

// Options for loading config with CLI flag overrides.
type Options struct {
	Domain      string
	STUNServer  string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	TURNCredURL string
	ForceRelay  bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstOf(opts.Domain, os.Getenv("WAVECALL_DOMAIN"), DefaultDomain)
	stunServer := firstOf(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)
	turnServer := firstOf(opts.TURNServer, os.Getenv("TURN_SERVER"), "")
	turnUser := firstOf(opts.TURNUser, os.Getenv("TURN_USERNAME"), "")
	turnPass := firstOf(opts.TURNPass, os.Getenv("TURN_PASSWORD"), "")
	turnCredURL := firstOf(opts.TURNCredURL, os.Getenv("TURN_CRED_URL"), "")

	wsURL := websocketURL(domain)

	return &Config{
		Domain:       domain,
		WebSocketURL: wsURL,
		STUNServer:   stunServer,
		TURNServer:   turnServer,
		TURNUser:     turnUser,
		TURNPass:     turnPass,
		TURNCredURL:  turnCredURL,
		ForceRelay:   opts.ForceRelay,
	}, nil
}

// firstOf returns the first non-empty value.
func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// websocketURL builds the signaling URL for a domain. Bare host:port values
// (self-hosted servers) get ws://; everything else is assumed to sit behind
// TLS.
func websocketURL(domain string) string {
	if strings.HasPrefix(domain, "ws://") || strings.HasPrefix(domain, "wss://") {
		return strings.TrimSuffix(domain, "/") + "/ws"
	}
	if strings.HasPrefix(domain, "localhost") || strings.HasPrefix(domain, "127.0.0.1") || strings.Contains(domain, ":") {
		return fmt.Sprintf("ws://%s/ws", domain)
	}
	return fmt.Sprintf("wss://%s/ws", domain)
}

// TURNCredentials is the response of a credential endpoint: an HMAC-derived
// username/password pair with a bounded lifetime.
type TURNCredentials struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	TTL      int      `json:"ttl"`
	URIs     []string `json:"uris"`
}

// FetchTURNCredentials asks the credential endpoint for short-lived TURN
// credentials.
func FetchTURNCredentials(url string) (*TURNCredentials, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch turn credentials: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch turn credentials: unexpected status %s", resp.Status)
	}

	var creds TURNCredentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return nil, fmt.Errorf("parse turn credentials: %w", err)
	}
	return &creds, nil
}

// ICEConfig assembles the WebRTC ICE configuration: the STUN server, plus
// TURN servers from either the credential endpoint or static settings.
func (c *Config) ICEConfig() (rtc.Config, error) {
	cfg := rtc.Config{ForceRelay: c.ForceRelay}
	if c.STUNServer != "" {
		cfg.ICEServers = append(cfg.ICEServers, rtc.ICEServer{URLs: []string{c.STUNServer}})
	}

	if c.TURNCredURL != "" {
		creds, err := FetchTURNCredentials(c.TURNCredURL)
		if err != nil {
			return rtc.Config{}, err
		}
		cfg.ICEServers = append(cfg.ICEServers, rtc.ICEServer{
			URLs:       creds.URIs,
			Username:   creds.Username,
			Credential: creds.Password,
		})
		return cfg, nil
	}

	if c.TURNServer != "" {
		cfg.ICEServers = append(cfg.ICEServers, rtc.ICEServer{
			URLs:       turnURLs(c.TURNServer),
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}
	return cfg, nil
}

// turnURLs expands a bare TURN host into the usual UDP/TCP/TLS variants.
func turnURLs(server string) []string {
	if strings.Contains(server, "?") || strings.Contains(server, ":3478") || strings.Contains(server, ":5349") {
		return []string{server}
	}
	host := strings.TrimPrefix(strings.TrimPrefix(server, "turns:"), "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}
