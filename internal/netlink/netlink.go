package netlink

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strings"
	"time"
)

// Link joins the device to the network. Joining happens exactly once, at
// startup; a timeout here is the monitor's only restart-worthy failure.
type Link interface {
	// Join blocks until connectivity is available or the timeout elapses.
	// hint names the provisioning network an operator would look for while
	// the device is unconfigured.
	Join(hint string, timeout time.Duration) error
}

// Probe waits for network connectivity by polling TCP reachability of the
// upload endpoint. Credential provisioning itself (wpa_supplicant, captive
// portal) is the platform's job; the probe only observes the result.
type Probe struct {
	Addr     string        // host:port to dial
	Interval time.Duration // poll interval, default 1s
}

func (p *Probe) Join(hint string, timeout time.Duration) error {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}

	log.Printf("netlink: waiting up to %v for connectivity to %s (provisioning network %q)", timeout, p.Addr, hint)

	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.DialTimeout("tcp", p.Addr, 2*time.Second)
		if err == nil {
			conn.Close()
			log.Printf("netlink: connectivity to %s established", p.Addr)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("netlink: no connectivity to %s within %v: %w", p.Addr, timeout, err)
		}
		time.Sleep(interval)
	}
}

// ProbeAddr derives a dialable host:port from the upload endpoint URL.
func ProbeAddr(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("netlink: parse endpoint URL %q: %w", rawURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("netlink: endpoint URL %q has no host", rawURL)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(host, port), nil
}

// DeviceID returns the configured device name, falling back to a
// hostname-derived identity.
func DeviceID(configured string) string {
	if configured != "" {
		return configured
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "airmon"
	}
	return "airmon-" + strings.ToLower(hostname)
}
