package netlink

import (
	"net"
	"testing"
	"time"
)

func TestProbeAddr(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "explicit port", url: "http://influx.local:8086", want: "influx.local:8086"},
		{name: "https default", url: "https://influx.example.com", want: "influx.example.com:443"},
		{name: "http default", url: "http://influx.example.com", want: "influx.example.com:80"},
		{name: "no host", url: "http://", wantErr: true},
		{name: "garbage", url: "://nope", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProbeAddr(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ProbeAddr(%q) error = nil, want error", tt.url)
				}
				return
			}
			if err != nil {
				t.Fatalf("ProbeAddr(%q) error = %v", tt.url, err)
			}
			if got != tt.want {
				t.Errorf("ProbeAddr(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestProbeJoinSucceeds(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	p := &Probe{Addr: ln.Addr().String(), Interval: 10 * time.Millisecond}
	if err := p.Join("airmon-test", time.Second); err != nil {
		t.Errorf("Join() error = %v, want nil", err)
	}
}

func TestProbeJoinTimesOut(t *testing.T) {
	// Port 1 on localhost refuses immediately, so the probe keeps retrying
	// until the window closes.
	p := &Probe{Addr: "127.0.0.1:1", Interval: 5 * time.Millisecond}
	if err := p.Join("airmon-test", 30*time.Millisecond); err == nil {
		t.Error("Join() error = nil, want timeout error")
	}
}

func TestDeviceID(t *testing.T) {
	if got := DeviceID("kitchen"); got != "kitchen" {
		t.Errorf("DeviceID(kitchen) = %q", got)
	}
	if got := DeviceID(""); got == "" {
		t.Error("DeviceID(\"\") is empty, want hostname-derived fallback")
	}
}
