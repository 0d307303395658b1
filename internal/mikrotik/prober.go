package mikrotik

import (
	"context"
	"fmt"
	"net"
	"time"

	pinglib "github.com/go-ping/ping"
	"go.uber.org/zap"
)

// Prober classifies a device as reachable or not. Implementations never
// return an error: every network failure or timeout maps to false.
type Prober interface {
	Probe(ctx context.Context, ip string, timeout time.Duration) bool
}

// PingProber sends a single echo request in unprivileged mode and falls
// back to TCP dialing a short port list when ICMP is unavailable on the
// host (same discipline the schedulers use for latency checks).
type PingProber struct {
	// FallbackPorts tried in order when the echo probe fails.
	FallbackPorts []int
}

func NewPingProber() *PingProber {
	return &PingProber{FallbackPorts: []int{8728, 80, 443, 22}}
}

func (p *PingProber) Probe(ctx context.Context, ip string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	pinger, err := pinglib.NewPinger(ip)
	if err != nil {
		zap.L().Debug("probe: invalid target", zap.String("ip", ip), zap.Error(err))
		return false
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	// Unprivileged mode so the process can run without root when the
	// platform supports UDP ping sockets.
	pinger.SetPrivileged(false)

	if err := pinger.Run(); err == nil {
		if pinger.Statistics().PacketsRecv > 0 {
			return true
		}
	} else {
		zap.L().Debug("probe: echo failed, trying tcp fallback", zap.String("ip", ip), zap.Error(err))
	}

	for _, port := range p.FallbackPorts {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", ip, port), timeout)
		if err == nil {
			conn.Close()
			return true
		}
	}

	return false
}
