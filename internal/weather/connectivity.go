package weather

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

// StaticConnectivity always reports the same answer
type StaticConnectivity bool

func (c StaticConnectivity) Online(_ context.Context) bool {
	return bool(c)
}

// DialConnectivity considers the network available when a TCP connection to
// Address can be established within Timeout
type DialConnectivity struct {
	Address string
	Timeout time.Duration
}

func NewDialConnectivity(address string, timeout time.Duration) *DialConnectivity {
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	return &DialConnectivity{
		Address: address,
		Timeout: timeout,
	}
}

func (d *DialConnectivity) Online(ctx context.Context) bool {
	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		log.Debug().Err(err).Str("address", d.Address).Msg("Connectivity probe failed")
		return false
	}
	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Msg("Error closing connectivity probe")
	}
	return true
}
