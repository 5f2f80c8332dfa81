package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// PingChecker adapts a HealthPinger into a HealthChecker by pinging it
// on an interval with a bounded per-ping timeout.
type PingChecker struct {
	name        string
	pinger      HealthPinger
	pingTimeout time.Duration
	healthy     atomic.Int32
	log         zerolog.Logger
}

func NewPingChecker(log zerolog.Logger, name string, pinger HealthPinger, pingTimeout time.Duration) *PingChecker {
	return &PingChecker{
		name:        name,
		pinger:      pinger,
		pingTimeout: pingTimeout,
		log:         log.With().Str("component", name).Logger(),
	}
}

func (p *PingChecker) Name() string { return p.name }

func (p *PingChecker) IsHealthy() bool { return p.healthy.Load() == 1 }

// Start pings until ctx is canceled, flipping the cached flag on
// transitions.
func (p *PingChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check := func() {
		pctx, cancel := context.WithTimeout(ctx, p.pingTimeout)
		defer cancel()
		err := p.pinger.HealthPing(pctx)
		was := p.healthy.Load()
		if err != nil {
			p.healthy.Store(0)
			if was == 1 {
				p.log.Error().Err(err).Msg("dependency health: DOWN")
			}
			return
		}
		p.healthy.Store(1)
		if was == 0 {
			p.log.Info().Msg("dependency health: UP")
		}
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
