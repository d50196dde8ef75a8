// Package retention reaps reasoning sessions that have sat idle longer
// than the configured TTL. Chains live only as long as their session;
// nothing is archived.
//
// The janitor runs as a background goroutine and respects context
// cancellation for graceful shutdown.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fastertools/ftl-tool-think/internal/telemetry"
)

// DefaultIdleTTL is the idle lifetime of a session when none is configured.
const DefaultIdleTTL = 30 * time.Minute

// MinInterval is the shortest sweep interval the janitor accepts.
const MinInterval = time.Second

// Purger removes sessions idle since before cutoff and returns their ids.
type Purger interface {
	PurgeIdle(ctx context.Context, cutoff time.Time) []string
}

// Janitor periodically purges idle sessions.
type Janitor struct {
	sessions Purger
	interval time.Duration
	idleTTL  time.Duration
	now      func() time.Time
}

// NewJanitor creates a janitor that sweeps every interval and reaps
// sessions idle longer than idleTTL.
func NewJanitor(p Purger, interval, idleTTL time.Duration) *Janitor {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if interval < MinInterval {
		interval = idleTTL / 2
	}
	if interval < MinInterval {
		interval = MinInterval
	}
	return &Janitor{
		sessions: p,
		interval: interval,
		idleTTL:  idleTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the janitor's time source.
func (j *Janitor) WithClock(now func() time.Time) *Janitor {
	j.now = now
	return j
}

// Interval returns the sweep interval.
func (j *Janitor) Interval() time.Duration {
	return j.interval
}

// Start runs the janitor until ctx is canceled.
func (j *Janitor) Start(ctx context.Context) {
	log.Info().
		Dur("interval", j.interval).
		Dur("idle_ttl", j.idleTTL).
		Msg("Session janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Session janitor stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep and returns the reaped session ids.
func (j *Janitor) RunOnce(ctx context.Context) []string {
	start := time.Now()
	reaped := j.sessions.PurgeIdle(ctx, j.now().Add(-j.idleTTL))
	if len(reaped) == 0 {
		return nil
	}

	telemetry.SessionsReaped.Add(float64(len(reaped)))
	log.Info().
		Int("reaped", len(reaped)).
		Strs("sessions", reaped).
		Dur("elapsed", time.Since(start)).
		Msg("Idle sessions reaped")
	return reaped
}
