package netgate

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultStabilityProbes is the number of consecutive successful
	// probes required when stability is requested.
	DefaultStabilityProbes = 3

	// DefaultStabilityInterval is the pause between probes inside the
	// stability window.
	DefaultStabilityInterval = 2 * time.Second
)

// RetryPolicy describes a bounded fixed-delay retry loop. The same value
// drives the gate's outer loop and any task-level retry needs, so retry
// behavior is defined in exactly one place.
type RetryPolicy struct {
	// MaxAttempts is the total number of probe attempts. Values below 1
	// are treated as 1.
	MaxAttempts int

	// Delay is the fixed pause between attempts.
	Delay time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Gate repeats a connectivity probe until the network is ready or the
// retry budget is exhausted. WaitForStability is a designed suspension
// point: callers expect it to block for up to
// MaxAttempts*Delay plus the stability-window time.
type Gate struct {
	prober            Prober
	policy            RetryPolicy
	stabilityProbes   int
	stabilityInterval time.Duration
	logger            *slog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithStabilityWindow overrides the consecutive-success count and the
// interval between stability probes.
func WithStabilityWindow(probes int, interval time.Duration) GateOption {
	return func(g *Gate) {
		if probes > 0 {
			g.stabilityProbes = probes
		}
		if interval > 0 {
			g.stabilityInterval = interval
		}
	}
}

// NewGate creates a Gate around the given prober and retry policy.
func NewGate(prober Prober, policy RetryPolicy, logger *slog.Logger, opts ...GateOption) *Gate {
	g := &Gate{
		prober:            prober,
		policy:            policy,
		stabilityProbes:   DefaultStabilityProbes,
		stabilityInterval: DefaultStabilityInterval,
		logger:            logger.With("component", "netgate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WaitForStability blocks until the network is considered ready.
//
// Each outer attempt issues one probe. On success with requireStable
// false the gate opens immediately. With requireStable true, the
// success starts a stability window: the gate requires stabilityProbes
// consecutive successes (the triggering one included) spaced by
// stabilityInterval. A failure inside the window abandons it and falls
// back to the outer loop, consuming exactly the one attempt that opened
// the window. Returns false once all attempts are spent or ctx is done.
func (g *Gate) WaitForStability(ctx context.Context, requireStable bool) bool {
	attempts := g.policy.attempts()

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if !sleep(ctx, g.policy.Delay) {
				g.logger.Warn("network wait cancelled", "attempt", attempt)
				return false
			}
		}

		if !g.prober.Probe(ctx) {
			g.logger.Debug("connectivity probe failed", "attempt", attempt, "max_attempts", attempts)
			continue
		}

		if !requireStable {
			g.logger.Debug("network reachable", "attempt", attempt)
			return true
		}

		if g.waitStableWindow(ctx) {
			g.logger.Debug("network stable", "attempt", attempt, "consecutive_probes", g.stabilityProbes)
			return true
		}
		g.logger.Debug("stability window broken, retrying", "attempt", attempt)
	}

	g.logger.Warn("network not reachable after retries", "attempts", attempts, "delay", g.policy.Delay)
	return false
}

// waitStableWindow runs the remainder of the stability window after an
// initial successful probe. It returns false as soon as one probe fails.
func (g *Gate) waitStableWindow(ctx context.Context) bool {
	for i := 1; i < g.stabilityProbes; i++ {
		if !sleep(ctx, g.stabilityInterval) {
			return false
		}
		if !g.prober.Probe(ctx) {
			return false
		}
	}
	return true
}

// sleep pauses for d, returning false if ctx is cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
