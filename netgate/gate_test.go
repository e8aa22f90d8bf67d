package netgate

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingProber returns canned answers in order and records how many
// probes were issued. Once the answers run out it keeps returning the
// last one.
type countingProber struct {
	answers []bool
	calls   int
}

func (p *countingProber) Probe(ctx context.Context) bool {
	idx := p.calls
	p.calls++
	if idx >= len(p.answers) {
		idx = len(p.answers) - 1
	}
	return p.answers[idx]
}

func fastGate(p Prober, maxAttempts int, opts ...GateOption) *Gate {
	policy := RetryPolicy{MaxAttempts: maxAttempts, Delay: time.Millisecond}
	opts = append([]GateOption{WithStabilityWindow(DefaultStabilityProbes, time.Millisecond)}, opts...)
	return NewGate(p, policy, testLogger(), opts...)
}

func TestWaitForStabilityFirstSuccess(t *testing.T) {
	prober := &countingProber{answers: []bool{true}}
	gate := fastGate(prober, 5)

	ok := gate.WaitForStability(context.Background(), false)

	require.True(t, ok)
	// A single successful probe consumes exactly one attempt.
	assert.Equal(t, 1, prober.calls)
}

func TestWaitForStabilityRetriesThenSucceeds(t *testing.T) {
	prober := &countingProber{answers: []bool{false, false, true}}
	gate := fastGate(prober, 5)

	ok := gate.WaitForStability(context.Background(), false)

	require.True(t, ok)
	assert.Equal(t, 3, prober.calls)
}

func TestWaitForStabilityExhaustsRetries(t *testing.T) {
	prober := &countingProber{answers: []bool{false}}
	gate := fastGate(prober, 3)

	ok := gate.WaitForStability(context.Background(), false)

	require.False(t, ok)
	assert.Equal(t, 3, prober.calls)
}

func TestWaitForStabilityStableRequiresConsecutiveProbes(t *testing.T) {
	prober := &countingProber{answers: []bool{true}}
	gate := fastGate(prober, 3)

	ok := gate.WaitForStability(context.Background(), true)

	require.True(t, ok)
	// The triggering success counts as the first of three.
	assert.Equal(t, 3, prober.calls)
}

func TestWaitForStabilityBrokenWindowConsumesOneAttempt(t *testing.T) {
	// Success opens the window, the next probe breaks it, then the
	// second outer attempt succeeds and holds for a full window.
	prober := &countingProber{answers: []bool{true, false, true, true, true}}
	gate := fastGate(prober, 2)

	ok := gate.WaitForStability(context.Background(), true)

	require.True(t, ok)
	assert.Equal(t, 5, prober.calls)
}

func TestWaitForStabilityBrokenWindowThenExhausted(t *testing.T) {
	prober := &countingProber{answers: []bool{true, false, false}}
	gate := fastGate(prober, 2)

	ok := gate.WaitForStability(context.Background(), true)

	assert.False(t, ok)
}

func TestWaitForStabilityContextCancelled(t *testing.T) {
	prober := &countingProber{answers: []bool{false}}
	gate := NewGate(prober, RetryPolicy{MaxAttempts: 100, Delay: time.Minute}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan bool, 1)
	go func() {
		done <- gate.WaitForStability(ctx, false)
	}()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("gate did not honor context cancellation")
	}
}

func TestRetryPolicyMinimumAttempts(t *testing.T) {
	assert.Equal(t, 1, RetryPolicy{MaxAttempts: 0}.attempts())
	assert.Equal(t, 1, RetryPolicy{MaxAttempts: -2}.attempts())
	assert.Equal(t, 4, RetryPolicy{MaxAttempts: 4}.attempts())
}
