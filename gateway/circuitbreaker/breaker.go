// Copyright 2025 XynergyOS
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"xynergyos/platform/shared/types"
)

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed allows calls through normally.
	StateClosed State = iota
	// StateOpen rejects calls immediately without invoking the target.
	StateOpen
	// StateHalfOpen allows exactly one trial call through.
	StateHalfOpen
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config contains circuit breaker configuration, fixed per target at construction.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before a trial call is allowed.
	RecoveryTimeout time.Duration

	// CallTimeout is the hard deadline applied to every guarded call.
	// Exceeding it counts as a failure.
	CallTimeout time.Duration
}

// DefaultConfig returns the default breaker configuration for generic service calls.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		CallTimeout:      30 * time.Second,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = d.RecoveryTimeout
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	return c
}

var breakerTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "xynergy_gateway_breaker_transitions_total",
		Help: "Total circuit breaker state transitions",
	},
	[]string{"target", "to"},
)

var breakerMetricsOnce sync.Once

func registerBreakerMetrics() {
	breakerMetricsOnce.Do(func() {
		_ = prometheus.Register(breakerTransitions)
	})
}

// Breaker guards calls to a single target. One breaker exists per routing
// target (backend service name or AI provider id); failures on one target
// never affect another target's breaker.
//
// All state transitions are serialized by an internal mutex so concurrent
// failures cannot double-count or race past the threshold.
type Breaker struct {
	target string
	config Config

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	probing             bool // a half-open trial call is in flight
}

// New creates a breaker for the given target. Zero config fields take defaults.
func New(target string, config Config) *Breaker {
	registerBreakerMetrics()
	return &Breaker{
		target: target,
		config: config.withDefaults(),
		state:  StateClosed,
	}
}

// Target returns the routing target this breaker guards.
func (b *Breaker) Target() string {
	return b.target
}

// allow decides whether a call may proceed right now. The second return
// value is true when the caller holds the single half-open trial slot.
func (b *Breaker) allow(now time.Time) (proceed, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true, false
	case StateOpen:
		if now.Sub(b.openedAt) >= b.config.RecoveryTimeout {
			b.transition(StateHalfOpen)
			b.probing = true
			return true, true
		}
		return false, false
	case StateHalfOpen:
		// A trial is already in flight; everyone else fails fast to avoid
		// a thundering herd against a possibly-still-failing target.
		if b.probing {
			return false, false
		}
		b.probing = true
		return true, true
	}
	return false, false
}

// recordSuccess resets the breaker to closed.
func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.probing = false
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// recordFailure counts a failure and opens the circuit when warranted.
func (b *Breaker) recordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false

	if b.state == StateHalfOpen {
		// Failed trial: back to open, timer restarts.
		b.openedAt = now
		b.transition(StateOpen)
		return
	}

	b.consecutiveFailures++
	if b.state == StateClosed && b.consecutiveFailures >= b.config.FailureThreshold {
		b.openedAt = now
		b.transition(StateOpen)
	}
}

// transition flips state and records the transition metric. Caller holds b.mu.
func (b *Breaker) transition(to State) {
	b.state = to
	breakerTransitions.WithLabelValues(b.target, to.String()).Inc()
}

// CurrentState returns the breaker state as of now, applying open-to-half-open
// eligibility without consuming the trial slot.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker back to closed. Admin use only.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.probing = false
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// Snapshot is a point-in-time view of a breaker for status endpoints.
type Snapshot struct {
	Target              string    `json:"target"`
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	OpenedAt            time.Time `json:"opened_at,omitempty"`
	FailureThreshold    int       `json:"failure_threshold"`
	RecoveryTimeoutMs   int64     `json:"recovery_timeout_ms"`
}

// Snapshot returns the breaker's current state for observability.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{
		Target:              b.target,
		State:               b.state.String(),
		ConsecutiveFailures: b.consecutiveFailures,
		FailureThreshold:    b.config.FailureThreshold,
		RecoveryTimeoutMs:   b.config.RecoveryTimeout.Milliseconds(),
	}
	if b.state != StateClosed {
		s.OpenedAt = b.openedAt
	}
	return s
}

// Do executes fn under the breaker with the configured call timeout.
//
// When the circuit is open (or a half-open trial is already in flight), fn is
// never invoked and a CIRCUIT_OPEN error is returned immediately. A call that
// exceeds CallTimeout is counted as a failure and surfaced as UPSTREAM_TIMEOUT.
// Any other error from fn is counted and returned unchanged; callers decide
// how to normalize or fall back.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	proceed, _ := b.allow(time.Now())
	if !proceed {
		return zero, types.NewError(types.ErrCodeCircuitOpen,
			fmt.Sprintf("circuit open for target %q", b.target))
	}

	callCtx, cancel := context.WithTimeout(ctx, b.config.CallTimeout)
	defer cancel()

	result, err := fn(callCtx)
	if err != nil {
		b.recordFailure(time.Now())
		if errors.Is(err, context.DeadlineExceeded) {
			return zero, types.WrapError(types.ErrCodeUpstreamTimeout,
				fmt.Sprintf("call to %q exceeded %s deadline", b.target, b.config.CallTimeout), err)
		}
		return zero, err
	}

	b.recordSuccess()
	return result, nil
}
