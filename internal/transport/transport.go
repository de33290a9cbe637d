// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package transport defines the common contract every protocol-specific
// transport (ws, http, sdt) implements, per spec.md §9's "tagged variants
// over inheritance" design note: the three transport states share
// {fd_interest, on_fd_ready, send, terminate, is_connected,
// is_disconnected}, modeled here as a Go interface rather than a base
// class.
package transport

import (
	"context"
	"time"

	"github.com/rapidaai/sessionrouter/internal/types"
)

// Interest describes what a Transport wants the loop to wait on in its
// next select iteration, the Go-native rendering of the C original's
// fd_interest() (POLLIN/POLLOUT bitmask).
type Interest struct {
	// Ready, if non-nil, is a channel the loop selects on alongside the
	// command queue and timer wheel. Implementations close or send on it
	// to signal that FDReady should be called.
	Ready <-chan struct{}
}

// Transport is the behavior every protocol FSM exposes to the router.
// Implementations are driven entirely from the loop goroutine; none of
// their exported methods may block on network I/O.
type Transport interface {
	// Begin fires the transport's session-begin event, starting the
	// connect sequence. buffered selects the SESSION_BEGIN_STM variant
	// (enter Buffering first) used when a destination's stream_time_min
	// has not yet elapsed. Returns false only if the FSM's event queue is
	// full; outside Disconnected the event is queued and then ignored as
	// unhandled.
	Begin(buffered bool) bool

	// Drain applies every FSM event queued by Fire/Begin/Terminate since
	// the last Drain, running each transition's side effect. The router
	// calls this once per loop iteration for every destination with
	// loop-visible activity.
	Drain()

	// Interest reports what the loop should wait on for this transport.
	Interest() Interest

	// FDReady is called once the loop observes the transport's Interest
	// channel ready; it drives the FSM forward (completing a handshake,
	// finishing a read, etc.) without blocking.
	FDReady(ctx context.Context)

	// Send enqueues an outbound message (text or binary, per
	// implementation). Returns false if the outbound queue is full.
	Send(data []byte) bool

	// Terminate begins an orderly shutdown of the transport's connection.
	// It is always safe to call more than once.
	Terminate()

	// IsConnected reports whether the transport currently has a live,
	// application-usable connection (Connected/Established/Streaming or
	// protocol-equivalent states).
	IsConnected() bool

	// IsDisconnected reports whether the transport has fully wound down
	// (Disconnected state) and holds no live resources.
	IsDisconnected() bool

	// EndBuffering fires the event that ends a buffered session's minimum
	// stream-time hold (SESSION_BEGIN_STM's Buffering state), letting the
	// connect sequence proceed. Outside Buffering the event is queued and
	// then ignored as unhandled; the return value is false only if the
	// FSM's event queue is full.
	EndBuffering() bool

	// AudioEOS reports end-of-stream from the audio engine, firing
	// whichever FSM event is reachable from the transport's current
	// state: the pre-stream EOS transition while still Buffering, or the
	// mid-stream EOS-pipe transition once Streaming.
	AudioEOS() bool

	// Reason reports the SessionEndReason last recorded by a transition
	// into a terminal or error-bearing state. Valid once IsDisconnected
	// returns true; undefined before that.
	Reason() types.SessionEndReason
}

// ConnectBackoff computes the delay before the next connect attempt, per
// spec.md §4.4: delay = backoffDelay * rand(0, 2^attempt), capped to the
// remaining session budget. rnd must return a value in [0, 1); callers
// pass math/rand's Float64 in production and a deterministic stub in
// tests.
func ConnectBackoff(backoffDelay time.Duration, attempt int, remaining time.Duration, rnd func() float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Cap the exponent so 1<<attempt cannot overflow a float64 mantissa
	// in any realistic retry sequence.
	if attempt > 30 {
		attempt = 30
	}
	maxMultiplier := float64(uint64(1) << uint(attempt))
	delay := time.Duration(float64(backoffDelay) * rnd() * maxMultiplier)
	if delay > remaining {
		return remaining
	}
	if delay < 0 {
		return 0
	}
	return delay
}
