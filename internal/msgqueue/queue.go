// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package msgqueue is the bounded, thread-safe command channel into the
// event loop. Any number of producer goroutines may Push; only the loop
// goroutine calls Pop. Mirrors xrsr_msgq.c's fixed-capacity, fail-fast
// semantics (max_msg = 16).
package msgqueue

import (
	"context"
	"errors"
)

// DefaultCapacity is the default number of in-flight messages a Queue will
// hold before Push starts failing, matching xr_mq_attr_t{.max_msg = 16}.
const DefaultCapacity = 16

// ErrFull is returned by Push when the queue has no free slot.
var ErrFull = errors.New("msgqueue: queue is full")

// ErrClosed is returned by Push once the queue has been closed.
var ErrClosed = errors.New("msgqueue: queue is closed")

// Kind identifies the command carried by a Message. The first 17 values
// correspond 1:1 with spec.md §4.1's command kinds; KindAudioEngineEvent
// is an 18th, loop-internal kind with no spec.md counterpart, used to
// route audio-engine callbacks back onto the loop goroutine (see
// DESIGN.md).
type Kind int

const (
	KindTerminate Kind = iota
	KindRouteUpdate
	KindKeywordUpdate
	KindHostNameUpdate
	KindPowerModeUpdate
	KindPrivacyModeUpdate
	KindPrivacyModeGet
	KindAudioGranted
	KindAudioRevoked
	KindAudioEvent
	KindKeywordDetected
	KindKeywordDetectError
	KindSessionBegin
	KindSessionTerminate
	KindCaptureStart
	KindCaptureStop
	KindThreadPoll
	KindAudioEngineEvent
)

func (k Kind) String() string {
	names := [...]string{
		"TERMINATE", "ROUTE_UPDATE", "KEYWORD_UPDATE", "HOST_NAME_UPDATE",
		"POWER_MODE_UPDATE", "PRIVACY_MODE_UPDATE", "PRIVACY_MODE_GET",
		"AUDIO_GRANTED", "AUDIO_REVOKED", "AUDIO_EVENT", "KEYWORD_DETECTED",
		"KEYWORD_DETECT_ERROR", "SESSION_BEGIN", "SESSION_TERMINATE",
		"CAPTURE_START", "CAPTURE_STOP", "THREAD_POLL", "AUDIO_ENGINE_EVENT",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "UNKNOWN"
	}
	return names[k]
}

// Semaphore provides synchronous call semantics: a sender that requires a
// reply allocates one, pushes a Message carrying it, and blocks on Wait.
// The loop calls Signal once the command's effects are visible. Signal is
// idempotent — callers never block on a Semaphore nobody will reach.
type Semaphore struct {
	ch     chan struct{}
	Result any   // set by the loop before Signal, read by the caller after Wait
	Err    error // set by the loop before Signal on failure
}

// NewSemaphore allocates a ready-to-use Semaphore.
func NewSemaphore() *Semaphore {
	return &Semaphore{ch: make(chan struct{}, 1)}
}

// Signal is a non-blocking, idempotent wakeup of any Wait call.
func (s *Semaphore) Signal() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until Signal is called or ctx is cancelled.
func (s *Semaphore) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Message is one bounded command entry. Payload holds the kind-specific
// struct; Done, if non-nil, is signalled once the command has taken
// effect (or, for SESSION_TERMINATE, once it has been enqueued — see
// spec.md §5).
type Message struct {
	Kind    Kind
	Payload any
	Done    *Semaphore
}

// Queue is the bounded command channel. The zero value is not usable; use
// New.
type Queue struct {
	ch     chan Message
	closed chan struct{}
}

// New creates a Queue with the given capacity. A capacity of 0 uses
// DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan Message, capacity), closed: make(chan struct{})}
}

// Push enqueues msg without blocking. It fails with ErrFull if the queue
// has no free slot, or ErrClosed once Close has been called — a message is
// never silently dropped.
func (q *Queue) Push(msg Message) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrFull
	}
}

// Pop blocks until a message is available or ctx is cancelled. Only the
// loop goroutine calls Pop.
func (q *Queue) Pop(ctx context.Context) (Message, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// C exposes the underlying channel for use directly in a select statement
// alongside socket and pipe readiness, per spec.md §4.1 step 1.
func (q *Queue) C() <-chan Message { return q.ch }

// Close marks the queue closed; further Push calls fail with ErrClosed.
// Close does not drain or close the underlying channel, so a concurrent
// Pop racing a final Push is never lost.
func (q *Queue) Close() {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}
