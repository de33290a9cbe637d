// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package audioengine defines the contract between the router and whatever
// produces PCM/OPUS audio for a session (spec.md §4.6's "audio source"
// abstraction, generalized from xrsr's tight coupling to a single capture
// backend). A concrete Engine owns capture/codec hardware or software and
// publishes frames as Events; the router runs one Engine per destination
// and hands each EventFrame to that destination's transport.
package audioengine

import (
	"context"
	"errors"

	"github.com/rapidaai/sessionrouter/internal/types"
)

// ErrAlreadyStreaming is returned by BeginStream when a stream is already
// in progress for this Engine.
var ErrAlreadyStreaming = errors.New("audioengine: stream already in progress")

// ErrNotStreaming is returned by EndStream when no stream is in progress.
var ErrNotStreaming = errors.New("audioengine: no stream in progress")

// EventKind identifies the variant carried by an Event.
type EventKind int

const (
	// EventFrame carries a slice of encoded or raw audio samples.
	EventFrame EventKind = iota
	// EventKeywordDetected carries a KeywordDetectorResult.
	EventKeywordDetected
	// EventError carries a terminal error for the current stream.
	EventError
	// EventEOS marks a clean end of stream (no more frames will follow).
	EventEOS
)

// Event is the union type published on an Engine's event channel. Only the
// field matching Kind is populated.
type Event struct {
	Kind    EventKind
	Frame   []byte
	Keyword types.KeywordDetectorResult
	Err     error
}

// StreamOptions configures one BeginStream call.
type StreamOptions struct {
	Format        types.AudioFormat
	KeywordNeeded bool // whether the engine should run keyword detection inline
}

// Engine is the audio-source abstraction. Implementations must be safe for
// BeginStream/EndStream/Subscribe to be called from the router's single
// loop goroutine; Events may be delivered from a different, engine-owned
// goroutine.
type Engine interface {
	// BeginStream starts producing audio for a new session. ctx bounds the
	// stream's lifetime; cancelling ctx is equivalent to calling EndStream.
	BeginStream(ctx context.Context, opts StreamOptions) error

	// EndStream stops producing audio for the current session. It is
	// idempotent: calling it when no stream is active returns
	// ErrNotStreaming rather than panicking.
	EndStream() error

	// Subscribe returns the channel Events are published on. The channel
	// is closed after an EventEOS or EventError is delivered, or when
	// EndStream completes.
	Subscribe() <-chan Event

	// Stats reports cumulative counters for the active (or most recently
	// ended) stream.
	Stats() types.StreamStats
}
