// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package memengine is a reference audioengine.Engine that takes frames
// handed to Push (typically by a test harness or a local microphone shim)
// instead of real capture hardware, and publishes them on a buffered
// event channel. It exists so
// the router and transports can be exercised end to end without a real
// audio front-end, and to exercise the OPUS encode path via
// gopkg.in/hraban/opus.v2 when AudioFormat is AudioFormatOpus.
package memengine

import (
	"context"
	"sync"
	"sync/atomic"

	"gopkg.in/hraban/opus.v2"

	"github.com/rapidaai/sessionrouter/internal/audioengine"
	"github.com/rapidaai/sessionrouter/internal/commons"
	"github.com/rapidaai/sessionrouter/internal/types"
)

const (
	sampleRate = 16000
	channels   = 1
	frameSize  = 320 // 20ms @ 16kHz
)

// Engine is a reference in-memory audioengine.Engine. The zero value is
// not usable; use New.
type Engine struct {
	log commons.Logger

	mu       sync.Mutex
	events   chan audioengine.Event
	active   bool
	cancel   context.CancelFunc
	encoder  *opus.Encoder
	format   types.AudioFormat
	stats    types.StreamStats
}

// New creates an Engine that logs through log.
func New(log commons.Logger) *Engine {
	return &Engine{log: log}
}

// BeginStream implements audioengine.Engine.
func (e *Engine) BeginStream(ctx context.Context, opts audioengine.StreamOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return audioengine.ErrAlreadyStreaming
	}

	var enc *opus.Encoder
	if opts.Format == types.AudioFormatOpus {
		var err error
		enc, err = opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
		if err != nil {
			return err
		}
	}

	cctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.encoder = enc
	e.format = opts.Format
	e.events = make(chan audioengine.Event, 32)
	e.active = true
	e.stats = types.StreamStats{Protocol: 0}
	events := e.events
	go func() {
		<-cctx.Done()
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.active && e.events == events {
			e.active = false
			e.publishLocked(audioengine.Event{Kind: audioengine.EventEOS})
			close(e.events)
		}
	}()
	if e.log != nil {
		e.log.Debugw("memengine stream begin", "format", opts.Format.String())
	}
	return nil
}

// EndStream implements audioengine.Engine.
func (e *Engine) EndStream() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return audioengine.ErrNotStreaming
	}
	e.active = false
	if e.cancel != nil {
		e.cancel()
	}
	e.publishLocked(audioengine.Event{Kind: audioengine.EventEOS})
	close(e.events)
	return nil
}

// Subscribe implements audioengine.Engine.
func (e *Engine) Subscribe() <-chan audioengine.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events
}

// Stats implements audioengine.Engine.
func (e *Engine) Stats() types.StreamStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Push feeds one frame of raw 16-bit PCM samples into the active stream.
// If the stream format is AudioFormatOpus, Push encodes pcm before
// publishing; otherwise the raw PCM bytes are published unchanged. Push is
// a no-op (returns nil) if no stream is active, matching a capture source
// that silently drops frames after the application has stopped listening.
func (e *Engine) Push(pcm []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return nil
	}

	var frame []byte
	if e.encoder != nil {
		buf := make([]byte, 4000)
		n, err := e.encoder.Encode(pcm, buf)
		if err != nil {
			e.publishLocked(audioengine.Event{Kind: audioengine.EventError, Err: err})
			e.active = false
			if e.cancel != nil {
				e.cancel()
			}
			close(e.events)
			return err
		}
		frame = buf[:n]
	} else {
		frame = pcm16ToBytes(pcm)
	}

	atomic.AddUint32(&e.stats.AudioStats.PacketsProcessed, 1)
	atomic.AddUint32(&e.stats.AudioStats.SamplesProcessed, uint32(len(pcm)))
	e.publishLocked(audioengine.Event{Kind: audioengine.EventFrame, Frame: frame})
	return nil
}

// PushKeyword publishes a keyword-detected event, as a real keyword
// detector would after scanning the capture buffer.
func (e *Engine) PushKeyword(result types.KeywordDetectorResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return
	}
	e.publishLocked(audioengine.Event{Kind: audioengine.EventKeywordDetected, Keyword: result})
}

// publishLocked sends ev on the event channel without blocking forever:
// a full channel means no one is reading, in which case the frame is
// dropped rather than stalling the producer side.
func (e *Engine) publishLocked(ev audioengine.Event) {
	select {
	case e.events <- ev:
	default:
		if e.log != nil {
			e.log.Warnw("memengine dropped event, subscriber too slow", "kind", ev.Kind)
		}
	}
}

func pcm16ToBytes(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}
