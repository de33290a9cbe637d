// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package audiofanout multiplexes one audio source into up to N
// destinations through OS pipes (spec.md §4.5). One producer (AudioEngine)
// writes; each destination's transport reads from its own pipe.
package audiofanout

import (
	"os"
	"sync"
)

// TargetPipeBytes is the capacity each pipe is sized to hold: roughly 10
// seconds of 16kHz/16-bit mono audio (~320 kB), per spec.md §4.5. Sizing
// is advisory — SetPipeSize failing (unsupported kernel/platform) does not
// fail Open.
const TargetPipeBytes = 320 * 1024

// PipeHandle is one destination's read end of a fanned-out audio pipe.
// Close is idempotent and safe to call from the transport goroutine that
// owns it.
type PipeHandle struct {
	read  *os.File
	write *os.File // kept only so Open can hand the write end to the caller
	once  sync.Once
}

// Read implements io.Reader over the pipe's read end.
func (h *PipeHandle) Read(p []byte) (int, error) { return h.read.Read(p) }

// File returns the underlying read-end *os.File for use in a select/poll
// readiness set.
func (h *PipeHandle) File() *os.File { return h.read }

// Close closes the read end exactly once, satisfying the leak-free
// invariant in spec.md §8.
func (h *PipeHandle) Close() error {
	var err error
	h.once.Do(func() { err = h.read.Close() })
	return err
}

// Fanout owns the pipes created for one source's current session. It is
// not safe for concurrent use — the loop goroutine is its only caller.
type Fanout struct {
	handles []*PipeHandle
}

// Open creates n OS pipes, attempts to size each to TargetPipeBytes, and
// returns the read-side PipeHandles. The caller (the router) hands
// writeEnds[i] to AudioEngine and keeps handles[i] for the destination at
// index i.
func Open(n int) (handles []*PipeHandle, writeEnds []*os.File, err error) {
	handles = make([]*PipeHandle, 0, n)
	writeEnds = make([]*os.File, 0, n)

	for i := 0; i < n; i++ {
		r, w, perr := os.Pipe()
		if perr != nil {
			closeAll(handles, writeEnds)
			return nil, nil, perr
		}
		setPipeSize(r, TargetPipeBytes)
		handles = append(handles, &PipeHandle{read: r, write: w})
		writeEnds = append(writeEnds, w)
	}
	return handles, writeEnds, nil
}

func closeAll(handles []*PipeHandle, writeEnds []*os.File) {
	for _, h := range handles {
		_ = h.Close()
	}
	for _, w := range writeEnds {
		_ = w.Close()
	}
}

// KeywordOffsetTracker fires onCross exactly once when the cumulative
// count of bytes reported via Advance crosses offsetBytes. No transport
// or router code uses it: the router invokes stream_kwd when the audio
// engine publishes EventKeywordDetected, without counting bytes sent.
type KeywordOffsetTracker struct {
	offset  int64
	sent    int64
	fired   bool
	onCross func()
}

// NewKeywordOffsetTracker creates a tracker for the given byte offset.
// onCross is invoked synchronously from Advance the first time the
// offset is crossed.
func NewKeywordOffsetTracker(offsetBytes int64, onCross func()) *KeywordOffsetTracker {
	return &KeywordOffsetTracker{offset: offsetBytes, onCross: onCross}
}

// Advance records that n additional bytes were forwarded to the
// destination's transport.
func (t *KeywordOffsetTracker) Advance(n int) {
	if t.fired || t.onCross == nil {
		t.sent += int64(n)
		return
	}
	t.sent += int64(n)
	if t.sent >= t.offset {
		t.fired = true
		t.onCross()
	}
}

// Fired reports whether the offset has already been crossed.
func (t *KeywordOffsetTracker) Fired() bool { return t.fired }
