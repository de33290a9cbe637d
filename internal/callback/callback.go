// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package callback holds the application-facing lifecycle hooks invoked
// by the router, per spec.md §6, and the Registry that associates a
// Callbacks bundle with a (Source, destination index) pair without
// internal/types needing to know about them.
package callback

import (
	"fmt"
	"sync"
	"time"

	"github.com/rapidaai/sessionrouter/internal/types"
)

// Callbacks bundles the application-facing lifecycle hooks for one
// Destination, per spec.md §6. Unset fields are simply not invoked.
// Every field is invoked synchronously from the loop goroutine only,
// never concurrently with another callback on the same Destination —
// the Go rendering of spec.md §9's "callbacks execute on the loop
// thread".
type Callbacks struct {
	SessionBegin func(SessionBeginArgs) SessionBeginConfig
	SessionEnd   func(SessionEndArgs)
	StreamBegin  func(StreamBeginArgs)
	StreamKwd    func(StreamKwdArgs)
	StreamEnd    func(StreamEndArgs)
	Connected    func(ConnectedArgs)
	Disconnected func(DisconnectedArgs)
	RecvMsg      func(RecvMsgArgs) bool
	SourceError  func(types.Source)
	StreamAudio  func(data []byte)
}

// SessionBeginArgs is passed to the session_begin callback.
type SessionBeginArgs struct {
	UUID           string
	Source         types.Source
	DstIndex       int
	DetectorResult *types.KeywordDetectorResult
	Timestamp      time.Time
	UserText       string
}

// SessionBeginConfig is the configuration the application may return from
// session_begin, carrying auth and query parameters. The router invokes
// session_begin but discards the returned value: it is not applied to the
// destination's transport or URL.
type SessionBeginConfig struct {
	AuthToken string
	QueryArgs []string
}

// SessionEndArgs is passed to the session_end callback.
type SessionEndArgs struct {
	UUID      string
	Stats     types.SessionStats
	Timestamp time.Time
}

// StreamBeginArgs is passed to the stream_begin callback.
type StreamBeginArgs struct {
	UUID      string
	Source    types.Source
	Timestamp time.Time
}

// StreamKwdArgs is passed to the stream_kwd callback.
type StreamKwdArgs struct {
	UUID      string
	Timestamp time.Time
}

// StreamEndArgs is passed to the stream_end callback.
type StreamEndArgs struct {
	UUID      string
	Reason    types.StreamEndReason
	Stats     types.StreamStats
	Timestamp time.Time
}

// SendFunc is the handle passed to the connected callback allowing the
// application to push outbound text messages from any goroutine.
type SendFunc func(data []byte) error

// ConnectedArgs is passed to the connected callback.
type ConnectedArgs struct {
	UUID        string
	Send        SendFunc
	Passthrough any
	Timestamp   time.Time
}

// DisconnectedArgs is passed to the disconnected callback.
type DisconnectedArgs struct {
	UUID         string
	Reason       types.SessionEndReason
	Retry        bool
	ResumeDetect bool
	Timestamp    time.Time
}

// RecvMsgArgs is passed to the recv_msg callback. The callback returns
// true to request the session be closed.
type RecvMsgArgs struct {
	Type types.RecvMsgType
	Data []byte
}

// Key identifies one Destination's callback bundle within a Registry.
type Key struct {
	Source   types.Source
	DstIndex int
}

// Registry associates a Callbacks bundle with each (Source, destination
// index) pair, kept separate from internal/types.Destination so the
// data-model package carries no function-valued fields. Safe for
// concurrent Set/Get; the router reads it only from the loop goroutine.
type Registry struct {
	mu    sync.RWMutex
	table map[Key]Callbacks
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{table: make(map[Key]Callbacks)}
}

// Set installs (or replaces) the Callbacks bundle for key.
func (r *Registry) Set(key Key, cb Callbacks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[key] = cb
}

// Get returns the Callbacks bundle for key, or the zero value (no
// callbacks set) if none was registered.
func (r *Registry) Get(key Key) Callbacks {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.table[key]
}

// Delete removes key's Callbacks bundle, e.g. when a route is torn down.
func (r *Registry) Delete(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.table, key)
}

// String renders a Key for logging.
func (k Key) String() string {
	return fmt.Sprintf("%s[%d]", k.Source.String(), k.DstIndex)
}
