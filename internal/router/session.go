// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rapidaai/sessionrouter/internal/audioengine"
	"github.com/rapidaai/sessionrouter/internal/audioengine/memengine"
	"github.com/rapidaai/sessionrouter/internal/callback"
	"github.com/rapidaai/sessionrouter/internal/msgqueue"
	"github.com/rapidaai/sessionrouter/internal/transport"
	"github.com/rapidaai/sessionrouter/internal/types"
)

// destState is everything the loop tracks about one Destination of an
// active session: its transport FSM, the audio engine instance feeding
// it, the buffering deadline (if stream_time_min applies), its index into
// the owning Route's Destinations (for callback.Key lookups, since
// beginSession may skip unsupported-transport destinations and break
// positional alignment with dests), and the connected/disconnected edges
// already reported to the application, so connected/session_end/
// disconnected fire exactly once each.
type destState struct {
	idx       int
	dest      types.Destination
	transport transport.Transport
	engine    audioengine.Engine
	bufferFor time.Duration

	wasConnected    bool
	wasDisconnected bool
}

// session is the loop's bookkeeping for the single active source, per
// spec.md §4.1's "active_source is cleared only when every destination of
// that source reports disconnected" invariant.
type session struct {
	uuid   string
	source types.Source
	dests  []*destState
	began  time.Time
}

func newSession(source types.Source) *session {
	return &session{uuid: uuid.NewString(), source: source, began: timeNow()}
}

// timeNow is a seam over time.Now so tests can stub it if session timing
// assertions are ever needed; production always uses the real clock.
var timeNow = time.Now

// allDisconnected reports whether every destination's transport has wound
// down, the condition that clears GlobalState.active.
func (s *session) allDisconnected() bool {
	for _, d := range s.dests {
		if !d.transport.IsDisconnected() {
			return false
		}
	}
	return true
}

// drainAll calls Drain on every destination transport owned by this
// session, applying any FSM transitions queued since the last loop
// iteration. Audio engine events reach the loop separately, through
// pumpEngineEvents.
func (s *session) drainAll() {
	for _, d := range s.dests {
		d.transport.Drain()
	}
}

// terminateAll begins an orderly shutdown of every destination in the
// session.
func (s *session) terminateAll() {
	for _, d := range s.dests {
		d.transport.Terminate()
	}
}

// beginArgs bridges a KEYWORD_DETECTED/SESSION_BEGIN command's payload
// into the callback.SessionBeginArgs shape, filled in per destination
// index by the caller.
type beginArgs struct {
	Source         types.Source
	DetectorResult *types.KeywordDetectorResult
	UserText       string
	Buffered       bool
}

// beginSession constructs one destState per Destination in route and
// fires each transport's session-begin event, invoking the session_begin
// and stream_begin callbacks as configured in registry. The connected
// callback fires later, from fireLifecycleCallbacks.
func (l *Loop) beginSession(route types.Route, args beginArgs) *session {
	sess := newSession(args.Source)

	for idx, dest := range route.Destinations {
		tr, err := newTransport(l.log, dest, l.state.transportParams(dest))
		if err != nil {
			l.log.Errorw("sessionrouter: skip destination, unsupported transport", "source", args.Source.String(), "index", idx, "err", err)
			continue
		}

		key := callback.Key{Source: args.Source, DstIndex: idx}
		cb := l.state.callbacks.Get(key)
		if cb.SessionBegin != nil {
			_ = cb.SessionBegin(callback.SessionBeginArgs{
				UUID:           sess.uuid,
				Source:         args.Source,
				DstIndex:       idx,
				DetectorResult: args.DetectorResult,
				Timestamp:      timeNow(),
				UserText:       args.UserText,
			})
		}

		buffered := args.Buffered || dest.StreamTimeMin > 0
		tr.Begin(buffered)

		ds := &destState{idx: idx, dest: dest, transport: tr, bufferFor: dest.StreamTimeMin}
		ds.engine = memengine.New(l.log)
		sess.dests = append(sess.dests, ds)

		if dest.StreamTimeMin > 0 {
			dsCopy := ds
			l.wheel.Insert(timeNow().Add(dest.StreamTimeMin), func(any) {
				dsCopy.transport.EndBuffering()
			}, nil)
		}

		if err := ds.engine.BeginStream(context.Background(), audioengine.StreamOptions{Format: dest.AudioFormat}); err != nil {
			l.log.Errorw("sessionrouter: audio engine begin stream failed", "source", args.Source.String(), "index", idx, "err", err)
			continue
		}
		if cb.StreamBegin != nil {
			cb.StreamBegin(callback.StreamBeginArgs{UUID: sess.uuid, Source: args.Source, Timestamp: timeNow()})
		}
		go l.pumpEngineEvents(sess, ds)
	}

	return sess
}

// pumpEngineEvents forwards one destination's audio engine events onto the
// command queue as KindAudioEngineEvent messages until the engine's event
// channel closes (EOS or error). Runs on an engine-owned goroutine — it
// must never touch the transport or invoke a callback directly, since
// those are only safe from the loop goroutine; handleAudioEngineEvent
// (dispatch.go) does the actual work once the message is popped.
func (l *Loop) pumpEngineEvents(sess *session, ds *destState) {
	for ev := range ds.engine.Subscribe() {
		_ = l.Push(msgqueue.Message{
			Kind:    msgqueue.KindAudioEngineEvent,
			Payload: AudioEngineEventPayload{sess: sess, ds: ds, event: ev},
		})
	}
}

// sendFunc wraps a transport's Send as the callback.SendFunc handed to the
// connected callback.
func sendFunc(tr transport.Transport) callback.SendFunc {
	return func(data []byte) error {
		if !tr.Send(data) {
			return fmt.Errorf("sessionrouter: send queue full")
		}
		return nil
	}
}

// fireLifecycleCallbacks detects, per destination, the connected and
// disconnected edges that have newly become true since the last call and
// invokes the matching callbacks exactly once per edge: connected on the
// IsConnected() edge, and session_end followed by disconnected on the
// IsDisconnected() edge — session_end before disconnected per the
// concrete ordering scenario.md §8's S1 records ("session_end(reason=EOS),
// disconnected"), recorded as an Open Question decision in DESIGN.md.
// Must only be called from the loop goroutine.
func (l *Loop) fireLifecycleCallbacks(sess *session) {
	if sess == nil {
		return
	}
	for _, d := range sess.dests {
		cb := l.state.callbacks.Get(callback.Key{Source: sess.source, DstIndex: d.idx})

		if !d.wasConnected && d.transport.IsConnected() {
			d.wasConnected = true
			if cb.Connected != nil {
				cb.Connected(callback.ConnectedArgs{
					UUID:      sess.uuid,
					Send:      sendFunc(d.transport),
					Timestamp: timeNow(),
				})
			}
		}

		if !d.wasDisconnected && d.transport.IsDisconnected() {
			d.wasDisconnected = true
			reason := d.transport.Reason()
			if cb.SessionEnd != nil {
				cb.SessionEnd(callback.SessionEndArgs{
					UUID:      sess.uuid,
					Stats:     types.SessionStats{Reason: reason},
					Timestamp: timeNow(),
				})
			}
			if cb.Disconnected != nil {
				cb.Disconnected(callback.DisconnectedArgs{
					UUID:      sess.uuid,
					Reason:    reason,
					Timestamp: timeNow(),
				})
			}
		}
	}
}

// transportParams resolves the effective TransportParams for a
// destination: the active power-mode profile merged with the
// destination's per-power-mode override, if any.
func (g *GlobalState) transportParams(dest types.Destination) types.TransportParams {
	base := g.profiles[g.powerMode]
	if dest.ParamsOverride != nil {
		if override, ok := dest.ParamsOverride[g.powerMode]; ok {
			return base.Merge(override)
		}
	}
	return base
}
