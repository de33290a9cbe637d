// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package router

import (
	"github.com/rapidaai/sessionrouter/internal/audioengine"
	"github.com/rapidaai/sessionrouter/internal/callback"
	"github.com/rapidaai/sessionrouter/internal/msgqueue"
	"github.com/rapidaai/sessionrouter/internal/types"
)

// Command payloads, one per spec.md §4.1 command kind. A Message's
// Payload field holds the matching struct for its Kind.

// RouteUpdatePayload installs or deletes a Source's Route. An empty
// Destinations slice deletes the route entirely (spec.md §7: "dst_qty ==
// 0 in a ROUTE_UPDATE deletes that source's route").
type RouteUpdatePayload struct {
	Route types.Route
}

// KeywordUpdatePayload reconfigures the keyword detector's sensitivity
// for a source; the detector itself runs upstream of the router, so the
// loop only acknowledges this command and stores nothing from it.
type KeywordUpdatePayload struct {
	Source      types.Source
	Sensitivity float32
}

// HostNameUpdatePayload carries a new device hostname. The loop
// acknowledges the command without storing or applying the hostname.
type HostNameUpdatePayload struct {
	HostName string
}

// PowerModeUpdatePayload switches the active TransportParams profile.
type PowerModeUpdatePayload struct {
	Mode types.PowerMode
}

// PrivacyModeUpdatePayload enables or disables privacy mode, which
// suppresses SESSION_BEGIN/KEYWORD_DETECTED while set.
type PrivacyModeUpdatePayload struct {
	Enabled bool
}

// PrivacyModeGetPayload has no fields; the loop writes the current value
// into the command's Semaphore.Result as a bool.
type PrivacyModeGetPayload struct{}

// AudioGrantedPayload reports that a source has gained microphone access.
// The loop acknowledges the command; it keeps no per-source access state.
type AudioGrantedPayload struct {
	Source types.Source
}

// AudioRevokedPayload reports that a source has lost microphone access,
// which aborts any session currently active for it. The loop keeps no
// per-source access state.
type AudioRevokedPayload struct {
	Source types.Source
}

// AudioEventPayload carries one frame of captured audio for the active
// session, if any, to forward into its audio engine instances.
type AudioEventPayload struct {
	Source types.Source
	PCM    []int16
}

// KeywordDetectedPayload reports a successful wake-word detection,
// triggering (or retriggering, per RetriggerPolicy) a session.
type KeywordDetectedPayload struct {
	Source types.Source
	Result types.KeywordDetectorResult
}

// KeywordDetectErrorPayload reports a detector failure for source.
type KeywordDetectErrorPayload struct {
	Source types.Source
	Err    error
}

// SessionBeginPayload begins a session directly (e.g. for a PTT source
// that has no keyword detector in its path).
type SessionBeginPayload struct {
	Source   types.Source
	UserText string
}

// SessionTerminatePayload ends whichever session is currently active.
type SessionTerminatePayload struct{}

// CaptureStartPayload requests raw audio capture for a source outside of
// any session (e.g. diagnostic recording). The loop acknowledges the
// command; it starts no capture.
type CaptureStartPayload struct {
	Source types.Source
}

// CaptureStopPayload requests the end of a capture requested by
// CaptureStartPayload. The loop acknowledges the command; it stops
// nothing.
type CaptureStopPayload struct {
	Source types.Source
}

// ThreadPollPayload carries no data; it exists purely to force a loop
// iteration (tests, periodic external wakeups) without an otherwise
// meaningful command.
type ThreadPollPayload struct{}

// AudioEngineEventPayload carries one audio-engine Event across from the
// engine-owned goroutine that produced it (pumpEngineEvents) to the loop
// goroutine, which alone may touch sess/ds or invoke a callback. Kept
// internal to this package — it is not one of spec.md §4.1's command
// kinds.
type AudioEngineEventPayload struct {
	sess  *session
	ds    *destState
	event audioengine.Event
}

func buildDispatchTable() map[msgqueue.Kind]func(*Loop, msgqueue.Message) {
	return map[msgqueue.Kind]func(*Loop, msgqueue.Message){
		msgqueue.KindTerminate:          (*Loop).handleTerminate,
		msgqueue.KindRouteUpdate:        (*Loop).handleRouteUpdate,
		msgqueue.KindKeywordUpdate:      (*Loop).handleKeywordUpdate,
		msgqueue.KindHostNameUpdate:     (*Loop).handleHostNameUpdate,
		msgqueue.KindPowerModeUpdate:    (*Loop).handlePowerModeUpdate,
		msgqueue.KindPrivacyModeUpdate:  (*Loop).handlePrivacyModeUpdate,
		msgqueue.KindPrivacyModeGet:     (*Loop).handlePrivacyModeGet,
		msgqueue.KindAudioGranted:       (*Loop).handleAudioGranted,
		msgqueue.KindAudioRevoked:       (*Loop).handleAudioRevoked,
		msgqueue.KindAudioEvent:         (*Loop).handleAudioEvent,
		msgqueue.KindKeywordDetected:    (*Loop).handleKeywordDetected,
		msgqueue.KindKeywordDetectError: (*Loop).handleKeywordDetectError,
		msgqueue.KindSessionBegin:       (*Loop).handleSessionBegin,
		msgqueue.KindSessionTerminate:   (*Loop).handleSessionTerminate,
		msgqueue.KindCaptureStart:       (*Loop).handleCaptureStart,
		msgqueue.KindCaptureStop:        (*Loop).handleCaptureStop,
		msgqueue.KindThreadPoll:         (*Loop).handleThreadPoll,
		msgqueue.KindAudioEngineEvent:   (*Loop).handleAudioEngineEvent,
	}
}

func (l *Loop) handleTerminate(msg msgqueue.Message) {
	if l.state.active != nil {
		l.state.active.terminateAll()
	}
	l.running = false
	if msg.Done != nil {
		msg.Done.Signal()
	}
}

func (l *Loop) handleRouteUpdate(msg msgqueue.Message) {
	p, ok := msg.Payload.(RouteUpdatePayload)
	if !ok {
		l.log.Warnw("sessionrouter: ROUTE_UPDATE with wrong payload type")
		return
	}
	if len(p.Route.Destinations) == 0 {
		delete(l.state.routes, p.Route.Source)
		l.log.Infow("sessionrouter: route deleted", "source", p.Route.Source.String())
		return
	}
	l.state.routes[p.Route.Source] = p.Route
	l.log.Infow("sessionrouter: route updated", "source", p.Route.Source.String(), "destinations", len(p.Route.Destinations))
}

func (l *Loop) handleKeywordUpdate(msg msgqueue.Message) {
	if _, ok := msg.Payload.(KeywordUpdatePayload); !ok {
		l.log.Warnw("sessionrouter: KEYWORD_UPDATE with wrong payload type")
		return
	}
	// The detector itself runs upstream of the loop; nothing further to
	// apply here beyond acknowledging the command.
}

func (l *Loop) handleHostNameUpdate(msg msgqueue.Message) {
	if _, ok := msg.Payload.(HostNameUpdatePayload); !ok {
		l.log.Warnw("sessionrouter: HOST_NAME_UPDATE with wrong payload type")
	}
}

func (l *Loop) handlePowerModeUpdate(msg msgqueue.Message) {
	p, ok := msg.Payload.(PowerModeUpdatePayload)
	if !ok {
		l.log.Warnw("sessionrouter: POWER_MODE_UPDATE with wrong payload type")
		return
	}
	l.state.powerMode = p.Mode
	l.log.Infow("sessionrouter: power mode updated", "mode", p.Mode.String())
}

func (l *Loop) handlePrivacyModeUpdate(msg msgqueue.Message) {
	p, ok := msg.Payload.(PrivacyModeUpdatePayload)
	if !ok {
		l.log.Warnw("sessionrouter: PRIVACY_MODE_UPDATE with wrong payload type")
		return
	}
	l.state.privacyMode = p.Enabled
	if p.Enabled && l.state.active != nil {
		l.state.active.terminateAll()
	}
}

func (l *Loop) handlePrivacyModeGet(msg msgqueue.Message) {
	if msg.Done != nil {
		msg.Done.Result = l.state.privacyMode
	}
}

func (l *Loop) handleAudioGranted(msg msgqueue.Message) {
	if _, ok := msg.Payload.(AudioGrantedPayload); !ok {
		l.log.Warnw("sessionrouter: AUDIO_GRANTED with wrong payload type")
	}
}

func (l *Loop) handleAudioRevoked(msg msgqueue.Message) {
	p, ok := msg.Payload.(AudioRevokedPayload)
	if !ok {
		l.log.Warnw("sessionrouter: AUDIO_REVOKED with wrong payload type")
		return
	}
	if l.state.active != nil && l.state.active.source == p.Source {
		l.state.active.terminateAll()
	}
}

func (l *Loop) handleAudioEvent(msg msgqueue.Message) {
	p, ok := msg.Payload.(AudioEventPayload)
	if !ok {
		l.log.Warnw("sessionrouter: AUDIO_EVENT with wrong payload type")
		return
	}
	if l.state.active == nil || l.state.active.source != p.Source {
		return
	}
	for _, d := range l.state.active.dests {
		if pusher, ok := d.engine.(interface{ Push([]int16) error }); ok {
			_ = pusher.Push(p.PCM)
		}
	}
}

// handleKeywordDetected enforces spec.md §4.1's single-active-source
// invariant and the retrigger policy recorded as decision #3 in
// DESIGN.md's Open Question log.
func (l *Loop) handleKeywordDetected(msg msgqueue.Message) {
	p, ok := msg.Payload.(KeywordDetectedPayload)
	if !ok {
		l.log.Warnw("sessionrouter: KEYWORD_DETECTED with wrong payload type")
		return
	}
	if l.state.privacyMode {
		l.log.Infow("sessionrouter: keyword detected while privacy mode active, dropped", "source", p.Source.String())
		return
	}

	if l.state.active != nil {
		if l.state.active.source != p.Source {
			l.log.Infow("sessionrouter: session already active for a different source, rejected", "active", l.state.active.source.String(), "incoming", p.Source.String())
			return
		}
		switch l.state.retrigger {
		case RetriggerAbortAndRestart:
			l.state.active.terminateAll()
			l.state.active.drainAll()
		default: // RetriggerIgnoreAndRestartDetector
			l.log.Infow("sessionrouter: keyword retrigger ignored, detector restarted", "source", p.Source.String())
			return
		}
	}

	route, ok := l.state.routes[p.Source]
	if !ok {
		l.log.Warnw("sessionrouter: keyword detected for source with no route", "source", p.Source.String())
		return
	}
	result := p.Result
	l.state.active = l.beginSession(route, beginArgs{Source: p.Source, DetectorResult: &result})
}

// handleKeywordDetectError reports the detector failure to every
// destination registered for the source, via the source_error callback,
// per spec.md §6.
func (l *Loop) handleKeywordDetectError(msg msgqueue.Message) {
	p, ok := msg.Payload.(KeywordDetectErrorPayload)
	if !ok {
		l.log.Warnw("sessionrouter: KEYWORD_DETECT_ERROR with wrong payload type")
		return
	}
	l.log.Errorw("sessionrouter: keyword detector error", "source", p.Source.String(), "err", p.Err)

	route, ok := l.state.routes[p.Source]
	if !ok {
		return
	}
	for idx := range route.Destinations {
		cb := l.state.callbacks.Get(callback.Key{Source: p.Source, DstIndex: idx})
		if cb.SourceError != nil {
			cb.SourceError(p.Source)
		}
	}
}

// handleAudioEngineEvent applies one audio-engine Event forwarded by
// pumpEngineEvents: pushing frames to the transport, invoking
// StreamKwd/StreamEnd/StreamAudio, passing EOS to the destination's
// transport via AudioEOS and terminating the transport on error. This is
// the only place those three callbacks run, and it only ever runs on the
// loop goroutine, per
// spec.md §4.1/§5's "callbacks invoked only on the loop thread" rule.
//
// p.sess is compared by pointer identity against the currently active
// session so a stale event queued before a session ended (and a new one
// began) is dropped rather than misrouted into the wrong session.
func (l *Loop) handleAudioEngineEvent(msg msgqueue.Message) {
	p, ok := msg.Payload.(AudioEngineEventPayload)
	if !ok {
		l.log.Warnw("sessionrouter: AUDIO_ENGINE_EVENT with wrong payload type")
		return
	}
	if l.state.active != p.sess {
		return
	}

	cb := l.state.callbacks.Get(callback.Key{Source: p.sess.source, DstIndex: p.ds.idx})
	ds := p.ds
	sess := p.sess

	switch p.event.Kind {
	case audioengine.EventFrame:
		ds.transport.Send(p.event.Frame)
		if cb.StreamAudio != nil {
			cb.StreamAudio(p.event.Frame)
		}
	case audioengine.EventKeywordDetected:
		if cb.StreamKwd != nil {
			cb.StreamKwd(callback.StreamKwdArgs{UUID: sess.uuid, Timestamp: timeNow()})
		}
	case audioengine.EventEOS:
		ds.transport.AudioEOS()
		if cb.StreamEnd != nil {
			cb.StreamEnd(callback.StreamEndArgs{UUID: sess.uuid, Reason: types.StreamEndAudioEOF, Stats: ds.engine.Stats(), Timestamp: timeNow()})
		}
	case audioengine.EventError:
		ds.transport.Terminate()
		if cb.StreamEnd != nil {
			cb.StreamEnd(callback.StreamEndArgs{UUID: sess.uuid, Reason: types.StreamEndErrorAudioRead, Stats: ds.engine.Stats(), Timestamp: timeNow()})
		}
	}
}

// handleSessionBegin begins a session directly, without a keyword
// detection result — used by sources whose trigger is not wake-word
// based (e.g. PTT). The invariant and retrigger handling mirror
// handleKeywordDetected.
func (l *Loop) handleSessionBegin(msg msgqueue.Message) {
	p, ok := msg.Payload.(SessionBeginPayload)
	if !ok {
		l.log.Warnw("sessionrouter: SESSION_BEGIN with wrong payload type")
		return
	}
	if l.state.privacyMode {
		return
	}
	if l.state.active != nil {
		if l.state.active.source != p.Source {
			l.log.Infow("sessionrouter: session already active for a different source, rejected", "active", l.state.active.source.String(), "incoming", p.Source.String())
			return
		}
		if l.state.retrigger != RetriggerAbortAndRestart {
			return
		}
		l.state.active.terminateAll()
		l.state.active.drainAll()
	}

	route, ok := l.state.routes[p.Source]
	if !ok {
		l.log.Warnw("sessionrouter: session begin for source with no route", "source", p.Source.String())
		return
	}
	l.state.active = l.beginSession(route, beginArgs{Source: p.Source, UserText: p.UserText})
}

// handleSessionTerminate walks every destination of the active session
// and enqueues its terminate event, then returns — the Done semaphore is
// signalled here (not by the generic handle() wrapper, which skips
// SESSION_TERMINATE) so the caller unblocks once teardown is merely
// underway, matching the observed enqueue-only acknowledgement semantics
// recorded in DESIGN.md's Open Question decisions.
func (l *Loop) handleSessionTerminate(msg msgqueue.Message) {
	if _, ok := msg.Payload.(SessionTerminatePayload); !ok && msg.Payload != nil {
		l.log.Warnw("sessionrouter: SESSION_TERMINATE with wrong payload type")
	}
	if l.state.active != nil {
		l.state.active.terminateAll()
	}
	if msg.Done != nil {
		msg.Done.Signal()
	}
}

func (l *Loop) handleCaptureStart(msg msgqueue.Message) {
	if _, ok := msg.Payload.(CaptureStartPayload); !ok {
		l.log.Warnw("sessionrouter: CAPTURE_START with wrong payload type")
	}
}

func (l *Loop) handleCaptureStop(msg msgqueue.Message) {
	if _, ok := msg.Payload.(CaptureStopPayload); !ok {
		l.log.Warnw("sessionrouter: CAPTURE_STOP with wrong payload type")
	}
}

func (l *Loop) handleThreadPoll(msg msgqueue.Message) {
	// No-op: THREAD_POLL exists only to force a loop iteration.
}
