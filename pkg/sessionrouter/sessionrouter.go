// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package sessionrouter is the public façade over internal/router: a
// thin, semaphore-based surface any goroutine may call without reaching
// into the loop's internals, per spec.md §4.13.
package sessionrouter

import (
	"context"
	"fmt"
	"time"

	"github.com/rapidaai/sessionrouter/internal/callback"
	"github.com/rapidaai/sessionrouter/internal/commons"
	"github.com/rapidaai/sessionrouter/internal/config"
	"github.com/rapidaai/sessionrouter/internal/msgqueue"
	"github.com/rapidaai/sessionrouter/internal/router"
	"github.com/rapidaai/sessionrouter/internal/types"
)

// Router is the application-facing handle onto a running session router
// loop. Every method enqueues a command and, where a reply or
// confirmation is meaningful, blocks on that command's semaphore.
type Router struct {
	log  commons.Logger
	loop *router.Loop
}

// New builds a Router from application configuration. It does not start
// the loop — call Start for that.
func New(cfg *config.AppConfig, log commons.Logger) (*Router, error) {
	if cfg == nil {
		return nil, fmt.Errorf("sessionrouter: nil AppConfig")
	}
	profiles := map[types.PowerMode]types.TransportParams{
		types.PowerModeFull: profileParams(cfg.PowerModeFull),
		types.PowerModeLow:  profileParams(cfg.PowerModeLow),
	}
	state := router.NewGlobalState(profiles, router.RetriggerIgnoreAndRestartDetector)
	loop := router.NewLoop(log, msgqueue.New(msgqueue.DefaultCapacity), nil, state)
	return &Router{log: log, loop: loop}, nil
}

func profileParams(p config.PowerModeProfile) types.TransportParams {
	return types.TransportParams{
		Debug:                p.Debug,
		ConnectCheckInterval: p.ConnectCheckInterval,
		TimeoutConnect:       p.TimeoutConnect,
		TimeoutInactivity:    p.TimeoutInactivity,
		TimeoutSession:       p.TimeoutSession,
		IPv4Fallback:         p.IPv4Fallback,
		BackoffDelay:         p.BackoffDelay,
	}
}

// Start runs the event loop until ctx is cancelled or Terminate is
// called. It blocks; callers typically run it in its own goroutine (or
// an errgroup, as cmd/sessionrouterd does).
func (r *Router) Start(ctx context.Context) error {
	r.loop.Run(ctx)
	return nil
}

// commandTimeout bounds how long a synchronous call waits for the loop to
// acknowledge a command, guarding against a caller hanging forever if the
// loop has already exited without draining its queue.
const commandTimeout = 5 * time.Second

func (r *Router) call(kind msgqueue.Kind, payload any) (*msgqueue.Semaphore, error) {
	sem := msgqueue.NewSemaphore()
	if err := r.loop.Push(msgqueue.Message{Kind: kind, Payload: payload, Done: sem}); err != nil {
		return nil, fmt.Errorf("sessionrouter: enqueue %s: %w", kind.String(), err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := sem.Wait(ctx); err != nil {
		return nil, fmt.Errorf("sessionrouter: wait for %s: %w", kind.String(), err)
	}
	return sem, nil
}

// UpdateRoute installs or deletes a Source's Route (an empty Destinations
// slice deletes it) and registers its per-destination Callbacks.
func (r *Router) UpdateRoute(route types.Route, callbacks []callback.Callbacks) error {
	for idx, cb := range callbacks {
		if idx >= len(route.Destinations) {
			break
		}
		r.loop.Callbacks().Set(callback.Key{Source: route.Source, DstIndex: idx}, cb)
	}
	_, err := r.call(msgqueue.KindRouteUpdate, router.RouteUpdatePayload{Route: route})
	return err
}

// SetPowerMode switches the active TransportParams profile.
func (r *Router) SetPowerMode(mode types.PowerMode) error {
	_, err := r.call(msgqueue.KindPowerModeUpdate, router.PowerModeUpdatePayload{Mode: mode})
	return err
}

// SetPrivacyMode enables or disables privacy mode.
func (r *Router) SetPrivacyMode(enabled bool) error {
	_, err := r.call(msgqueue.KindPrivacyModeUpdate, router.PrivacyModeUpdatePayload{Enabled: enabled})
	return err
}

// GetPrivacyMode reports whether privacy mode is currently enabled.
func (r *Router) GetPrivacyMode() (bool, error) {
	sem, err := r.call(msgqueue.KindPrivacyModeGet, router.PrivacyModeGetPayload{})
	if err != nil {
		return false, err
	}
	enabled, _ := sem.Result.(bool)
	return enabled, nil
}

// KeywordDetected reports a wake-word detection for source, potentially
// beginning a session.
func (r *Router) KeywordDetected(source types.Source, result types.KeywordDetectorResult) error {
	_, err := r.call(msgqueue.KindKeywordDetected, router.KeywordDetectedPayload{Source: source, Result: result})
	return err
}

// KeywordDetectError reports a keyword detector failure for source.
func (r *Router) KeywordDetectError(source types.Source, cause error) error {
	_, err := r.call(msgqueue.KindKeywordDetectError, router.KeywordDetectErrorPayload{Source: source, Err: cause})
	return err
}

// SessionBegin begins a session directly for a non-wake-word source (e.g.
// push-to-talk), optionally carrying recognized user text.
func (r *Router) SessionBegin(source types.Source, userText string) error {
	_, err := r.call(msgqueue.KindSessionBegin, router.SessionBeginPayload{Source: source, UserText: userText})
	return err
}

// SessionTerminate ends whichever session is currently active. Per
// spec.md §5, the returned error reflects only that the terminate events
// were enqueued, not that every destination has fully disconnected.
func (r *Router) SessionTerminate() error {
	_, err := r.call(msgqueue.KindSessionTerminate, router.SessionTerminatePayload{})
	return err
}

// AudioGranted reports that source has gained microphone access. The loop
// acknowledges it and keeps no per-source access state.
func (r *Router) AudioGranted(source types.Source) error {
	_, err := r.call(msgqueue.KindAudioGranted, router.AudioGrantedPayload{Source: source})
	return err
}

// AudioRevoked reports that source has lost microphone access, which ends
// any session currently active for it.
func (r *Router) AudioRevoked(source types.Source) error {
	_, err := r.call(msgqueue.KindAudioRevoked, router.AudioRevokedPayload{Source: source})
	return err
}

// PushAudio feeds one frame of captured PCM audio for source into the
// active session, if any.
func (r *Router) PushAudio(source types.Source, pcm []int16) error {
	_, err := r.call(msgqueue.KindAudioEvent, router.AudioEventPayload{Source: source, PCM: pcm})
	return err
}

// Terminate stops the event loop entirely; Start returns once it has.
func (r *Router) Terminate() error {
	_, err := r.call(msgqueue.KindTerminate, nil)
	return err
}
