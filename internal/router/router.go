// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package router implements the session router's event loop: the single
// goroutine that owns every destination's transport FSM, the command
// queue, and the timer wheel, per spec.md §4.1's main algorithm.
package router

import (
	"context"
	"reflect"
	"time"

	"github.com/rapidaai/sessionrouter/internal/callback"
	"github.com/rapidaai/sessionrouter/internal/commons"
	"github.com/rapidaai/sessionrouter/internal/msgqueue"
	"github.com/rapidaai/sessionrouter/internal/timerwheel"
	"github.com/rapidaai/sessionrouter/internal/types"
)

// RetriggerPolicy governs what happens when a SESSION_BEGIN (or
// KEYWORD_DETECTED) arrives for the source that already has an active
// session, per spec.md §9's first open question.
type RetriggerPolicy int

const (
	// RetriggerIgnoreAndRestartDetector drops the new trigger and simply
	// restarts the keyword detector; the active session is untouched.
	// This is the default — it matches the scenario spec.md §8 records
	// ("the second detection to be dropped with the keyword detector
	// restarted; no second session_begin").
	RetriggerIgnoreAndRestartDetector RetriggerPolicy = iota
	// RetriggerAbortAndRestart tears down the active session and begins
	// a fresh one from the new trigger.
	RetriggerAbortAndRestart
)

// GlobalState is the router's single-goroutine-owned state: active
// routes, callbacks, and the power/privacy mode knobs that affect every
// destination's TransportParams. Every field is read and written only
// from the loop goroutine.
type GlobalState struct {
	routes      map[types.Source]types.Route
	callbacks   *callback.Registry
	profiles    map[types.PowerMode]types.TransportParams
	powerMode   types.PowerMode
	privacyMode bool
	retrigger   RetriggerPolicy

	active *session // nil when no source currently has a session
}

// NewGlobalState creates a GlobalState with the given per-power-mode
// transport profiles (typically AppConfig.PowerModeFull/.PowerModeLow from
// internal/config) and an empty route table.
func NewGlobalState(profiles map[types.PowerMode]types.TransportParams, retrigger RetriggerPolicy) *GlobalState {
	return &GlobalState{
		routes:    make(map[types.Source]types.Route),
		callbacks: callback.NewRegistry(),
		profiles:  profiles,
		powerMode: types.PowerModeFull,
		retrigger: retrigger,
	}
}

// Loop is the session router's event loop. Construct with NewLoop and run
// with Run; Run blocks until TERMINATE is processed or ctx is cancelled.
type Loop struct {
	log   commons.Logger
	queue *msgqueue.Queue
	wheel *timerwheel.Wheel
	state *GlobalState

	dispatch map[msgqueue.Kind]func(*Loop, msgqueue.Message)
	running  bool
}

// NewLoop creates a Loop. queue and wheel are typically dedicated to one
// Loop instance; passing nil for either constructs a default.
func NewLoop(log commons.Logger, queue *msgqueue.Queue, wheel *timerwheel.Wheel, state *GlobalState) *Loop {
	if queue == nil {
		queue = msgqueue.New(msgqueue.DefaultCapacity)
	}
	if wheel == nil {
		wheel = timerwheel.New()
	}
	l := &Loop{log: log, queue: queue, wheel: wheel, state: state}
	l.dispatch = buildDispatchTable()
	return l
}

// Push enqueues a command. It is the only thread-safe entry point into
// the loop from other goroutines, mirroring spec.md §4.1's "enqueue-only
// interface visible to other threads".
func (l *Loop) Push(msg msgqueue.Message) error {
	return l.queue.Push(msg)
}

// Callbacks exposes the loop's callback registry so the application
// facade (pkg/sessionrouter) can register per-destination Callbacks
// before a ROUTE_UPDATE takes effect. Safe for concurrent use: Registry
// guards its own map with a mutex.
func (l *Loop) Callbacks() *callback.Registry {
	return l.state.callbacks
}

// Run executes the main algorithm of spec.md §4.1 until TERMINATE is
// processed or ctx is cancelled. Readiness is modeled as a dynamic
// reflect.Select fan-in over the command queue, the timer wheel's next
// deadline, ctx.Done, and every active destination's transport.Interest
// channel — the Go-native rendering of the reference implementation's
// poll() readiness set, since the set of watched fds changes every time a
// destination connects or disconnects.
func (l *Loop) Run(ctx context.Context) {
	l.running = true
	defer l.teardown()

	for l.running {
		cases, handlers := l.buildSelectSet(ctx)
		idx, recv, recvOK := reflect.Select(cases)

		switch {
		case idx == 0: // ctx.Done()
			l.running = false
		case idx == 1: // timer wheel deadline (or a never-fires channel if none pending)
			l.wheel.Fire(time.Now())
		case idx == 2: // command queue; reflect.Select already performed the
			// receive, so the message must be taken from recv directly —
			// calling Pop again here would block waiting for a second
			// message that may never arrive.
			if !recvOK {
				continue
			}
			l.handle(recv.Interface().(msgqueue.Message))
		default:
			handlers[idx]()
		}

		if l.state.active != nil {
			l.state.active.drainAll()
			l.fireLifecycleCallbacks(l.state.active)
			if l.state.active.allDisconnected() {
				l.state.active = nil
			}
		}
	}
}

// buildSelectSet assembles the reflect.Select cases for one iteration:
// index 0 is ctx.Done, index 1 is the timer wheel's next deadline (a
// channel that never fires if nothing is pending), index 2 is the command
// queue, and the remainder are the active session's destination
// transports' Interest channels, each paired with a handler closure in
// the returned slice at the same index.
func (l *Loop) buildSelectSet(ctx context.Context) ([]reflect.SelectCase, []func()) {
	cases := []reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(l.wheelTimer())},
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(l.queue.C())},
	}
	handlers := make([]func(), 3)

	if l.state.active != nil {
		for _, d := range l.state.active.dests {
			interest := d.transport.Interest()
			if interest.Ready == nil {
				continue
			}
			dCopy := d
			cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(interest.Ready)})
			handlers = append(handlers, func() { dCopy.transport.FDReady(ctx) })
		}
	}

	return cases, handlers
}

// wheelTimer returns a channel that fires at the wheel's next deadline,
// or a channel that never fires if no timer is pending.
func (l *Loop) wheelTimer() <-chan time.Time {
	deadline, ok := l.wheel.Next()
	if !ok {
		return make(chan time.Time) // never fires
	}
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	return time.After(d)
}

// handle dispatches msg through the per-kind table, signalling its
// completion semaphore (if any) once the handler returns — except
// SESSION_TERMINATE, whose handler signals eagerly per spec.md §5's
// enqueue-only acknowledgement semantics (see dispatch.go).
func (l *Loop) handle(msg msgqueue.Message) {
	fn, ok := l.dispatch[msg.Kind]
	if !ok {
		l.log.Warnw("sessionrouter: dropping command of unknown kind", "kind", int(msg.Kind))
		return
	}
	fn(l, msg)
	if msg.Kind != msgqueue.KindSessionTerminate && msg.Done != nil {
		msg.Done.Signal()
	}
}

// teardown walks every initialized destination and terminates it, then
// drains the FSMs one last time so Disconnected-entry callbacks fire
// before Run returns, per spec.md §4.1's "on exit the loop tears down
// every open transport" clause.
func (l *Loop) teardown() {
	if l.state.active == nil {
		return
	}
	l.state.active.terminateAll()
	l.state.active.drainAll()
	l.fireLifecycleCallbacks(l.state.active)
	l.queue.Close()
}
