// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package http

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rapidaai/sessionrouter/internal/commons"
	"github.com/rapidaai/sessionrouter/internal/fsm"
	"github.com/rapidaai/sessionrouter/internal/transport"
	"github.com/rapidaai/sessionrouter/internal/types"
)

// Transport drives one destination's HTTP/HTTPS chunked-POST upload
// through the 5-state FSM. Only the loop goroutine calls Drain; the upload
// itself runs on its own goroutine, which fires the FSM's completion
// events directly and also closes a channel the loop treats as a
// single-fd readiness source, per
// SPEC_FULL.md §4.9.
type Transport struct {
	log    commons.Logger
	url    string
	sat    string
	params types.TransportParams

	machine *fsm.Machine[State, Event]
	client  *resty.Client

	mu     sync.Mutex
	writer *io.PipeWriter
	done   chan struct{}
	reason types.SessionEndReason
}

// Config configures a new HTTP Transport.
type Config struct {
	URL    string
	SAT    string
	Params types.TransportParams
}

// New creates an HTTP Transport in StateDisconnected.
func New(log commons.Logger, cfg Config) *Transport {
	client := resty.New()
	client.SetRetryCount(0) // the FSM owns the single retry/backoff policy
	return &Transport{
		log:     log,
		url:     cfg.URL,
		sat:     cfg.SAT,
		params:  cfg.Params,
		machine: fsm.New(StateDisconnected, transitionTable(), 8),
		client:  client,
	}
}

// State returns the transport's current FSM state.
func (t *Transport) State() State { return t.machine.State() }

// Fire enqueues event ev for the next Drain.
func (t *Transport) Fire(ev Event) bool { return t.machine.Fire(ev) }

// Begin implements transport.Transport.
func (t *Transport) Begin(buffered bool) bool {
	if buffered {
		return t.machine.Fire(EventSessionBeginSTM)
	}
	return t.machine.Fire(EventSessionBegin)
}

// Drain processes queued events, performing the upload side effect
// associated with each transition.
func (t *Transport) Drain() {
	t.machine.Drain(t.onTransition, t.onUnhandled)
}

func (t *Transport) onTransition(from State, ev Event, to State) {
	if t.log != nil {
		t.log.Debugw("http transition", "from", from.String(), "event", ev.String(), "to", to.String())
	}
	if r, ok := reasonForEvent(ev); ok {
		t.mu.Lock()
		t.reason = r
		t.mu.Unlock()
	}
	if to == StateConnecting {
		go t.beginUpload()
	}
}

func (t *Transport) onUnhandled(s State, ev Event) {
	if t.log != nil {
		t.log.Warnw("http unhandled event, ignored", "state", s.String(), "event", ev.String())
	}
}

// reasonForEvent maps the FSM event that drove a transition into the
// SessionEndReason eventually reported via Reason, once the machine
// reaches Disconnected. Events with no terminal meaning return ok=false.
func reasonForEvent(ev Event) (types.SessionEndReason, bool) {
	switch ev {
	case EventTerminate:
		return types.SessionEndTerminate, true
	case EventEOS:
		return types.SessionEndErrorAudioDuration, true
	case EventTimeout:
		return types.SessionEndErrorSessionTimeout, true
	case EventDisconnected:
		return types.SessionEndErrorConnectFailure, true
	case EventMsgRecv:
		return types.SessionEndEOS, true
	default:
		return types.SessionEndInvalid, false
	}
}

// beginUpload opens a pipe, hands the read end to resty as a
// streaming/chunked request body, and keeps the write end for Send. The
// request runs until the pipe writer is closed (normal end of stream) or
// errors.
func (t *Transport) beginUpload() {
	pr, pw := io.Pipe()
	done := make(chan struct{})

	t.mu.Lock()
	t.writer = pw
	t.done = done
	t.mu.Unlock()

	timeout := t.params.TimeoutConnect
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	req := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(pr)
	if t.sat != "" {
		req.SetHeader("Authorization", "Bearer "+t.sat)
	}

	go func() {
		defer cancel()
		defer close(done)
		_, err := req.Post(t.url)
		if err != nil {
			t.machine.Fire(EventDisconnected)
			return
		}
		t.machine.Fire(EventMsgRecv)
	}()

	t.machine.Fire(EventConnected)
}

// Interest implements transport.Transport.
func (t *Transport) Interest() transport.Interest {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ch <-chan struct{}
	if t.done != nil {
		ch = t.done
	}
	return transport.Interest{Ready: ch}
}

// FDReady implements transport.Transport; the upload's completion is
// already observed via the request goroutine firing Fire directly, so
// FDReady is a no-op kept for interface conformance.
func (t *Transport) FDReady(ctx context.Context) {}

// Send writes one audio frame into the in-flight upload's chunked body.
// Returns false if no upload is active.
func (t *Transport) Send(data []byte) bool {
	t.mu.Lock()
	w := t.writer
	t.mu.Unlock()
	if w == nil {
		return false
	}
	_, err := w.Write(data)
	return err == nil
}

// Terminate implements transport.Transport: ends the chunked body (EOF)
// and fires the FSM's terminate event.
func (t *Transport) Terminate() {
	t.mu.Lock()
	w := t.writer
	t.writer = nil
	t.mu.Unlock()
	if w != nil {
		_ = w.Close()
	}
	t.machine.Fire(EventTerminate)
}

// IsConnected implements transport.Transport.
func (t *Transport) IsConnected() bool {
	s := t.machine.State()
	return s == StateConnected || s == StateStreaming
}

// IsDisconnected implements transport.Transport.
func (t *Transport) IsDisconnected() bool {
	return t.machine.State() == StateDisconnected
}

// EndBuffering implements transport.Transport.
func (t *Transport) EndBuffering() bool {
	return t.machine.Fire(EventSTM)
}

// AudioEOS implements transport.Transport.
func (t *Transport) AudioEOS() bool {
	if t.machine.State() == StateBuffering {
		return t.machine.Fire(EventEOS)
	}
	return t.machine.Fire(EventPipeEOS)
}

// Reason implements transport.Transport.
func (t *Transport) Reason() types.SessionEndReason {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}
