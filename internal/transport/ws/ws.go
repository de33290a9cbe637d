// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package ws

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rapidaai/sessionrouter/internal/commons"
	"github.com/rapidaai/sessionrouter/internal/fsm"
	"github.com/rapidaai/sessionrouter/internal/transport"
	"github.com/rapidaai/sessionrouter/internal/types"
)

// outboundQueueCapacity bounds the pending-to-send text queue. The queue
// is guarded by t.mu and drained by Send itself, which hands everything
// queued to a flush goroutine whenever a connection exists; messages
// queued while no connection exists wait for the next Send.
const outboundQueueCapacity = 16

// Transport drives one destination's WS/WSS connection through the
// 9-state FSM. A Transport is owned by the loop goroutine; Send may be
// called from other goroutines via the application's send handle.
type Transport struct {
	log    commons.Logger
	url    string
	sat    string // SAT/bearer token, sent as an extra Authorization header
	params types.TransportParams

	machine *fsm.Machine[State, Event]

	mu          sync.Mutex
	outbound    [][]byte
	conn        *websocket.Conn
	dialer      *websocket.Dialer
	ready       chan struct{}
	recvHandler func(msgType types.RecvMsgType, payload []byte) bool

	attempt  int
	deadline time.Time
	reason   types.SessionEndReason
	rnd      func() float64
}

// Config configures a new Transport.
type Config struct {
	URL         string
	SAT         string
	Params      types.TransportParams
	RecvHandler func(msgType types.RecvMsgType, payload []byte) bool
}

// New creates a WS/WSS Transport in StateDisconnected.
func New(log commons.Logger, cfg Config) *Transport {
	return &Transport{
		log:         log,
		url:         cfg.URL,
		sat:         cfg.SAT,
		params:      cfg.Params,
		machine:     fsm.New(StateDisconnected, transitionTable(), 8),
		dialer:      websocket.DefaultDialer,
		ready:       make(chan struct{}, 1),
		recvHandler: cfg.RecvHandler,
		rnd:         rand.Float64,
	}
}

// State returns the transport's current FSM state.
func (t *Transport) State() State { return t.machine.State() }

// Fire enqueues event ev for the next Drain; it mirrors fsm.Machine.Fire
// so callers outside this package (tests, the router) can drive the FSM
// without reaching into the unexported machine field.
func (t *Transport) Fire(ev Event) bool { return t.machine.Fire(ev) }

// Begin implements transport.Transport.
func (t *Transport) Begin(buffered bool) bool {
	timeout := t.params.TimeoutSession
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	t.mu.Lock()
	t.deadline = time.Now().Add(timeout)
	t.mu.Unlock()

	if buffered {
		return t.machine.Fire(EventSessionBeginSTM)
	}
	return t.machine.Fire(EventSessionBegin)
}

// Drain processes queued events, performing the connection side effect
// associated with each transition (dialing on entry to Connecting,
// closing the conn on entry to Disconnecting, etc).
func (t *Transport) Drain() {
	t.machine.Drain(t.onTransition, t.onUnhandled)
}

func (t *Transport) onTransition(from State, ev Event, to State) {
	if t.log != nil {
		t.log.Debugw("ws transition", "from", from.String(), "event", ev.String(), "to", to.String())
	}
	if r, ok := reasonForEvent(ev); ok {
		t.mu.Lock()
		t.reason = r
		t.mu.Unlock()
	}
	switch to {
	case StateConnecting:
		go t.connect()
	case StateConnected:
		go t.armEstablished()
	case StateDisconnecting:
		t.closeConn()
	case StateConnectionRetry:
		go t.scheduleRetry()
	}
}

func (t *Transport) onUnhandled(s State, ev Event) {
	if t.log != nil {
		t.log.Warnw("ws unhandled event, ignored", "state", s.String(), "event", ev.String())
	}
}

// reasonForEvent maps the FSM event that drove a transition into the
// SessionEndReason eventually reported via Reason, once the machine
// reaches Disconnected. Events with no terminal meaning return ok=false
// and leave the recorded reason untouched — notably EventDisconnected,
// closeConn's own "socket is shut" signal fired on every path into
// Disconnecting, which would otherwise stomp the real cause (Terminate,
// WSError, ...) recorded when Disconnecting was entered.
func reasonForEvent(ev Event) (types.SessionEndReason, bool) {
	switch ev {
	case EventTerminate, EventAppClose:
		return types.SessionEndTerminate, true
	case EventEOS:
		return types.SessionEndErrorAudioDuration, true
	case EventConnectTimeout, EventEstablishTimeout:
		return types.SessionEndErrorConnectTimeout, true
	case EventError, EventWSError, EventAudioError:
		return types.SessionEndErrorConnectFailure, true
	case EventWSClose:
		return types.SessionEndEOS, true
	default:
		return types.SessionEndInvalid, false
	}
}

// connect dials the destination with a context-scoped deadline for
// timeout_connect (spec.md §4.8), attaching an Authorization header when
// a SAT token is configured.
func (t *Transport) connect() {
	ctx := context.Background()
	timeout := t.params.TimeoutConnect
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	header := http.Header{}
	if t.sat != "" {
		header.Set("Authorization", "Bearer "+t.sat)
	}

	conn, _, err := t.dialer.DialContext(ctx, t.url, header)
	if err != nil {
		// Every failed attempt goes through ConnectionRetry; scheduleRetry
		// ends the session once the deadline leaves no room for another.
		t.machine.Fire(EventRetry)
		return
	}

	t.mu.Lock()
	t.conn = conn
	t.attempt = 0
	t.mu.Unlock()

	go t.readLoop(conn)
	t.machine.Fire(EventConnected)
}

// scheduleRetry waits out the backoff delay computed by
// transport.ConnectBackoff before firing EventTimeout, which the table
// routes ConnectionRetry -> Connecting. If the session deadline has
// already passed, or the computed delay would sleep past it, it fires
// EventConnectTimeout instead, taking ConnectionRetry -> Disconnected
// with reason ERROR_CONNECT_TIMEOUT rather than scheduling a retry that
// would outlive the session.
func (t *Transport) scheduleRetry() {
	t.mu.Lock()
	t.attempt++
	attempt := t.attempt
	deadline := t.deadline
	t.mu.Unlock()

	remaining := time.Until(deadline)
	if remaining <= 0 {
		t.machine.Fire(EventConnectTimeout)
		return
	}

	delay := transport.ConnectBackoff(t.params.BackoffDelay, attempt, remaining, t.rnd)
	if delay >= remaining {
		time.Sleep(remaining)
		t.machine.Fire(EventConnectTimeout)
		return
	}
	time.Sleep(delay)
	t.machine.Fire(EventTimeout)
}

// armEstablished waits out connect_check_interval before declaring the
// handshake complete. gorilla/websocket's DialContext already blocks
// until the HTTP upgrade finishes, so by the time StateConnected is
// entered the connection is already usable; the interval is honored for
// parity with the reference FSM's arm-timer-then-confirm shape.
func (t *Transport) armEstablished() {
	interval := t.params.ConnectCheckInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	time.Sleep(interval)
	t.machine.Fire(EventEstablished)
}

// readLoop pumps frames off conn until it errors or is closed, firing the
// matching FSM event for each outcome. gorilla/websocket already
// coalesces multi-frame messages for us (per spec.md §4.8), so one
// ReadMessage call yields one logical recv_msg.
func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.machine.Fire(EventWSClose)
			} else {
				t.machine.Fire(EventWSError)
			}
			return
		}

		rmt := types.RecvMsgBinary
		if msgType == websocket.TextMessage {
			rmt = types.RecvMsgText
		}
		handled := true
		if t.recvHandler != nil {
			handled = t.recvHandler(rmt, payload)
		}
		if handled {
			t.machine.Fire(EventMsgRecv)
		}
	}
}

func (t *Transport) closeConn() {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		t.machine.Fire(EventDisconnected)
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	t.machine.Fire(EventDisconnected)
}

// Interest implements transport.Transport.
func (t *Transport) Interest() transport.Interest {
	return transport.Interest{Ready: t.ready}
}

// FDReady implements transport.Transport. The WS transport drives itself
// from goroutines spawned out of transition side effects, so FDReady is
// a no-op hook kept for interface conformance and future readiness-driven
// sends.
func (t *Transport) FDReady(ctx context.Context) {}

// Send implements transport.Transport: enqueues data as a text frame if
// the outbound queue has room, draining it via the mutex-guarded queue
// per spec.md §5/§9's "callbacks and send handle" design note.
func (t *Transport) Send(data []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.outbound) >= outboundQueueCapacity {
		return false
	}
	t.outbound = append(t.outbound, data)
	conn := t.conn
	if conn == nil {
		return true
	}
	pending := t.outbound
	t.outbound = nil
	go t.flush(conn, pending)
	return true
}

func (t *Transport) flush(conn *websocket.Conn, pending [][]byte) {
	for _, msg := range pending {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			t.machine.Fire(EventWSError)
			return
		}
	}
}

// Terminate implements transport.Transport.
func (t *Transport) Terminate() {
	t.machine.Fire(EventTerminate)
}

// IsConnected implements transport.Transport.
func (t *Transport) IsConnected() bool {
	s := t.machine.State()
	return s == StateStreaming || s == StateEstablished || s == StateTextOnlySession
}

// IsDisconnected implements transport.Transport.
func (t *Transport) IsDisconnected() bool {
	return t.machine.State() == StateDisconnected
}

// EndBuffering implements transport.Transport.
func (t *Transport) EndBuffering() bool {
	return t.machine.Fire(EventSTM)
}

// AudioEOS implements transport.Transport: while still Buffering, audio
// end-of-stream means the session never reached stream_time_min, so it
// fires the pre-stream EOS transition; once Streaming (or idle in
// Established), it fires the mid-stream EOS-pipe transition instead.
func (t *Transport) AudioEOS() bool {
	if t.machine.State() == StateBuffering {
		return t.machine.Fire(EventEOS)
	}
	return t.machine.Fire(EventEOSPipe)
}

// Reason implements transport.Transport.
func (t *Transport) Reason() types.SessionEndReason {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}
