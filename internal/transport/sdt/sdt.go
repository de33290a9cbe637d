// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package sdt

import (
	"context"
	"io"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/rapidaai/sessionrouter/internal/commons"
	"github.com/rapidaai/sessionrouter/internal/fsm"
	"github.com/rapidaai/sessionrouter/internal/transport"
	"github.com/rapidaai/sessionrouter/internal/types"
)

const outboundQueueCapacity = 16

// Transport drives one destination's raw-socket SDT connection through
// the 8-state FSM.
type Transport struct {
	log     commons.Logger
	network string // Config.Network, or "tcp" when that is empty
	addr    string
	params  types.TransportParams

	machine *fsm.Machine[State, Event]

	mu       sync.Mutex
	outbound [][]byte
	conn     net.Conn

	attempt  int
	deadline time.Time
	reason   types.SessionEndReason
	rnd      func() float64
}

// Config configures a new SDT Transport.
type Config struct {
	Network string // "tcp" or "udp"
	Addr    string
	Params  types.TransportParams
}

// New creates an SDT Transport in StateDisconnected.
func New(log commons.Logger, cfg Config) *Transport {
	network := cfg.Network
	if network == "" {
		network = "tcp"
	}
	return &Transport{
		log:     log,
		network: network,
		addr:    cfg.Addr,
		params:  cfg.Params,
		machine: fsm.New(StateDisconnected, transitionTable(), 8),
		rnd:     rand.Float64,
	}
}

// State returns the transport's current FSM state.
func (t *Transport) State() State { return t.machine.State() }

// Fire enqueues event ev for the next Drain.
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
// associated with each transition.
func (t *Transport) Drain() {
	t.machine.Drain(t.onTransition, t.onUnhandled)
}

func (t *Transport) onTransition(from State, ev Event, to State) {
	if t.log != nil {
		t.log.Debugw("sdt transition", "from", from.String(), "event", ev.String(), "to", to.String())
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
		t.log.Warnw("sdt unhandled event, ignored", "state", s.String(), "event", ev.String())
	}
}

// reasonForEvent maps the FSM event that drove a transition into the
// SessionEndReason eventually reported via Reason, once the machine
// reaches Disconnected. Events with no terminal meaning return ok=false
// and leave the recorded reason untouched — notably EventDisconnected,
// closeConn's own "socket is shut" signal fired on every path into
// Disconnecting, which would otherwise stomp the real cause (Terminate,
// ConnError, ...) recorded when Disconnecting was entered.
func reasonForEvent(ev Event) (types.SessionEndReason, bool) {
	switch ev {
	case EventTerminate, EventAppClose:
		return types.SessionEndTerminate, true
	case EventEOS:
		return types.SessionEndErrorAudioDuration, true
	case EventConnectTimeout, EventEstablishTimeout:
		return types.SessionEndErrorConnectTimeout, true
	case EventError, EventConnError, EventAudioError:
		return types.SessionEndErrorConnectFailure, true
	case EventConnClose:
		return types.SessionEndEOS, true
	default:
		return types.SessionEndInvalid, false
	}
}

func (t *Transport) connect() {
	timeout := t.params.TimeoutConnect
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	conn, err := net.DialTimeout(t.network, t.addr, timeout)
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
// handshake complete, mirroring the WS transport's parity hold.
func (t *Transport) armEstablished() {
	interval := t.params.ConnectCheckInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	time.Sleep(interval)
	t.machine.Fire(EventEstablished)
}

// readLoop decodes length-prefixed frames off conn until it errors or EOFs.
func (t *Transport) readLoop(conn net.Conn) {
	for {
		_, _, err := readFrame(conn)
		if err != nil {
			if err == io.EOF {
				t.machine.Fire(EventConnClose)
			} else {
				t.machine.Fire(EventConnError)
			}
			return
		}
		t.machine.Fire(EventMsgRecv)
	}
}

func (t *Transport) closeConn() {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	t.machine.Fire(EventDisconnected)
}

// Interest implements transport.Transport. SDT drives itself off
// transition side effects, like the WS transport.
func (t *Transport) Interest() transport.Interest { return transport.Interest{} }

// FDReady implements transport.Transport; kept for interface conformance.
func (t *Transport) FDReady(ctx context.Context) {}

// Send implements transport.Transport: enqueues a binary frame if the
// outbound queue has room.
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

func (t *Transport) flush(conn net.Conn, pending [][]byte) {
	for _, msg := range pending {
		if err := writeFrame(conn, frameTagBinary, msg); err != nil {
			t.machine.Fire(EventConnError)
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
	return s == StateStreaming || s == StateEstablished
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
	return t.machine.Fire(EventEOSPipe)
}

// Reason implements transport.Transport.
func (t *Transport) Reason() types.SessionEndReason {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}
