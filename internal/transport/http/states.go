// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package http implements the HTTP/HTTPS transport: a go-resty/resty/v2
// chunked POST driven by the generic internal/fsm engine through the
// 5-state table transcribed from xrsr_protocol_http_sm.h.
package http

import "github.com/rapidaai/sessionrouter/internal/fsm"

// State is the HTTP/HTTPS transport's state alphabet (5 states, a
// reduction of the WS alphabet per xrsr_protocol_http_sm.h's St_Http_*
// set — no Disconnecting, ConnectionRetry, Established, or
// TextOnlySession phase exists for chunked POST upload).
type State int

const (
	StateDisconnected State = iota
	StateBuffering
	StateConnecting
	StateConnected
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateBuffering:
		return "Buffering"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateStreaming:
		return "Streaming"
	default:
		return "Unknown"
	}
}

// Event is the HTTP transport's event alphabet, transcribed 1:1 from
// xrsr_protocol_http_sm.h's SM_EVENT_* set.
type Event int

const (
	EventSessionBegin Event = iota
	EventSessionBeginSTM
	EventDisconnected
	EventSTM
	EventEOS
	EventTerminate
	EventTimeout
	EventConnected
	EventMsgRecv
	EventPipeEOS
)

func (e Event) String() string {
	names := [...]string{
		"SESSION_BEGIN", "SESSION_BEGIN_STM", "DISCONNECTED", "STM", "EOS",
		"TERMINATE", "TIMEOUT", "CONNECTED", "MSG_RECV", "PIPE_EOS",
	}
	if int(e) < 0 || int(e) >= len(names) {
		return "UNKNOWN"
	}
	return names[e]
}

// transitionTable is transcribed directly from xrsr_protocol_http_sm.h's
// St_Http_*_NextStates arrays.
func transitionTable() map[State]map[Event]fsm.Transition[State] {
	return map[State]map[Event]fsm.Transition[State]{
		StateDisconnected: {
			EventSessionBegin:    {To: StateConnecting},
			EventSessionBeginSTM: {To: StateBuffering},
		},
		StateBuffering: {
			EventEOS:       {To: StateDisconnected},
			EventTerminate: {To: StateDisconnected},
			EventSTM:       {To: StateConnecting},
		},
		StateConnecting: {
			EventDisconnected: {To: StateDisconnected},
			EventConnected:    {To: StateStreaming},
		},
		StateConnected: {
			EventMsgRecv:   {To: StateDisconnected},
			EventTerminate: {To: StateDisconnected},
			EventTimeout:   {To: StateDisconnected},
		},
		StateStreaming: {
			EventPipeEOS:   {To: StateConnected},
			EventTerminate: {To: StateDisconnected},
			EventMsgRecv:   {To: StateDisconnected},
		},
	}
}
