// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package sdt implements the SDT transport: a raw net.Conn (on the network
// named by Config.Network, "tcp" when empty; the router always passes
// "tcp") framed with a minimal length-prefixed codec, driven
// by the generic internal/fsm engine. Its state alphabet is the WS
// alphabet minus TextOnlySession (8 states), per SPEC_FULL.md §4.10.
package sdt

import "github.com/rapidaai/sessionrouter/internal/fsm"

// State is the SDT transport's state alphabet.
type State int

const (
	StateDisconnected State = iota
	StateDisconnecting
	StateBuffering
	StateConnecting
	StateConnected
	StateConnectionRetry
	StateEstablished
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateDisconnecting:
		return "Disconnecting"
	case StateBuffering:
		return "Buffering"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateConnectionRetry:
		return "ConnectionRetry"
	case StateEstablished:
		return "Established"
	case StateStreaming:
		return "Streaming"
	default:
		return "Unknown"
	}
}

// Event is the SDT transport's event alphabet — the WS alphabet with the
// TextOnlySession-only event (TEXT_SESSION_SUCCESS) dropped and WS_* names
// generalized to the transport-neutral names this package uses on the
// wire (CONN_CLOSE/CONN_ERROR in place of WS_CLOSE/WS_ERROR).
type Event int

const (
	EventSessionBegin Event = iota
	EventSessionBeginSTM
	EventDisconnected
	EventSTM
	EventEOS
	EventTerminate
	EventError
	EventTimeout
	EventConnected
	EventRetry
	EventEstablished
	EventConnClose
	EventConnectTimeout
	EventMsgRecv
	EventAppClose
	EventEOSPipe
	EventConnError
	EventAudioError
	EventEstablishTimeout
)

func (e Event) String() string {
	names := [...]string{
		"SESSION_BEGIN", "SESSION_BEGIN_STM", "DISCONNECTED", "STM", "EOS",
		"TERMINATE", "ERROR", "TIMEOUT", "CONNECTED", "RETRY",
		"ESTABLISHED", "CONN_CLOSE", "CONNECT_TIMEOUT", "MSG_RECV",
		"APP_CLOSE", "EOS_PIPE", "CONN_ERROR", "AUDIO_ERROR",
		"ESTABLISH_TIMEOUT",
	}
	if int(e) < 0 || int(e) >= len(names) {
		return "UNKNOWN"
	}
	return names[e]
}

// transitionTable mirrors xrsr_protocol_ws_sm.h's St_Ws_* tables with
// TextOnlySession and its sole inbound transition
// (SM_EVENT_TEXT_SESSION_SUCCESS) removed, per SPEC_FULL.md §4.10.
func transitionTable() map[State]map[Event]fsm.Transition[State] {
	return map[State]map[Event]fsm.Transition[State]{
		StateDisconnected: {
			EventSessionBegin:    {To: StateConnecting},
			EventSessionBeginSTM: {To: StateBuffering},
		},
		StateDisconnecting: {
			EventDisconnected: {To: StateDisconnected},
			EventTerminate:    {To: StateDisconnecting},
		},
		StateBuffering: {
			EventEOS:       {To: StateDisconnected},
			EventTerminate: {To: StateDisconnected},
			EventSTM:       {To: StateConnecting},
		},
		StateConnecting: {
			EventConnectTimeout: {To: StateDisconnected},
			EventTerminate:      {To: StateDisconnected},
			EventError:          {To: StateDisconnected},
			EventTimeout:        {To: StateConnecting},
			EventRetry:          {To: StateConnectionRetry},
			EventConnected:      {To: StateConnected},
		},
		StateConnected: {
			EventEstablishTimeout: {To: StateDisconnecting},
			EventTerminate:        {To: StateDisconnecting},
			EventConnClose:        {To: StateDisconnected},
			EventTimeout:          {To: StateConnected},
			EventEstablished:      {To: StateStreaming},
		},
		StateEstablished: {
			EventAppClose:  {To: StateDisconnecting},
			EventTerminate: {To: StateDisconnecting},
			EventTimeout:   {To: StateDisconnecting},
			EventMsgRecv:   {To: StateEstablished},
			EventConnClose: {To: StateDisconnected},
		},
		StateStreaming: {
			EventEOSPipe:    {To: StateEstablished},
			EventTerminate:  {To: StateDisconnecting},
			EventConnError:  {To: StateDisconnecting},
			EventConnClose:  {To: StateDisconnected},
			EventAudioError: {To: StateEstablished},
		},
		StateConnectionRetry: {
			EventTerminate:      {To: StateDisconnected},
			EventTimeout:        {To: StateConnecting},
			EventConnectTimeout: {To: StateDisconnected},
		},
	}
}
