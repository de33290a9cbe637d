// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package ws implements the WS/WSS transport: a gorilla/websocket
// connection driven by the generic internal/fsm engine through the
// 9-state table transcribed from xrsr_protocol_ws_sm.h.
package ws

import "github.com/rapidaai/sessionrouter/internal/fsm"

// State is the WS/WSS transport's state alphabet (9 states, matching
// xrsr_protocol_ws_sm.h's St_Ws_* set).
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
	StateTextOnlySession
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
	case StateTextOnlySession:
		return "TextOnlySession"
	default:
		return "Unknown"
	}
}

// Event is the WS/WSS transport's event alphabet, transcribed 1:1 from
// xrsr_protocol_ws_sm.h's SM_EVENT_* set (unused-here events from the
// shared C table, like SESSION_BEGIN variants, are kept for table
// fidelity even where a given state has no transition for them).
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
	EventWSClose
	EventConnectTimeout
	EventMsgRecv
	EventAppClose
	EventEOSPipe
	EventWSError
	EventAudioError
	EventEstablishTimeout
	EventTextSessionSuccess
)

func (e Event) String() string {
	names := [...]string{
		"SESSION_BEGIN", "SESSION_BEGIN_STM", "DISCONNECTED", "STM", "EOS",
		"TERMINATE", "XRSR_ERROR", "TIMEOUT", "CONNECTED", "RETRY",
		"ESTABLISHED", "WS_CLOSE", "CONNECT_TIMEOUT", "MSG_RECV",
		"APP_CLOSE", "EOS_PIPE", "WS_ERROR", "AUDIO_ERROR",
		"ESTABLISH_TIMEOUT", "TEXT_SESSION_SUCCESS",
	}
	if int(e) < 0 || int(e) >= len(names) {
		return "UNKNOWN"
	}
	return names[e]
}

// transitionTable is transcribed directly from xrsr_protocol_ws_sm.h's
// St_Ws_*_NextStates arrays.
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
			EventWSClose:          {To: StateDisconnected},
			EventTimeout:          {To: StateConnected},
			EventEstablished:      {To: StateStreaming},
		},
		StateEstablished: {
			EventAppClose:  {To: StateDisconnecting},
			EventTerminate: {To: StateDisconnecting},
			EventTimeout:   {To: StateDisconnecting},
			EventMsgRecv:   {To: StateEstablished},
			EventWSClose:   {To: StateDisconnected},
		},
		StateStreaming: {
			EventEOSPipe:            {To: StateEstablished},
			EventTerminate:          {To: StateDisconnecting},
			EventWSError:            {To: StateDisconnecting},
			EventWSClose:            {To: StateDisconnected},
			EventAudioError:         {To: StateEstablished},
			EventTextSessionSuccess: {To: StateTextOnlySession},
		},
		StateTextOnlySession: {
			EventEOSPipe:    {To: StateEstablished},
			EventTerminate:  {To: StateDisconnecting},
			EventWSError:    {To: StateDisconnecting},
			EventWSClose:    {To: StateDisconnected},
			EventAudioError: {To: StateEstablished},
		},
		StateConnectionRetry: {
			EventTerminate:      {To: StateDisconnected},
			EventTimeout:        {To: StateConnecting},
			EventConnectTimeout: {To: StateDisconnected},
		},
	}
}
