// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package types holds the closed enumerations and value structs that make
// up the voice-session router's data model.
package types

// Source identifies an audio input classification. Ordinal values match
// the reference implementation (XRSR_SRC_RCU_PTT=0, XRSR_SRC_RCU_FF=1,
// XRSR_SRC_MICROPHONE=2) so logs and tests line up with it.
type Source int

const (
	SourcePTTRemote Source = iota
	SourceFarfieldRemote
	SourceLocalMic
	SourceInvalid
)

func (s Source) String() string {
	switch s {
	case SourcePTTRemote:
		return "PTT_REMOTE"
	case SourceFarfieldRemote:
		return "FARFIELD_REMOTE"
	case SourceLocalMic:
		return "LOCAL_MIC"
	default:
		return "INVALID"
	}
}

// Protocol is the wire transport a Destination speaks.
type Protocol int

const (
	ProtocolHTTP Protocol = iota
	ProtocolHTTPS
	ProtocolWS
	ProtocolWSS
	ProtocolSDT
	ProtocolInvalid
)

func (p Protocol) String() string {
	switch p {
	case ProtocolHTTP:
		return "HTTP"
	case ProtocolHTTPS:
		return "HTTPS"
	case ProtocolWS:
		return "WS"
	case ProtocolWSS:
		return "WSS"
	case ProtocolSDT:
		return "SDT"
	default:
		return "INVALID"
	}
}

// IsWebsocket reports whether the protocol is one of the two WS families.
func (p Protocol) IsWebsocket() bool { return p == ProtocolWS || p == ProtocolWSS }

// IsHTTP reports whether the protocol is one of the two HTTP families.
func (p Protocol) IsHTTP() bool { return p == ProtocolHTTP || p == ProtocolHTTPS }

// IsSecure reports whether the protocol runs over TLS.
func (p Protocol) IsSecure() bool { return p == ProtocolHTTPS || p == ProtocolWSS }

// AudioFormat is the outgoing encoding requested for a session.
type AudioFormat int

const (
	AudioFormatNative AudioFormat = iota
	AudioFormatPCM
	AudioFormatADPCM
	AudioFormatOpus
	AudioFormatInvalid
)

func (f AudioFormat) String() string {
	switch f {
	case AudioFormatNative:
		return "NATIVE"
	case AudioFormatPCM:
		return "PCM"
	case AudioFormatADPCM:
		return "ADPCM"
	case AudioFormatOpus:
		return "OPUS"
	default:
		return "INVALID"
	}
}

// StreamFrom is the byte offset a destination's recording should begin at.
type StreamFrom int

const (
	StreamFromBeginning StreamFrom = iota
	StreamFromKeywordBegin
	StreamFromKeywordEnd
	StreamFromInvalid
)

func (f StreamFrom) String() string {
	switch f {
	case StreamFromBeginning:
		return "BEGINNING"
	case StreamFromKeywordBegin:
		return "KEYWORD_BEGIN"
	case StreamFromKeywordEnd:
		return "KEYWORD_END"
	default:
		return "INVALID"
	}
}

// StreamUntil is the condition that ends a destination's stream.
type StreamUntil int

const (
	StreamUntilEndOfStream StreamUntil = iota
	StreamUntilEndOfSpeech
	StreamUntilEndOfKeyword
	StreamUntilInvalid
)

func (u StreamUntil) String() string {
	switch u {
	case StreamUntilEndOfStream:
		return "END_OF_STREAM"
	case StreamUntilEndOfSpeech:
		return "END_OF_SPEECH"
	case StreamUntilEndOfKeyword:
		return "END_OF_KEYWORD"
	default:
		return "INVALID"
	}
}

// PowerMode selects which microphone variant and timeout profile is active.
type PowerMode int

const (
	PowerModeFull PowerMode = iota
	PowerModeLow
	PowerModeSleep
	PowerModeInvalid
)

func (m PowerMode) String() string {
	switch m {
	case PowerModeFull:
		return "FULL"
	case PowerModeLow:
		return "LOW"
	case PowerModeSleep:
		return "SLEEP"
	default:
		return "INVALID"
	}
}

// SessionEndReason is surfaced on the session_end callback.
type SessionEndReason int

const (
	SessionEndEOS SessionEndReason = iota
	SessionEndEOT
	SessionEndTerminate
	SessionEndErrorInternal
	SessionEndErrorWsSend
	SessionEndErrorAudioBegin
	SessionEndErrorAudioDuration
	SessionEndErrorConnectFailure
	SessionEndErrorConnectTimeout
	SessionEndErrorSessionTimeout
	SessionEndInvalid
)

func (r SessionEndReason) String() string {
	switch r {
	case SessionEndEOS:
		return "EOS"
	case SessionEndEOT:
		return "EOT"
	case SessionEndTerminate:
		return "TERMINATE"
	case SessionEndErrorInternal:
		return "ERROR_INTERNAL"
	case SessionEndErrorWsSend:
		return "ERROR_WS_SEND"
	case SessionEndErrorAudioBegin:
		return "ERROR_AUDIO_BEGIN"
	case SessionEndErrorAudioDuration:
		return "ERROR_AUDIO_DURATION"
	case SessionEndErrorConnectFailure:
		return "ERROR_CONNECT_FAILURE"
	case SessionEndErrorConnectTimeout:
		return "ERROR_CONNECT_TIMEOUT"
	case SessionEndErrorSessionTimeout:
		return "ERROR_SESSION_TIMEOUT"
	default:
		return "INVALID"
	}
}

// StreamEndReason is surfaced on the stream_end callback.
type StreamEndReason int

const (
	StreamEndAudioEOF StreamEndReason = iota
	StreamEndDisconnectRemote
	StreamEndDisconnectLocal
	StreamEndErrorAudioRead
	StreamEndDidNotBegin
	StreamEndInvalid
)

func (r StreamEndReason) String() string {
	switch r {
	case StreamEndAudioEOF:
		return "AUDIO_EOF"
	case StreamEndDisconnectRemote:
		return "DISCONNECT_REMOTE"
	case StreamEndDisconnectLocal:
		return "DISCONNECT_LOCAL"
	case StreamEndErrorAudioRead:
		return "ERROR_AUDIO_READ"
	case StreamEndDidNotBegin:
		return "DID_NOT_BEGIN"
	default:
		return "INVALID"
	}
}

// RecvMsgType distinguishes text from binary payloads delivered by a
// transport to the recv_msg callback.
type RecvMsgType int

const (
	RecvMsgText RecvMsgType = iota
	RecvMsgBinary
	RecvMsgInvalid
)

func (t RecvMsgType) String() string {
	switch t {
	case RecvMsgText:
		return "TEXT"
	case RecvMsgBinary:
		return "BINARY"
	default:
		return "INVALID"
	}
}
