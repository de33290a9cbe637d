// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package types

import "time"

// TransportParams mirrors xrsr_dst_params_t: per-power-mode-profile or
// per-destination-override transport behavior knobs.
type TransportParams struct {
	Debug                bool          `mapstructure:"debug"`
	ConnectCheckInterval time.Duration `mapstructure:"connect_check_interval"` // 0-1000ms
	TimeoutConnect       time.Duration `mapstructure:"timeout_connect"`        // 0-60000ms
	TimeoutInactivity    time.Duration `mapstructure:"timeout_inactivity"`     // 0-60000ms
	TimeoutSession       time.Duration `mapstructure:"timeout_session"`        // 0-60000ms
	IPv4Fallback         bool          `mapstructure:"ipv4_fallback"`
	BackoffDelay         time.Duration `mapstructure:"backoff_delay"` // 0-10000ms
}

// Merge returns a copy of base with any non-zero field from override applied.
// Used to layer a per-destination override on top of the active power-mode
// profile.
func (base TransportParams) Merge(override *TransportParams) TransportParams {
	if override == nil {
		return base
	}
	out := base
	if override.ConnectCheckInterval != 0 {
		out.ConnectCheckInterval = override.ConnectCheckInterval
	}
	if override.TimeoutConnect != 0 {
		out.TimeoutConnect = override.TimeoutConnect
	}
	if override.TimeoutInactivity != 0 {
		out.TimeoutInactivity = override.TimeoutInactivity
	}
	if override.TimeoutSession != 0 {
		out.TimeoutSession = override.TimeoutSession
	}
	if override.BackoffDelay != 0 {
		out.BackoffDelay = override.BackoffDelay
	}
	out.Debug = out.Debug || override.Debug
	out.IPv4Fallback = out.IPv4Fallback || override.IPv4Fallback
	return out
}

// KeywordDetectorResult mirrors xrsr_keyword_detector_result_t, carried
// verbatim from the wake-word detector through session_begin.
type KeywordDetectorResult struct {
	Score          float32 // confidence, 0-100
	SNR            float32 // signal to noise ratio in dB, -100..+100
	DOA            uint16  // direction of arrival in degrees, 0-359
	OffsetBufBegin int32   // negative sample offset to buffer begin
	OffsetKwdBegin int32   // negative sample offset to keyword begin
	OffsetKwdEnd   int32   // negative sample offset to keyword end
}

// AudioStats mirrors xrsr_audio_stats_t.
type AudioStats struct {
	Valid               bool
	PacketsProcessed     uint32
	PacketsLost          uint32
	SamplesProcessed     uint32
	SamplesLost          uint32
	DecoderFailures      uint32
	SamplesBufferedMax   uint32
}

// SessionStats mirrors xrsr_session_stats_t, reported on session_end.
type SessionStats struct {
	Reason          SessionEndReason
	RetCodeProtocol int64
	RetCodeLibrary  int64
	ServerIP        string
	TimeConnect     time.Duration
	TimeDNS         time.Duration
}

// StreamStats mirrors xrsr_stream_stats_t, reported on stream_end.
type StreamStats struct {
	Result     bool
	Protocol   Protocol
	AudioStats AudioStats
}

// Destination is one endpoint a source's audio may be routed to. The
// application-facing callback bundle for a Destination is not stored
// here — internal/callback.Registry associates one by (Source, index) so
// that internal/types has no dependency on the callback package.
type Destination struct {
	URL            string
	AudioFormat    AudioFormat
	StreamTimeMin  time.Duration // minimum captured duration before connecting; 0 disables buffering
	StreamFrom     StreamFrom
	StreamUntil    StreamUntil
	ParamsOverride map[PowerMode]*TransportParams
}

// Route is a Source's ordered list of Destinations. An empty Destinations
// list is only valid as the argument to a route deletion.
type Route struct {
	Source       Source
	Destinations []Destination
}
