// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package memengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/sessionrouter/internal/audioengine"
	"github.com/rapidaai/sessionrouter/internal/types"
)

func TestBeginStream_RejectsDoubleStart(t *testing.T) {
	e := New(nil)
	require.NoError(t, e.BeginStream(context.Background(), audioengine.StreamOptions{Format: types.AudioFormatPCM}))
	defer e.EndStream()

	err := e.BeginStream(context.Background(), audioengine.StreamOptions{Format: types.AudioFormatPCM})
	assert.ErrorIs(t, err, audioengine.ErrAlreadyStreaming)
}

func TestEndStream_WithoutBeginReturnsError(t *testing.T) {
	e := New(nil)
	assert.ErrorIs(t, e.EndStream(), audioengine.ErrNotStreaming)
}

func TestPush_PublishesRawPCMFrame(t *testing.T) {
	e := New(nil)
	require.NoError(t, e.BeginStream(context.Background(), audioengine.StreamOptions{Format: types.AudioFormatPCM}))

	sub := e.Subscribe()
	require.NoError(t, e.Push([]int16{1, 2, 3}))

	ev := <-sub
	require.Equal(t, audioengine.EventFrame, ev.Kind)
	assert.Len(t, ev.Frame, 6) // 3 samples * 2 bytes

	require.NoError(t, e.EndStream())
	eos := <-sub
	assert.Equal(t, audioengine.EventEOS, eos.Kind)
}

func TestPush_EncodesOpusWhenRequested(t *testing.T) {
	e := New(nil)
	require.NoError(t, e.BeginStream(context.Background(), audioengine.StreamOptions{Format: types.AudioFormatOpus}))
	defer e.EndStream()

	sub := e.Subscribe()
	pcm := make([]int16, frameSize)
	require.NoError(t, e.Push(pcm))

	ev := <-sub
	require.Equal(t, audioengine.EventFrame, ev.Kind)
	assert.NotEmpty(t, ev.Frame)
}

func TestPush_NoopWhenNotStreaming(t *testing.T) {
	e := New(nil)
	assert.NoError(t, e.Push([]int16{1}))
}

func TestStats_TracksProcessedSamples(t *testing.T) {
	e := New(nil)
	require.NoError(t, e.BeginStream(context.Background(), audioengine.StreamOptions{Format: types.AudioFormatPCM}))
	sub := e.Subscribe()

	require.NoError(t, e.Push([]int16{1, 2, 3, 4}))
	<-sub

	stats := e.Stats()
	assert.Equal(t, uint32(1), stats.AudioStats.PacketsProcessed)
	assert.Equal(t, uint32(4), stats.AudioStats.SamplesProcessed)

	require.NoError(t, e.EndStream())
	<-sub
}
