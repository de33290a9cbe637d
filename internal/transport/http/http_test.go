// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/sessionrouter/internal/types"
)

func TestTransitionTable_DisconnectedToConnecting(t *testing.T) {
	table := transitionTable()
	tr, ok := table[StateDisconnected][EventSessionBegin]
	require.True(t, ok)
	assert.Equal(t, StateConnecting, tr.To)
}

func TestTransport_UploadAndComplete(t *testing.T) {
	receivedBody := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		receivedBody <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := New(nil, Config{URL: srv.URL, Params: types.TransportParams{TimeoutConnect: 2 * time.Second}})

	require.True(t, tr.Fire(EventSessionBegin))
	tr.Drain()
	require.Eventually(t, func() bool {
		tr.Drain()
		return tr.State() == StateStreaming
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, tr.IsConnected())

	require.True(t, tr.Send([]byte("pcm-chunk-1")))
	require.True(t, tr.Send([]byte("pcm-chunk-2")))
	tr.Terminate()

	select {
	case body := <-receivedBody:
		assert.Equal(t, "pcm-chunk-1pcm-chunk-2", string(body))
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive uploaded body")
	}

	require.Eventually(t, func() bool {
		tr.Drain()
		return tr.IsDisconnected()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTransport_SendWithoutActiveUploadFails(t *testing.T) {
	tr := New(nil, Config{URL: "http://unused"})
	assert.False(t, tr.Send([]byte("x")))
}
