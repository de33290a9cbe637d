// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
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

func TestTransitionTable_EveryStateHasTerminateOrIsTerminal(t *testing.T) {
	table := transitionTable()
	for s, transitions := range table {
		if s == StateDisconnected {
			continue // terminal/idle, no Terminate transition needed
		}
		_, hasTerminate := transitions[EventTerminate]
		assert.True(t, hasTerminate, "state %s has no TERMINATE transition", s)
	}
}

func newEchoServer(t *testing.T) (*httptest.Server, string) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func TestTransport_ConnectAndReceive(t *testing.T) {
	srv, wsURL := newEchoServer(t)
	defer srv.Close()

	received := make(chan types.RecvMsgType, 1)
	tr := New(nil, Config{
		URL:    wsURL,
		Params: types.TransportParams{TimeoutConnect: 2 * time.Second},
		RecvHandler: func(msgType types.RecvMsgType, payload []byte) bool {
			received <- msgType
			return true
		},
	})

	require.True(t, tr.Fire(EventSessionBegin))
	tr.Drain()
	require.Eventually(t, func() bool {
		tr.Drain()
		return tr.State() == StateConnected
	}, 2*time.Second, 10*time.Millisecond)

	require.True(t, tr.Fire(EventEstablished))
	tr.Drain()
	assert.Equal(t, StateStreaming, tr.State())
	assert.True(t, tr.IsConnected())

	require.True(t, tr.Send([]byte("hello")))

	select {
	case mt := <-received:
		assert.Equal(t, types.RecvMsgText, mt)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive echoed message")
	}

	tr.Terminate()
	tr.Drain()
	require.Eventually(t, func() bool {
		tr.Drain()
		return tr.IsDisconnected()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTransport_ConnectTimeout(t *testing.T) {
	tr := New(nil, Config{
		URL:    "ws://10.255.255.1:1", // non-routable, dial will time out
		Params: types.TransportParams{TimeoutConnect: 50 * time.Millisecond},
	})

	require.True(t, tr.Fire(EventSessionBegin))
	tr.Drain()

	require.Eventually(t, func() bool {
		tr.Drain()
		return tr.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTransport_SendQueueBounded(t *testing.T) {
	tr := New(nil, Config{URL: "ws://unused"})
	for i := 0; i < outboundQueueCapacity; i++ {
		assert.True(t, tr.Send([]byte("x")))
	}
	assert.False(t, tr.Send([]byte("overflow")))
}
