// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package sdt

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/sessionrouter/internal/types"
)

func TestTransitionTable_NoTextOnlySessionEvent(t *testing.T) {
	table := transitionTable()
	for s, transitions := range table {
		_, hasTextOnly := transitions[Event(19)] // WS's EventTextSessionSuccess ordinal
		assert.False(t, hasTextOnly, "state %s must not carry the WS-only text-session event", s)
	}
}

func newEchoListener(t *testing.T) (net.Listener, string) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			tag, payload, err := readFrame(conn)
			if err != nil {
				return
			}
			if err := writeFrame(conn, tag, payload); err != nil {
				return
			}
		}
	}()
	return ln, ln.Addr().String()
}

func TestTransport_ConnectSendAndReceive(t *testing.T) {
	ln, addr := newEchoListener(t)
	defer ln.Close()

	tr := New(nil, Config{Network: "tcp", Addr: addr, Params: types.TransportParams{TimeoutConnect: 2 * time.Second}})

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

	require.True(t, tr.Send([]byte("frame-1")))

	require.Eventually(t, func() bool {
		tr.Drain()
		return tr.machine.Pending() == 0 && tr.State() == StateStreaming
	}, 2*time.Second, 10*time.Millisecond)

	tr.Terminate()
	require.Eventually(t, func() bool {
		tr.Drain()
		return tr.IsDisconnected()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTransport_SendQueueBounded(t *testing.T) {
	tr := New(nil, Config{Addr: "127.0.0.1:0"})
	for i := 0; i < outboundQueueCapacity; i++ {
		assert.True(t, tr.Send([]byte("x")))
	}
	assert.False(t, tr.Send([]byte("overflow")))
}
