// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/sessionrouter/internal/commons"
	"github.com/rapidaai/sessionrouter/internal/msgqueue"
	"github.com/rapidaai/sessionrouter/internal/types"
)

func testLoop(t *testing.T) *Loop {
	t.Helper()
	log, err := commons.NewApplicationLogger()
	require.NoError(t, err)

	profiles := map[types.PowerMode]types.TransportParams{
		types.PowerModeFull: {TimeoutConnect: 50 * time.Millisecond, BackoffDelay: time.Millisecond},
		types.PowerModeLow:  {TimeoutConnect: 50 * time.Millisecond, BackoffDelay: time.Millisecond},
	}
	state := NewGlobalState(profiles, RetriggerIgnoreAndRestartDetector)
	return NewLoop(log, msgqueue.New(4), nil, state)
}

func testRoute(source types.Source) types.Route {
	return types.Route{
		Source: source,
		Destinations: []types.Destination{
			{URL: "sdt://127.0.0.1:1", AudioFormat: types.AudioFormatPCM},
		},
	}
}

func TestHandleRouteUpdate_AddAndDelete(t *testing.T) {
	l := testLoop(t)

	route := testRoute(types.SourceLocalMic)
	l.handle(msgqueue.Message{Kind: msgqueue.KindRouteUpdate, Payload: RouteUpdatePayload{Route: route}})
	got, ok := l.state.routes[types.SourceLocalMic]
	require.True(t, ok)
	assert.Len(t, got.Destinations, 1)

	l.handle(msgqueue.Message{Kind: msgqueue.KindRouteUpdate, Payload: RouteUpdatePayload{Route: types.Route{Source: types.SourceLocalMic}}})
	_, ok = l.state.routes[types.SourceLocalMic]
	assert.False(t, ok, "an empty-destinations ROUTE_UPDATE must delete the route")
}

func TestHandleKeywordDetected_BeginsSessionForRoutedSource(t *testing.T) {
	l := testLoop(t)
	l.state.routes[types.SourceLocalMic] = testRoute(types.SourceLocalMic)

	l.handle(msgqueue.Message{
		Kind: msgqueue.KindKeywordDetected,
		Payload: KeywordDetectedPayload{
			Source: types.SourceLocalMic,
			Result: types.KeywordDetectorResult{Score: 92},
		},
	})

	require.NotNil(t, l.state.active)
	assert.Equal(t, types.SourceLocalMic, l.state.active.source)
	assert.Len(t, l.state.active.dests, 1)
}

func TestHandleKeywordDetected_DifferentSourceRejectedWhileActive(t *testing.T) {
	l := testLoop(t)
	l.state.routes[types.SourceLocalMic] = testRoute(types.SourceLocalMic)
	l.state.routes[types.SourcePTTRemote] = testRoute(types.SourcePTTRemote)

	l.handle(msgqueue.Message{Kind: msgqueue.KindKeywordDetected, Payload: KeywordDetectedPayload{Source: types.SourceLocalMic}})
	require.NotNil(t, l.state.active)
	firstUUID := l.state.active.uuid

	l.handle(msgqueue.Message{Kind: msgqueue.KindKeywordDetected, Payload: KeywordDetectedPayload{Source: types.SourcePTTRemote}})

	assert.Equal(t, firstUUID, l.state.active.uuid, "a session active for one source must reject a trigger from another")
	assert.Equal(t, types.SourceLocalMic, l.state.active.source)
}

func TestHandleKeywordDetected_SameSourceRetriggerIgnoredByDefault(t *testing.T) {
	l := testLoop(t)
	l.state.routes[types.SourceLocalMic] = testRoute(types.SourceLocalMic)

	l.handle(msgqueue.Message{Kind: msgqueue.KindKeywordDetected, Payload: KeywordDetectedPayload{Source: types.SourceLocalMic}})
	require.NotNil(t, l.state.active)
	firstUUID := l.state.active.uuid

	l.handle(msgqueue.Message{Kind: msgqueue.KindKeywordDetected, Payload: KeywordDetectedPayload{Source: types.SourceLocalMic}})

	assert.Equal(t, firstUUID, l.state.active.uuid, "ignore-and-restart-detector must not begin a second session")
}

func TestHandleSessionBegin_BufferingAndStreamingUnifiedAsActive(t *testing.T) {
	// Covers the Open Question decision that a second SESSION_BEGIN while
	// Buffering is rejected exactly like while Streaming: since the
	// invariant only inspects whether a session is active at all (not its
	// destinations' FSM sub-states), a destination still mid-connect
	// behaves identically to one already streaming.
	l := testLoop(t)
	l.state.routes[types.SourceLocalMic] = testRoute(types.SourceLocalMic)
	l.state.routes[types.SourcePTTRemote] = testRoute(types.SourcePTTRemote)

	l.handle(msgqueue.Message{Kind: msgqueue.KindSessionBegin, Payload: SessionBeginPayload{Source: types.SourceLocalMic}})
	require.NotNil(t, l.state.active)

	l.handle(msgqueue.Message{Kind: msgqueue.KindSessionBegin, Payload: SessionBeginPayload{Source: types.SourcePTTRemote}})
	assert.Equal(t, types.SourceLocalMic, l.state.active.source)
}

func TestHandleSessionTerminate_SignalsOnEnqueueNotDisconnect(t *testing.T) {
	l := testLoop(t)
	l.state.routes[types.SourceLocalMic] = testRoute(types.SourceLocalMic)
	l.handle(msgqueue.Message{Kind: msgqueue.KindKeywordDetected, Payload: KeywordDetectedPayload{Source: types.SourceLocalMic}})
	require.NotNil(t, l.state.active)

	sem := msgqueue.NewSemaphore()
	done := make(chan struct{})
	go func() {
		l.handle(msgqueue.Message{Kind: msgqueue.KindSessionTerminate, Done: sem})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handle(SESSION_TERMINATE) did not return")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, sem.Wait(ctx), "SESSION_TERMINATE must signal its semaphore on enqueue, not on actual disconnection")
}

func TestHandlePrivacyModeGetSet_RoundTrip(t *testing.T) {
	l := testLoop(t)

	l.handle(msgqueue.Message{Kind: msgqueue.KindPrivacyModeUpdate, Payload: PrivacyModeUpdatePayload{Enabled: true}})

	sem := msgqueue.NewSemaphore()
	l.handle(msgqueue.Message{Kind: msgqueue.KindPrivacyModeGet, Payload: PrivacyModeGetPayload{}, Done: sem})
	assert.Equal(t, true, sem.Result)
}

func TestHandlePrivacyModeUpdate_TerminatesActiveSession(t *testing.T) {
	l := testLoop(t)
	l.state.routes[types.SourceLocalMic] = testRoute(types.SourceLocalMic)
	l.handle(msgqueue.Message{Kind: msgqueue.KindKeywordDetected, Payload: KeywordDetectedPayload{Source: types.SourceLocalMic}})
	require.NotNil(t, l.state.active)

	l.handle(msgqueue.Message{Kind: msgqueue.KindPrivacyModeUpdate, Payload: PrivacyModeUpdatePayload{Enabled: true}})

	l.state.active.drainAll()
	assert.True(t, l.state.active.dests[0].transport.IsDisconnected() || !l.state.active.dests[0].transport.IsConnected())
}

func TestHandle_UnknownKindDropped(t *testing.T) {
	l := testLoop(t)
	assert.NotPanics(t, func() {
		l.handle(msgqueue.Message{Kind: msgqueue.Kind(999)})
	})
}

func TestDispatchTable_HasEntryForEveryKind(t *testing.T) {
	table := buildDispatchTable()
	for k := msgqueue.KindTerminate; k <= msgqueue.KindAudioEngineEvent; k++ {
		_, ok := table[k]
		assert.True(t, ok, "kind %s has no dispatch entry", k.String())
	}
}
