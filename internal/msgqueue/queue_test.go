// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package msgqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPop(t *testing.T) {
	q := New(2)
	require.NoError(t, q.Push(Message{Kind: KindPowerModeUpdate}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, KindPowerModeUpdate, msg.Kind)
}

func TestPush_FullReturnsError(t *testing.T) {
	q := New(1)
	require.NoError(t, q.Push(Message{Kind: KindTerminate}))
	err := q.Push(Message{Kind: KindTerminate})
	assert.ErrorIs(t, err, ErrFull)
}

func TestPush_ClosedReturnsError(t *testing.T) {
	q := New(1)
	q.Close()
	err := q.Push(Message{Kind: KindTerminate})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDefaultCapacity(t *testing.T) {
	q := New(0)
	for i := 0; i < DefaultCapacity; i++ {
		require.NoError(t, q.Push(Message{Kind: KindThreadPoll}))
	}
	assert.ErrorIs(t, q.Push(Message{Kind: KindThreadPoll}), ErrFull)
}

func TestSemaphore_SignalThenWait(t *testing.T) {
	sem := NewSemaphore()
	sem.Signal()
	sem.Signal() // idempotent, must not block or panic

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, sem.Wait(ctx))
}

func TestSemaphore_WaitBlocksUntilSignal(t *testing.T) {
	sem := NewSemaphore()
	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- sem.Wait(ctx)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Signal")
	case <-time.After(20 * time.Millisecond):
	}

	sem.Signal()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Signal")
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "TERMINATE", KindTerminate.String())
	assert.Equal(t, "THREAD_POLL", KindThreadPoll.String())
	assert.Equal(t, "UNKNOWN", Kind(999).String())
}
