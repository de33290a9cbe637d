// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package callback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rapidaai/sessionrouter/internal/types"
)

func TestRegistry_SetGetDelete(t *testing.T) {
	r := NewRegistry()
	key := Key{Source: types.SourceLocalMic, DstIndex: 0}

	called := false
	r.Set(key, Callbacks{
		StreamBegin: func(StreamBeginArgs) { called = true },
	})

	cb := r.Get(key)
	assert.NotNil(t, cb.StreamBegin)
	cb.StreamBegin(StreamBeginArgs{})
	assert.True(t, called)

	r.Delete(key)
	assert.Nil(t, r.Get(key).StreamBegin)
}

func TestRegistry_GetUnsetKeyReturnsZeroValue(t *testing.T) {
	r := NewRegistry()
	cb := r.Get(Key{Source: types.SourcePTTRemote, DstIndex: 1})
	assert.Nil(t, cb.SessionBegin)
}

func TestKey_String(t *testing.T) {
	k := Key{Source: types.SourceLocalMic, DstIndex: 2}
	assert.Contains(t, k.String(), "2")
}
