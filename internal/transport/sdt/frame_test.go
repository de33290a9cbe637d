// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package sdt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, frameTagBinary, []byte("pcm-data")))

	tag, payload, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, frameTagBinary, tag)
	assert.Equal(t, []byte("pcm-data"), payload)
}

func TestWriteReadFrame_MultipleFramesPreserveOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, frameTagText, []byte("first")))
	require.NoError(t, writeFrame(&buf, frameTagBinary, []byte("second")))

	tag1, p1, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, frameTagText, tag1)
	assert.Equal(t, []byte("first"), p1)

	tag2, p2, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, frameTagBinary, tag2)
	assert.Equal(t, []byte("second"), p2)
}

func TestReadFrame_RejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	header := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x00}
	buf.Write(header)

	_, _, err := readFrame(&buf)
	assert.Error(t, err)
}

func TestReadFrame_EmptyPayloadStillCarriesTag(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, frameTagBinary, nil))

	tag, payload, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, frameTagBinary, tag)
	assert.Empty(t, payload)
}
