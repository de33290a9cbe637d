// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package commons

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApplicationLogger(t *testing.T) {
	logger, err := NewApplicationLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)

	logger.Infow("hello", "key", "value")
	logger.Debugf("debug %d", 1)
	_ = logger.Sync()
}

func TestNewApplicationLoggerWithOptions_Debug(t *testing.T) {
	logger, err := NewApplicationLoggerWithOptions(Options{Debug: true})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
