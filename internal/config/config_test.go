// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig_AppliesDefaults(t *testing.T) {
	v, err := InitConfig()
	require.NoError(t, err)

	cfg, err := GetApplicationConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "sessionrouterd", cfg.Name)
	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.PowerModeFull.TimeoutConnect)
	assert.Equal(t, 20*time.Second, cfg.PowerModeLow.TimeoutConnect)
}

func TestInitConfig_EnvOverridesDefault(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PORT", "7000")

	v, err := InitConfig()
	require.NoError(t, err)
	cfg, err := GetApplicationConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 7000, cfg.Port)
}

func TestDecodeTransportParamsOverride(t *testing.T) {
	raw := map[string]any{
		"timeout_connect": "5s",
		"backoff_delay":   "250ms",
		"debug":           true,
	}

	override, err := DecodeTransportParamsOverride(raw)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, override.TimeoutConnect)
	assert.Equal(t, 250*time.Millisecond, override.BackoffDelay)
	assert.True(t, override.Debug)
}

func TestDecodeTransportParamsOverride_EmptyMapYieldsZeroValue(t *testing.T) {
	override, err := DecodeTransportParamsOverride(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), override.TimeoutConnect)
}
