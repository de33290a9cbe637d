// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnectBackoff_ScalesWithAttempt(t *testing.T) {
	always1 := func() float64 { return 1 }

	d0 := ConnectBackoff(100*time.Millisecond, 0, time.Hour, always1)
	d1 := ConnectBackoff(100*time.Millisecond, 1, time.Hour, always1)
	d2 := ConnectBackoff(100*time.Millisecond, 2, time.Hour, always1)

	assert.Equal(t, 100*time.Millisecond, d0)
	assert.Equal(t, 200*time.Millisecond, d1)
	assert.Equal(t, 400*time.Millisecond, d2)
}

func TestConnectBackoff_CapsToRemainingBudget(t *testing.T) {
	always1 := func() float64 { return 1 }
	d := ConnectBackoff(time.Hour, 10, 5*time.Second, always1)
	assert.Equal(t, 5*time.Second, d)
}

func TestConnectBackoff_ZeroRandomYieldsZeroDelay(t *testing.T) {
	never := func() float64 { return 0 }
	d := ConnectBackoff(time.Second, 5, time.Minute, never)
	assert.Equal(t, time.Duration(0), d)
}

func TestConnectBackoff_NegativeAttemptTreatedAsZero(t *testing.T) {
	always1 := func() float64 { return 1 }
	d := ConnectBackoff(50*time.Millisecond, -3, time.Hour, always1)
	assert.Equal(t, 50*time.Millisecond, d)
}
