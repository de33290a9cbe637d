// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type state int

const (
	stIdle state = iota
	stRunning
	stDone
)

type event int

const (
	evStart event = iota
	evFinish
)

func newTestMachine() *Machine[state, event] {
	table := map[state]map[event]Transition[state]{
		stIdle:    {evStart: {To: stRunning}},
		stRunning: {evFinish: {To: stDone}},
	}
	return New(stIdle, table, 4)
}

func TestFireAndDrain(t *testing.T) {
	m := newTestMachine()
	var seen []string

	assert.True(t, m.Fire(evStart))
	m.Drain(func(from state, ev event, to state) {
		seen = append(seen, "transition")
	}, nil)
	assert.Equal(t, stRunning, m.State())
	assert.Equal(t, []string{"transition"}, seen)
}

func TestDrain_UnhandledEvent(t *testing.T) {
	m := newTestMachine()
	var unhandled []event

	m.Fire(evFinish) // no transition from stIdle on evFinish
	m.Drain(nil, func(s state, e event) { unhandled = append(unhandled, e) })

	assert.Equal(t, stIdle, m.State(), "state must not change on an unhandled event")
	assert.Equal(t, []event{evFinish}, unhandled)
}

func TestFire_QueueBounded(t *testing.T) {
	m := New(stIdle, map[state]map[event]Transition[state]{}, 2)
	assert.True(t, m.Fire(evStart))
	assert.True(t, m.Fire(evStart))
	assert.False(t, m.Fire(evStart), "queue at capacity must reject further events")
	assert.Equal(t, 2, m.Pending())
}

func TestReset(t *testing.T) {
	m := newTestMachine()
	m.Fire(evStart)
	m.Drain(nil, nil)
	assert.Equal(t, stRunning, m.State())

	m.Fire(evFinish)
	m.Reset(stIdle)
	assert.Equal(t, stIdle, m.State())
	assert.Equal(t, 0, m.Pending())
}

func TestDrain_FIFOOrder(t *testing.T) {
	table := map[state]map[event]Transition[state]{
		stIdle:    {evStart: {To: stRunning}},
		stRunning: {evFinish: {To: stDone}, evStart: {To: stRunning}},
	}
	m := New(stIdle, table, 4)
	m.Fire(evStart)
	m.Fire(evStart)
	m.Fire(evFinish)

	var order []state
	m.Drain(func(from state, ev event, to state) { order = append(order, to) }, nil)
	assert.Equal(t, []state{stRunning, stRunning, stDone}, order)
}
