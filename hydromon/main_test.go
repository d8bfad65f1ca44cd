package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/itohio/hydromon/pkg/acquire"
	"github.com/itohio/hydromon/pkg/frame"
	"github.com/itohio/hydromon/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type flakyDevice struct {
	failures int32
	attempts atomic.Int32
}

func (d *flakyDevice) Connect() error {
	if d.attempts.Add(1) <= d.failures {
		return errors.New("no such port")
	}
	return nil
}
func (d *flakyDevice) Close() error           { return nil }
func (d *flakyDevice) IsConnected() bool      { return d.attempts.Load() > d.failures }
func (d *flakyDevice) Read() (float64, error) { return 0, nil }
func (d *flakyDevice) Stats() frame.Stats     { return frame.Stats{} }

func TestConnectWithRetry_FirstAttempt(t *testing.T) {
	d := &flakyDevice{}
	connectWithRetry(context.Background(), "test", d, 3)
	assert.Equal(t, int32(1), d.attempts.Load())
	assert.True(t, d.IsConnected())
}

func TestConnectWithRetry_Cancelled(t *testing.T) {
	d := &flakyDevice{failures: 1000}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		connectWithRetry(ctx, "test", d, 3)
	}()

	require.Eventually(t, func() bool { return d.attempts.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("connectWithRetry did not return after cancel")
	}
	assert.False(t, d.IsConnected())
}

func TestReadingErrors(t *testing.T) {
	set := sensor.NewSet()
	set.Put(sensor.TotalDissolvedSolids, 480)
	set.Put(sensor.Temperature, 21)

	st := acquire.Stats{LastErrors: map[string]string{"ph": "adc: conversion failed"}}
	err := readingErrors(set, st)
	require.Error(t, err)

	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.Equal(t, "water_level: no reading", errs[0].Error())
	assert.Equal(t, "ph: adc: conversion failed", errs[1].Error())

	set.Put(sensor.WaterLevel, 40)
	set.Put(sensor.Acidity, 6.5)
	assert.NoError(t, readingErrors(set, st))
}
