package sched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManualOnce(t *testing.T) {
	m := NewManual(epoch)
	fired := 0
	m.ScheduleOnce(3*time.Second, func() { fired++ })

	m.Advance(2 * time.Second)
	assert.Equal(t, 0, fired)
	m.Advance(time.Second)
	assert.Equal(t, 1, fired)
	m.Advance(time.Minute)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, m.Pending())
}

func TestManualRepeatingStopInsideCallback(t *testing.T) {
	m := NewManual(epoch)
	ticks := 0
	var timer Timer
	timer = m.ScheduleRepeating(time.Second, func() {
		ticks++
		if ticks == 3 {
			timer.Stop()
		}
	})

	m.Advance(10 * time.Second)
	assert.Equal(t, 3, ticks)
	assert.Equal(t, epoch.Add(10*time.Second), m.Now())
}

func TestManualOrder(t *testing.T) {
	m := NewManual(epoch)
	var order []string
	m.ScheduleOnce(2*time.Second, func() { order = append(order, "b") })
	m.ScheduleOnce(time.Second, func() { order = append(order, "a") })
	m.ScheduleOnce(2*time.Second, func() {
		order = append(order, "c")
		m.ScheduleOnce(time.Second, func() { order = append(order, "d") })
	})

	m.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestLoopCallAndTimers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLoop(16, nil)
	go func() { _ = l.Run(ctx) }()

	fired := make(chan struct{})
	l.ScheduleOnce(10*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("ScheduleOnce: timer did not fire")
	}

	stopped := l.ScheduleOnce(10*time.Millisecond, func() { t.Error("stopped timer fired") })
	stopped.Stop()

	count := 0
	var rep Timer
	done := make(chan struct{})
	rep = l.ScheduleRepeating(5*time.Millisecond, func() {
		count++
		if count == 3 {
			rep.Stop()
			close(done)
		}
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ScheduleRepeating: timer did not tick")
	}

	var got int
	require.NoError(t, l.Call(ctx, func() { got = count }))
	assert.Equal(t, 3, got)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, l.Call(ctx, func() { got = count }))
	assert.Equal(t, 3, got)
}

func TestLoopPostAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop(1, nil)
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	cancel()
	<-errc

	assert.ErrorIs(t, l.Post(func() {}), ErrStopped)
}
