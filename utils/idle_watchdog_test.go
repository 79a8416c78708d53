package utils

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdleWatchdogFires(t *testing.T) {
	var fired atomic.Int32
	w := NewIdleWatchdog(30*time.Millisecond, func() { fired.Add(1) })
	w.Start(context.Background())

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestIdleWatchdogTouchAndStop(t *testing.T) {
	var fired atomic.Int32
	w := NewIdleWatchdog(80*time.Millisecond, func() { fired.Add(1) })
	w.Start(context.Background())

	for i := 0; i < 5; i++ {
		time.Sleep(30 * time.Millisecond)
		w.Touch()
	}
	assert.Equal(t, int32(0), fired.Load())

	w.Stop()
	w.Stop()
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestStatusManager(t *testing.T) {
	s := NewStatusManager()
	assert.True(t, s.Is(Idle))
	s.Set(Stopped)
	assert.True(t, s.Is(Starting, Stopped))
	assert.False(t, s.Is(Terminated))
	assert.Equal(t, Stopped, s.Get())
}

func TestList2set(t *testing.T) {
	set := List2set([]string{"pdb.py", "bdb.py", "pdb.py"})
	assert.Equal(t, 2, set.Size())
	assert.True(t, set.Contains("bdb.py"))
}
