package adapters

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCronScheduler_AfterFiresOnce(t *testing.T) {
	s := NewCronScheduler()
	defer s.Stop()

	var fired atomic.Int32
	err := s.After(10*time.Millisecond, func() { fired.Add(1) })
	assert.NoError(t, err)

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestCronScheduler_StopCancelsPendingWork(t *testing.T) {
	s := NewCronScheduler()

	var fired atomic.Int32
	_ = s.After(50*time.Millisecond, func() { fired.Add(1) })
	s.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	// Scheduling after Stop is a no-op.
	_ = s.After(time.Millisecond, func() { fired.Add(1) })
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}
