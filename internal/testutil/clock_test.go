package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepClock_Defaults(t *testing.T) {
	clock := NewStepClock(time.Time{}, 0)

	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch.Add(time.Second), clock.Now())
	assert.Equal(t, int64(2), clock.Calls())
}

func TestStepClock_CustomStep(t *testing.T) {
	start := time.Date(2020, time.May, 4, 12, 0, 0, 0, time.UTC)
	clock := NewStepClock(start, 250*time.Millisecond)

	assert.Equal(t, start.UnixMilli(), clock.Now().UnixMilli())
	assert.Equal(t, start.UnixMilli()+250, clock.Now().UnixMilli())
	assert.Equal(t, start.UnixMilli()+500, clock.Now().UnixMilli())
}

func TestStepClock_Reset(t *testing.T) {
	clock := NewStepClock(time.Time{}, time.Minute)
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	clock := NewStepClock(time.Time{}, time.Millisecond)
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				ms := clock.Now().UnixMilli()
				mu.Lock()
				require.False(t, seen[ms], "duplicate timestamp %d", ms)
				seen[ms] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, numGoroutines*callsPerGoroutine)
}
