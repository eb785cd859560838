package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_AdvancesByStep(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewClock(base, time.Second)

	assert.Equal(t, base, clock.Now())
	assert.Equal(t, base.Add(time.Second), clock.Now())
	assert.Equal(t, base.Add(2*time.Second), clock.Now())
	assert.Equal(t, int64(3), clock.Calls())
}

func TestClock_Reset(t *testing.T) {
	clock := NewDefaultClock()
	first := clock.Now()
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, int64(0), clock.Calls())
	assert.Equal(t, first, clock.Now())
}

func TestClock_ThreadSafe(t *testing.T) {
	clock := NewDefaultClock()
	const goroutines = 50
	const callsEach = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsEach; j++ {
				clock.Now()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*callsEach), clock.Calls())
}

func TestCallerN_Deterministic(t *testing.T) {
	assert.Equal(t, FixedCaller(), CallerN(1))
	assert.NotEqual(t, CallerN(1), CallerN(2))
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", FixedCaller().String())
	assert.Equal(t, "00000000-0000-0000-0000-0000000000ff", CallerN(255).String())
}
