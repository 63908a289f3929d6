package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartStopOnce_StartRunsExactlyOnce(t *testing.T) {
	var s StartStopOnce
	var calls int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.StartOnce("test", func() error {
				mu.Lock()
				calls++
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	assert.True(t, s.Started())
	assert.True(t, s.IsRunning())
}

func TestStartStopOnce_StopAfterStart(t *testing.T) {
	var s StartStopOnce
	require := assert.New(t)

	require.NoError(s.StartOnce("test", func() error { return nil }))
	require.NoError(s.StopOnce("test", func() error { return nil }))

	require.True(s.Stopped())
	require.False(s.IsRunning())
}

func TestStartStopOnce_StopWithoutStartIsNoop(t *testing.T) {
	var s StartStopOnce
	assert.NoError(t, s.StopOnce("test", func() error { return nil }))
	assert.False(t, s.Stopped())
}

func TestStartStopOnce_StartFailurePropagates(t *testing.T) {
	var s StartStopOnce
	err := s.StartOnce("test", func() error { return assert.AnError })
	assert.Error(t, err)
	assert.False(t, s.Started())
}
