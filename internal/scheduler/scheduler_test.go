package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunNowSkipsWhileRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var runs int32

	s := New("sweep", func(ctx context.Context) error {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(started)
			<-release
		}
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.True(t, s.RunNow())
	}()

	<-started
	assert.False(t, s.RunNow(), "overlapping run must be skipped")
	close(release)
	wg.Wait()

	assert.True(t, s.RunNow())
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
}

func TestRunNowLogsJobErrors(t *testing.T) {
	s := New("sweep", func(ctx context.Context) error { return errors.New("boom") })
	assert.True(t, s.RunNow())
}

func TestRegisterRejectsInvalidSpec(t *testing.T) {
	s := New("sweep", func(ctx context.Context) error { return nil })
	assert.Error(t, s.Register("every fifteen minutes"))
	assert.Error(t, s.Register("0 */15 * * * *"), "seconds field is not accepted")
	require.NoError(t, s.Register("*/15 * * * *"))
	assert.Len(t, s.Cron.Entries(), 1)
}

func TestStopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	s := New("sweep", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	s.Start()

	done := make(chan bool)
	go func() { done <- s.RunNow() }()
	<-started

	s.Stop()
	select {
	case ran := <-done:
		assert.True(t, ran)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not observe cancellation")
	}
	assert.False(t, s.RunNow(), "no runs after stop")
}
