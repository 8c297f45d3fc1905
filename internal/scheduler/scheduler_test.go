package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/choreboard/choreboard/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunAtStartAndTicks(t *testing.T) {
	var runs atomic.Int32
	r := New(logging.Discard(), Job{
		Name:       "generate",
		Interval:   10 * time.Millisecond,
		RunAtStart: true,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	r.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	r.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
}

func TestDisabledJobNeverRuns(t *testing.T) {
	var runs atomic.Int32
	r := New(logging.Discard(), Job{
		Name:       "backup",
		Interval:   0,
		RunAtStart: true,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	r.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	r.Stop()
	assert.Zero(t, runs.Load())
}

func TestFailingJobKeepsRunning(t *testing.T) {
	var failing, panicking, healthy atomic.Int32
	r := New(logging.Discard(),
		Job{Name: "expire", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			failing.Add(1)
			return errors.New("database is locked")
		}},
		Job{Name: "sweep", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			panicking.Add(1)
			panic("boom")
		}},
		Job{Name: "generate", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			healthy.Add(1)
			return nil
		}},
	)

	r.Start(context.Background())
	require.Eventually(t, func() bool {
		return failing.Load() >= 2 && panicking.Load() >= 2 && healthy.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	r.Stop()
}

func TestStopCancelsInFlightRun(t *testing.T) {
	started := make(chan struct{})
	var cancelled atomic.Bool
	r := New(logging.Discard(), Job{
		Name:       "backup",
		Interval:   time.Hour,
		RunAtStart: true,
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			cancelled.Store(true)
			return ctx.Err()
		},
	})

	r.Start(context.Background())
	<-started
	r.Stop()
	assert.True(t, cancelled.Load())
}

func TestStartTwiceAndStopWithoutStart(t *testing.T) {
	New(logging.Discard()).Stop()

	var runs atomic.Int32
	r := New(logging.Discard(), Job{Name: "once", Interval: time.Hour, RunAtStart: true, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})
	r.Start(context.Background())
	r.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	r.Stop()
	r.Stop()
	assert.Equal(t, int32(1), runs.Load())
}
