package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "test_job" }

func (j *countingJob) Run(_ context.Context) error {
	j.runs.Add(1)
	return j.err
}

type stubLock struct {
	mu       sync.Mutex
	held     bool
	err      error
	releases int
}

func (l *stubLock) Acquire(_ context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *stubLock) Release(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.releases++
	return nil
}

type recordedRun struct {
	job string
	err error
}

type stubMetrics struct {
	mu   sync.Mutex
	runs []recordedRun
}

func (m *stubMetrics) RecordJobRun(_ context.Context, job string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, recordedRun{job: job, err: err})
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func TestNewDailyTrigger_Validation(t *testing.T) {
	job := &countingJob{}

	_, err := NewDailyTrigger(DefaultDailyTriggerConfig(), nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrJobRequired)

	tests := []struct {
		name   string
		modify func(*DailyTriggerConfig)
	}{
		{"hour too large", func(c *DailyTriggerConfig) { c.Hour = 24 }},
		{"negative minute", func(c *DailyTriggerConfig) { c.Minute = -1 }},
		{"zero interval", func(c *DailyTriggerConfig) { c.CheckInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDailyTriggerConfig()
			tt.modify(&cfg)
			_, err := NewDailyTrigger(cfg, job, zap.NewNop())
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	cfg := DefaultDailyTriggerConfig()
	cfg.Location = nil
	trigger, err := NewDailyTrigger(cfg, job, nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, trigger.config.Location)
}

func TestDailyTrigger_CheckAndTrigger(t *testing.T) {
	clock := &fakeClock{}
	job := &countingJob{}
	metrics := &stubMetrics{}
	cfg := DailyTriggerConfig{Hour: 0, Minute: 0, CheckInterval: time.Minute, Location: time.UTC}

	trigger, err := NewDailyTrigger(cfg, job, zap.NewNop(),
		WithClock(clock.Now), WithJobMetrics(metrics))
	require.NoError(t, err)
	ctx := context.Background()

	clock.Set(time.Date(2024, 5, 31, 23, 59, 30, 0, time.UTC))
	assert.False(t, trigger.checkAndTrigger(ctx), "before the scheduled minute")

	clock.Set(time.Date(2024, 6, 1, 0, 0, 10, 0, time.UTC))
	assert.True(t, trigger.checkAndTrigger(ctx))
	assert.Equal(t, "2024-06-01", trigger.LastRunDate())

	clock.Set(time.Date(2024, 6, 1, 0, 0, 50, 0, time.UTC))
	assert.False(t, trigger.checkAndTrigger(ctx), "second tick in the same day")

	clock.Set(time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC))
	assert.False(t, trigger.checkAndTrigger(ctx), "outside the window")

	clock.Set(time.Date(2024, 6, 2, 0, 0, 5, 0, time.UTC))
	assert.True(t, trigger.checkAndTrigger(ctx))

	assert.Equal(t, int32(2), job.runs.Load())
	require.Len(t, metrics.runs, 2)
	assert.Equal(t, "test_job", metrics.runs[0].job)
	assert.NoError(t, metrics.runs[0].err)
}

func TestDailyTrigger_LateRestartSkipsDay(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 0, 3, 0, 0, time.UTC)}
	job := &countingJob{}
	trigger, err := NewDailyTrigger(DefaultDailyTriggerConfig(), job, zap.NewNop(), WithClock(clock.Now))
	require.NoError(t, err)

	assert.False(t, trigger.checkAndTrigger(context.Background()))
	assert.Zero(t, job.runs.Load())
}

func TestDailyTrigger_UsesConfiguredTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*60*60)
	clock := &fakeClock{}
	job := &countingJob{}
	cfg := DailyTriggerConfig{Hour: 0, Minute: 0, CheckInterval: time.Minute, Location: loc}
	trigger, err := NewDailyTrigger(cfg, job, zap.NewNop(), WithClock(clock.Now))
	require.NoError(t, err)

	// 17:00 UTC is midnight in UTC+7
	clock.Set(time.Date(2024, 6, 1, 17, 0, 0, 0, time.UTC))
	assert.True(t, trigger.checkAndTrigger(context.Background()))
	assert.Equal(t, "2024-06-02", trigger.LastRunDate())
}

func TestDailyTrigger_Lock(t *testing.T) {
	t.Run("scheduled run keeps the lock", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
		lock := &stubLock{}
		job := &countingJob{}
		trigger, err := NewDailyTrigger(DefaultDailyTriggerConfig(), job, zap.NewNop(),
			WithClock(clock.Now), WithLock(lock))
		require.NoError(t, err)

		assert.True(t, trigger.checkAndTrigger(context.Background()))
		assert.Equal(t, int32(1), job.runs.Load())
		assert.True(t, lock.held)
		assert.Zero(t, lock.releases)
	})

	t.Run("held lock skips the run", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
		lock := &stubLock{held: true}
		job := &countingJob{}
		trigger, err := NewDailyTrigger(DefaultDailyTriggerConfig(), job, zap.NewNop(),
			WithClock(clock.Now), WithLock(lock))
		require.NoError(t, err)

		assert.True(t, trigger.checkAndTrigger(context.Background()))
		assert.Zero(t, job.runs.Load())
		assert.Equal(t, "2024-06-01", trigger.LastRunDate())
	})

	t.Run("manual run releases the lock", func(t *testing.T) {
		lock := &stubLock{}
		job := &countingJob{}
		trigger, err := NewDailyTrigger(DefaultDailyTriggerConfig(), job, zap.NewNop(), WithLock(lock))
		require.NoError(t, err)

		require.NoError(t, trigger.RunOnce(context.Background()))
		assert.False(t, lock.held)
		assert.Equal(t, 1, lock.releases)
	})

	t.Run("lock error", func(t *testing.T) {
		lock := &stubLock{err: errors.New("redis down")}
		job := &countingJob{}
		trigger, err := NewDailyTrigger(DefaultDailyTriggerConfig(), job, zap.NewNop(), WithLock(lock))
		require.NoError(t, err)

		err = trigger.RunOnce(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis down")
		assert.Zero(t, job.runs.Load())
	})

	t.Run("already running", func(t *testing.T) {
		lock := &stubLock{held: true}
		trigger, err := NewDailyTrigger(DefaultDailyTriggerConfig(), &countingJob{}, zap.NewNop(), WithLock(lock))
		require.NoError(t, err)

		assert.ErrorIs(t, trigger.RunOnce(context.Background()), ErrJobAlreadyRunning)
	})
}

func TestDailyTrigger_RunOnceJobError(t *testing.T) {
	job := &countingJob{err: errors.New("boom")}
	metrics := &stubMetrics{}
	trigger, err := NewDailyTrigger(DefaultDailyTriggerConfig(), job, zap.NewNop(), WithJobMetrics(metrics))
	require.NoError(t, err)

	err = trigger.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test_job")
	require.Len(t, metrics.runs, 1)
	assert.EqualError(t, metrics.runs[0].err, "boom")
}

func TestDailyTrigger_StartStop(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	job := &countingJob{}
	cfg := DailyTriggerConfig{Hour: 0, Minute: 0, CheckInterval: 5 * time.Millisecond, Location: time.UTC}
	trigger, err := NewDailyTrigger(cfg, job, zap.NewNop(), WithClock(clock.Now))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, trigger.Start(ctx))
	require.NoError(t, trigger.Start(ctx), "second start is a no-op")

	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Further ticks on the same day do not re-run the job
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(stopCtx))
	require.NoError(t, trigger.Stop(stopCtx), "second stop is a no-op")
}

func TestDailyTrigger_StartInsideWindowRunsImmediately(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 0, 0, 20, 0, time.UTC)}
	job := &countingJob{}
	trigger, err := NewDailyTrigger(DefaultDailyTriggerConfig(), job, zap.NewNop(), WithClock(clock.Now))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, trigger.Start(ctx))
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		require.NoError(t, trigger.Stop(stopCtx))
	}()

	// The first tick is a minute away; only the start-up check can fire here
	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "2024-06-01", trigger.LastRunDate())
}
