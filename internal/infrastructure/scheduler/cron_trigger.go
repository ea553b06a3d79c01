package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of work fired by a DailyTrigger
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Lock guards a job run so only one holder executes it at a time.
// cache.RedisLock and cache.InMemoryLock satisfy it.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// JobMetrics records the outcome of each job run
type JobMetrics interface {
	RecordJobRun(ctx context.Context, job string, duration time.Duration, err error)
}

// DailyTriggerConfig holds configuration for the daily trigger
type DailyTriggerConfig struct {
	// Hour and Minute are the wall-clock time of the daily run in Location
	Hour   int
	Minute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration

	// Location is the timezone used for the schedule and the calendar day
	Location *time.Location
}

// DefaultDailyTriggerConfig returns a midnight UTC schedule checked every minute
func DefaultDailyTriggerConfig() DailyTriggerConfig {
	return DailyTriggerConfig{
		Hour:          0,
		Minute:        0,
		CheckInterval: time.Minute,
		Location:      time.UTC,
	}
}

func (c DailyTriggerConfig) validate() error {
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", ErrInvalidConfig, c.Hour)
	}
	if c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range", ErrInvalidConfig, c.Minute)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// DailyTriggerOption customizes a DailyTrigger
type DailyTriggerOption func(*DailyTrigger)

// WithLock makes the trigger take the lock around each run
func WithLock(lock Lock) DailyTriggerOption {
	return func(t *DailyTrigger) {
		t.lock = lock
	}
}

// WithJobMetrics attaches a metrics recorder
func WithJobMetrics(metrics JobMetrics) DailyTriggerOption {
	return func(t *DailyTrigger) {
		t.metrics = metrics
	}
}

// WithClock replaces time.Now, used by tests
func WithClock(now func() time.Time) DailyTriggerOption {
	return func(t *DailyTrigger) {
		t.now = now
	}
}

// DailyTrigger fires a job once per calendar day at a configured time
type DailyTrigger struct {
	config  DailyTriggerConfig
	job     Job
	lock    Lock
	metrics JobMetrics
	logger  *zap.Logger
	now     func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string // Track which date we last ran for
}

// NewDailyTrigger creates a new daily trigger
func NewDailyTrigger(config DailyTriggerConfig, job Job, logger *zap.Logger, opts ...DailyTriggerOption) (*DailyTrigger, error) {
	if job == nil {
		return nil, ErrJobRequired
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &DailyTrigger{
		config: config,
		job:    job,
		logger: logger.With(zap.String("job", job.Name())),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Start starts the trigger loop
func (t *DailyTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Daily trigger started",
		zap.Int("hour", t.config.Hour),
		zap.Int("minute", t.config.Minute),
		zap.String("timezone", t.config.Location.String()),
		zap.Duration("check_interval", t.config.CheckInterval),
	)

	return nil
}

// Stop stops the trigger and waits for an in-flight run to finish
func (t *DailyTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Daily trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop checks periodically if it's time to run the job
func (t *DailyTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	// A process started inside the window runs before the first tick
	t.checkAndTrigger(ctx)

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger runs the job if the scheduled time has been reached and
// it has not run yet today. It reports whether the job was started.
func (t *DailyTrigger) checkAndTrigger(ctx context.Context) bool {
	now := t.now().In(t.config.Location)
	currentDate := now.Format("2006-01-02")

	t.mu.Lock()
	if t.lastRunDate == currentDate {
		t.mu.Unlock()
		return false
	}
	t.mu.Unlock()

	if !t.isDue(now) {
		return false
	}

	t.mu.Lock()
	t.lastRunDate = currentDate
	t.mu.Unlock()

	t.logger.Info("Triggering daily job", zap.String("date", currentDate))
	if err := t.run(ctx, false); err != nil {
		if errors.Is(err, ErrJobAlreadyRunning) {
			t.logger.Info("Daily job skipped, lock held by another instance")
		} else {
			t.logger.Error("Daily job failed", zap.Error(err))
		}
	}
	return true
}

// isDue reports whether now falls inside the window that opens at the
// scheduled time and lasts one check interval (at least a minute), so a
// late tick still fires but a restart later in the day does not.
func (t *DailyTrigger) isDue(now time.Time) bool {
	scheduled := time.Date(now.Year(), now.Month(), now.Day(),
		t.config.Hour, t.config.Minute, 0, 0, t.config.Location)
	window := t.config.CheckInterval
	if window < time.Minute {
		window = time.Minute
	}
	return !now.Before(scheduled) && now.Before(scheduled.Add(window))
}

// RunOnce runs the job immediately under the trigger's lock and releases
// the lock afterwards
func (t *DailyTrigger) RunOnce(ctx context.Context) error {
	return t.run(ctx, true)
}

// run executes the job. Scheduled runs keep the lock until its TTL expires
// so other instances ticking inside the same window skip the day.
func (t *DailyTrigger) run(ctx context.Context, release bool) error {
	if t.lock != nil {
		acquired, err := t.lock.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire job lock: %w", err)
		}
		if !acquired {
			return ErrJobAlreadyRunning
		}
		if release {
			defer func() {
				if err := t.lock.Release(context.WithoutCancel(ctx)); err != nil {
					t.logger.Warn("Failed to release job lock", zap.Error(err))
				}
			}()
		}
	}

	start := time.Now()
	err := t.job.Run(ctx)
	duration := time.Since(start)

	if t.metrics != nil {
		t.metrics.RecordJobRun(ctx, t.job.Name(), duration, err)
	}

	if err != nil {
		return fmt.Errorf("job %s: %w", t.job.Name(), err)
	}
	t.logger.Info("Daily job completed", zap.Duration("duration", duration))
	return nil
}

// LastRunDate returns the calendar day of the last triggered run
func (t *DailyTrigger) LastRunDate() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRunDate
}
