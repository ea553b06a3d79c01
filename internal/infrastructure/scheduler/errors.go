package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrJobRequired is returned when a trigger is created without a job
	ErrJobRequired = errors.New("scheduler job is required")

	// ErrJobAlreadyRunning is returned when another holder owns the job lock
	ErrJobAlreadyRunning = errors.New("job is already running elsewhere")
)
