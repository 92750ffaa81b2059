package scheduler

import (
	"errors"

	"github.com/erp/reservation/internal/domain/shared"
)

// CodeSweepInProgress is returned when a sweep is requested while another one is running
const CodeSweepInProgress = "SWEEP_IN_PROGRESS"

var (
	// ErrSweepInProgress is returned by TriggerNow when a sweep is already running
	ErrSweepInProgress = shared.NewDomainError(CodeSweepInProgress, "An expiration sweep is already running")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
