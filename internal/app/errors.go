package service

import (
	"errors"
	"fmt"

	"github.com/okian/follicle/internal/adapters/mq/queue"
	"github.com/okian/follicle/internal/adapters/repository"
)

// Sentinel kinds returned by the service.
var (
	ErrNotStarted          = errors.New("service not started")
	ErrStopped             = errors.New("service stopped")
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrInvalidProfile      = errors.New("invalid profile")
	ErrInvalidImage        = errors.New("invalid image")

	ErrNotFound     = repository.ErrNotFound
	ErrConflict     = repository.ErrConflict
	ErrBackpressure = queue.ErrBackpressure
)

// DuplicateError reports a replayed idempotency key. ReportID is empty while
// the first submission is still running.
type DuplicateError struct {
	Key      string
	ReportID string
}

func (e *DuplicateError) Error() string {
	if e.ReportID == "" {
		return fmt.Sprintf("idempotency key %q already in progress", e.Key)
	}
	return fmt.Sprintf("idempotency key %q already produced report %s", e.Key, e.ReportID)
}

// Is makes errors.Is(err, ErrDuplicateSubmission) match.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateSubmission
}
