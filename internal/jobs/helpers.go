// Package jobs defines River Queue job types for async processing.
//
// Jobs carry the planned notice itself; delivery never reads workflow state,
// so a job observes exactly the transition that enqueued it.
//
// Import Path: safeguard.io/safeguard/internal/jobs
package jobs

import (
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"safeguard.io/safeguard/internal/notification"
)

// Deps holds what the workers in this package need.
type Deps struct {
	Sender          notification.Sender
	Purger          NotificationPurger // Optional: nil disables inbox cleanup
	Retention       time.Duration
	DeliveryTimeout time.Duration
}

// Register adds every worker to a new river.Workers and returns the
// periodic jobs to schedule with them.
func Register(deps Deps) (*river.Workers, []*river.PeriodicJob, error) {
	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, NewNotificationDeliveryWorker(deps.Sender, deps.DeliveryTimeout)); err != nil {
		return nil, nil, fmt.Errorf("register notification delivery worker: %w", err)
	}

	var periodic []*river.PeriodicJob
	if deps.Purger != nil {
		if err := river.AddWorkerSafely(workers, NewNotificationCleanupWorker(deps.Purger, deps.Retention)); err != nil {
			return nil, nil, fmt.Errorf("register notification cleanup worker: %w", err)
		}
		periodic = append(periodic, river.NewPeriodicJob(
			river.PeriodicInterval(24*time.Hour),
			func() (river.JobArgs, *river.InsertOpts) {
				return NotificationCleanupArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		))
	}
	return workers, periodic, nil
}
