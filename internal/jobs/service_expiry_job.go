package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ServiceExpiryJobName is the name of the service expiry check job
const ServiceExpiryJobName = "service_expiry"

// DefaultExpiryHorizonDays is how far ahead the job looks for services
// reaching their end date
const DefaultExpiryHorizonDays = 30

// ExpiryNotifier defines the interface for flagging services that are about
// to reach their end date. This interface allows the job to call the service
// without importing the service package directly.
type ExpiryNotifier interface {
	// NotifyExpiring notifies the owning sales rep for every active service
	// ending within the given number of days. Returns the number of
	// notifications sent.
	NotifyExpiring(ctx context.Context, withinDays int) (int, error)
}

// ServiceExpiryJob checks for subscriptions approaching their end date and
// notifies the owning sales reps so renewals get chased before cutoff.
type ServiceExpiryJob struct {
	notifier    ExpiryNotifier
	horizonDays int
	logger      *zap.Logger
	timeout     time.Duration
}

// NewServiceExpiryJob creates a new service expiry job.
// The timeout controls how long one run is allowed to take.
func NewServiceExpiryJob(notifier ExpiryNotifier, horizonDays int, logger *zap.Logger, timeout time.Duration) *ServiceExpiryJob {
	if horizonDays <= 0 {
		horizonDays = DefaultExpiryHorizonDays
	}
	return &ServiceExpiryJob{
		notifier:    notifier,
		horizonDays: horizonDays,
		logger:      logger,
		timeout:     timeout,
	}
}

// Run executes the expiry check.
// This is called by the scheduler according to the cron expression.
func (j *ServiceExpiryJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	j.logger.Info("starting service expiry check",
		zap.Int("horizon_days", j.horizonDays))

	notified, err := j.notifier.NotifyExpiring(ctx, j.horizonDays)
	if err != nil {
		j.logger.Error("service expiry check failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("service expiry check completed",
		zap.Int("notified", notified),
		zap.Duration("duration", time.Since(start)))
}

// RegisterServiceExpiryJob creates the expiry job and adds it to the scheduler.
func RegisterServiceExpiryJob(
	scheduler *Scheduler,
	notifier ExpiryNotifier,
	logger *zap.Logger,
	cronExpr string,
	horizonDays int,
	timeout time.Duration,
) error {
	job := NewServiceExpiryJob(notifier, horizonDays, logger, timeout)
	return scheduler.AddJob(ServiceExpiryJobName, cronExpr, job.Run)
}
