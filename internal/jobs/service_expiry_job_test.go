package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nusalink-net/crm-api/internal/jobs"
)

type fakeNotifier struct {
	mu          sync.Mutex
	calls       []int
	notified    int
	err         error
	sawDeadline bool
}

func (f *fakeNotifier) NotifyExpiring(ctx context.Context, withinDays int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, withinDays)
	if _, ok := ctx.Deadline(); ok {
		f.sawDeadline = true
	}
	return f.notified, f.err
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestServiceExpiryJobRun(t *testing.T) {
	notifier := &fakeNotifier{notified: 3}
	job := jobs.NewServiceExpiryJob(notifier, 14, zap.NewNop(), 30*time.Second)

	job.Run()

	require.Equal(t, 1, notifier.callCount())
	assert.Equal(t, 14, notifier.calls[0])
	assert.True(t, notifier.sawDeadline)
}

func TestServiceExpiryJobDefaultsHorizon(t *testing.T) {
	notifier := &fakeNotifier{}
	job := jobs.NewServiceExpiryJob(notifier, 0, zap.NewNop(), 30*time.Second)

	job.Run()

	require.Equal(t, 1, notifier.callCount())
	assert.Equal(t, jobs.DefaultExpiryHorizonDays, notifier.calls[0])
}

func TestServiceExpiryJobSurvivesNotifierError(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("database gone")}
	job := jobs.NewServiceExpiryJob(notifier, 30, zap.NewNop(), 30*time.Second)

	// Run logs the error and returns; it must not panic
	job.Run()
	assert.Equal(t, 1, notifier.callCount())
}

func TestRegisterServiceExpiryJob(t *testing.T) {
	scheduler := jobs.NewScheduler(zap.NewNop())

	err := jobs.RegisterServiceExpiryJob(scheduler, &fakeNotifier{}, zap.NewNop(), "0 0 7 * * *", 30, 30*time.Second)
	require.NoError(t, err)
	assert.Contains(t, scheduler.GetJobNames(), jobs.ServiceExpiryJobName)

	t.Run("duplicate registration fails", func(t *testing.T) {
		err := jobs.RegisterServiceExpiryJob(scheduler, &fakeNotifier{}, zap.NewNop(), "0 0 7 * * *", 30, 30*time.Second)
		assert.Error(t, err)
	})

	t.Run("bad cron expression fails", func(t *testing.T) {
		other := jobs.NewScheduler(zap.NewNop())
		err := jobs.RegisterServiceExpiryJob(other, &fakeNotifier{}, zap.NewNop(), "not a cron", 30, 30*time.Second)
		assert.Error(t, err)
	})
}
