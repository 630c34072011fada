package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCleanupSchedule = "@hourly"
	AttemptRetention       = 30 * 24 * time.Hour
)

// CleanupStore deletes rows that no longer matter.
type CleanupStore interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	DeleteStaleResetTokens(ctx context.Context, now time.Time) (int64, error)
	DeleteLoginAttemptsBefore(ctx context.Context, before time.Time) (int64, error)
}

// Sweeper is implemented by in-memory limiters that need pruning.
type Sweeper interface {
	Sweep() int
}

type Janitor struct {
	store    CleanupStore
	sweepers []Sweeper
	log      *logrus.Entry
	Now      func() time.Time
}

func NewJanitor(store CleanupStore, log *logrus.Entry, sweepers ...Sweeper) *Janitor {
	return &Janitor{
		store:    store,
		sweepers: sweepers,
		log:      log,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce purges expired sessions, spent reset tokens and old login attempts.
// A failing step is logged and does not stop the others.
func (j *Janitor) RunOnce(ctx context.Context) {
	now := j.Now()
	steps := []struct {
		name string
		run  func() (int64, error)
	}{
		{"sessions", func() (int64, error) { return j.store.DeleteExpiredSessions(ctx, now) }},
		{"reset_tokens", func() (int64, error) { return j.store.DeleteStaleResetTokens(ctx, now) }},
		{"login_attempts", func() (int64, error) { return j.store.DeleteLoginAttemptsBefore(ctx, now.Add(-AttemptRetention)) }},
	}
	for _, step := range steps {
		deleted, err := step.run()
		if err != nil {
			j.log.WithError(err).WithField("table", step.name).Error("cleanup failed")
			continue
		}
		if deleted > 0 {
			j.log.WithFields(logrus.Fields{"table": step.name, "deleted": deleted}).Info("cleanup")
		}
	}
	for _, s := range j.sweepers {
		s.Sweep()
	}
}

// Schedule registers RunOnce on c. The caller starts and stops c.
func (j *Janitor) Schedule(c *cron.Cron, spec string) error {
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		j.RunOnce(ctx)
	})
	return err
}
