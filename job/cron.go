package job

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"lexanalyzer/pkg/logger"
)

// Purger deletes analysis history created before cutoff.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartCronJob schedules history retention. The cron expression uses the six-field
// (seconds-first) format, e.g. "0 0 2 * * *" for 02:00 every day.
func StartCronJob(p Purger, spec string, retention time.Duration) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(spec, func() { PurgeOnce(context.Background(), p, retention, time.Now()) })
	if err != nil {
		return nil, err
	}
	c.Start()
	logger.Named("cron").Info("history purge scheduled", zap.String("spec", spec), zap.Duration("retention", retention))
	return c, nil
}

// PurgeOnce deletes runs older than now-retention.
func PurgeOnce(ctx context.Context, p Purger, retention time.Duration, now time.Time) int64 {
	log := logger.Named("cron")
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	rows, err := p.PurgeBefore(ctx, now.Add(-retention))
	if err != nil {
		log.Error("purge analysis history", zap.Error(err))
		return 0
	}
	log.Info("purged analysis history", zap.Int64("rows", rows))
	return rows
}
