// Package worker runs scheduled key vault maintenance.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"
)

// ScheduleDisabled turns the expired-key sweep off.
const ScheduleDisabled = "disabled"

// Cleaner deactivates expired server keys.
type Cleaner interface {
	CleanupExpiredKeys(ctx context.Context) (int64, error)
}

// CleanupScheduler runs Cleaner on a cron schedule.
type CleanupScheduler struct {
	spec     string
	schedule cron.Schedule
	cleaner  Cleaner
	logger   *slog.Logger
}

// NewCleanupScheduler parses spec with the standard five-field parser, which also
// accepts descriptors such as "@hourly" and "@every 10m". An empty spec or
// ScheduleDisabled yields a worker whose Start returns immediately.
func NewCleanupScheduler(spec string, cleaner Cleaner, logger *slog.Logger) (*CleanupScheduler, error) {
	w := &CleanupScheduler{
		spec:    strings.TrimSpace(spec),
		cleaner: cleaner,
		logger:  logger,
	}

	if w.spec == "" || strings.EqualFold(w.spec, ScheduleDisabled) {
		return w, nil
	}

	schedule, err := cron.ParseStandard(w.spec)
	if err != nil {
		return nil, fmt.Errorf("invalid key cleanup schedule %q: %w", w.spec, err)
	}
	w.schedule = schedule
	return w, nil
}

// Enabled reports whether a schedule is configured.
func (w *CleanupScheduler) Enabled() bool {
	return w.schedule != nil
}

// Start runs the sweep on schedule until ctx is canceled, then waits for an
// in-flight sweep to finish.
func (w *CleanupScheduler) Start(ctx context.Context) error {
	if !w.Enabled() {
		w.logger.Info("key cleanup worker disabled")
		return nil
	}

	cronLogger := cronLogger{logger: w.logger}
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	c.Schedule(w.schedule, cron.FuncJob(func() {
		_, _ = w.RunOnce(ctx)
	}))

	w.logger.Info("starting key cleanup worker", slog.String("schedule", w.spec))
	c.Start()

	<-ctx.Done()

	w.logger.Info("stopping key cleanup worker")
	<-c.Stop().Done()
	return ctx.Err()
}

// RunOnce performs a single sweep and logs the outcome.
func (w *CleanupScheduler) RunOnce(ctx context.Context) (int64, error) {
	count, err := w.cleaner.CleanupExpiredKeys(ctx)
	if err != nil {
		w.logger.Error("failed to clean up expired server keys", slog.Any("error", err))
		return 0, err
	}

	w.logger.Info("expired server keys cleaned up", slog.Int64("count", count))
	return count, nil
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
