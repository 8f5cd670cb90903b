package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// watchdog runs the periodic session check.
type watchdog struct {
	cron   *cron.Cron
	logger *zap.SugaredLogger
}

func newWatchdog(logger *zap.SugaredLogger) *watchdog {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{logger})))
	return &watchdog{cron: c, logger: logger}
}

func (w *watchdog) schedule(spec string, job func()) error {
	if _, err := w.cron.AddFunc(spec, job); err != nil {
		w.logger.Errorw("failed to schedule session check", "schedule", spec, "error", err)
		return err
	}
	w.logger.Debugw("scheduled session check", "schedule", spec)
	return nil
}

func (w *watchdog) start() {
	w.cron.Start()
}

// stop returns a context that is done once a running job has finished.
func (w *watchdog) stop() context.Context {
	return w.cron.Stop()
}

// cronLogger routes cron's own logging into zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
