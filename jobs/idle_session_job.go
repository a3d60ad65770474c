package jobs

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type reaper interface {
	ReapIdle(now time.Time) int
}

// CloseIdleSessions closes sessions that have been silent for longer than
// the gateway's idle timeout.
func CloseIdleSessions(gw reaper, logger *zap.Logger) func() {
	return func() {
		if n := gw.ReapIdle(time.Now()); n > 0 {
			logger.Info("closed idle websocket sessions", zap.Int("count", n))
		}
	}
}

// Schedule registers the background jobs on a new cron scheduler. The
// caller starts and stops it.
func Schedule(spec string, gw reaper, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, CloseIdleSessions(gw, logger)); err != nil {
		return nil, err
	}
	return c, nil
}
