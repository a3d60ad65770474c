package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReaper struct {
	calls []time.Time
}

func (f *fakeReaper) ReapIdle(now time.Time) int {
	f.calls = append(f.calls, now)
	return 2
}

func TestCloseIdleSessionsCallsReaper(t *testing.T) {
	r := &fakeReaper{}
	CloseIdleSessions(r, zap.NewNop())()
	assert.Len(t, r.calls, 1)
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	_, err := Schedule("every now and then", &fakeReaper{}, zap.NewNop())
	assert.Error(t, err)

	c, err := Schedule("@every 1m", &fakeReaper{}, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
}
