package notify_test

import (
	"testing"
	"time"

	"github.com/mesaops/mesa/internal/clock"
	"github.com/mesaops/mesa/internal/config"
	"github.com/mesaops/mesa/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// manualTimers captures scheduled dismissals so tests fire them by hand.
type manualTimers struct {
	fns []func()
}

func (m *manualTimers) afterFunc(d time.Duration, f func()) *time.Timer {
	m.fns = append(m.fns, f)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	return timer
}

func (m *manualTimers) fire(i int) {
	m.fns[i]()
}

func newTestCenter(t *testing.T) (*notify.Center, *manualTimers) {
	t.Helper()
	center := notify.NewCenter(notify.Params{
		Defaults: config.StaticAddonDefaults(config.DefaultAddonDefaults()),
		Clock:    clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		Log:      zaptest.NewLogger(t),
	})
	timers := &manualTimers{}
	center.SetAfterFunc(timers.afterFunc)
	return center, timers
}

func TestPushReplacesCurrent(t *testing.T) {
	center, _ := newTestCenter(t)

	center.Push(notify.LevelInfo, "first")
	center.Push(notify.LevelError, "second")

	current := center.Current()
	require.NotNil(t, current)
	assert.Equal(t, notify.LevelError, current.Level)
	assert.Equal(t, "second", current.Message)
}

func TestStaleTimerCannotDismissNewerNotification(t *testing.T) {
	center, timers := newTestCenter(t)

	center.Push(notify.LevelInfo, "first")
	center.Push(notify.LevelInfo, "second")

	// The first notification's dismissal fires late; the second must survive.
	timers.fire(0)
	current := center.Current()
	require.NotNil(t, current)
	assert.Equal(t, "second", current.Message)

	// The second notification's own dismissal clears it.
	timers.fire(1)
	assert.Nil(t, center.Current())
}

func TestDismissClearsImmediately(t *testing.T) {
	center, _ := newTestCenter(t)

	center.Push(notify.LevelWarning, "pending")
	center.Dismiss()
	assert.Nil(t, center.Current())
}

func TestExpiredTimerAfterDismissIsHarmless(t *testing.T) {
	center, timers := newTestCenter(t)

	center.Push(notify.LevelInfo, "first")
	center.Dismiss()
	center.Push(notify.LevelInfo, "second")

	timers.fire(0)
	current := center.Current()
	require.NotNil(t, current)
	assert.Equal(t, "second", current.Message)
}
