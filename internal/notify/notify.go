// Package notify keeps the single user-visible notification and expires it
// after a fixed delay. A newer notification replaces the pending clear, so
// a stale timer can never dismiss a message it did not schedule.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mesaops/mesa/internal/clock"
	"github.com/mesaops/mesa/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Center struct {
	mu      sync.Mutex
	current *Notification
	timer   *time.Timer
	seq     uint64

	defaults *config.AddonDefaultsHolder
	clk      clock.Clock
	log      *zap.Logger

	// afterFunc is swapped in tests.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

type Params struct {
	fx.In

	Defaults *config.AddonDefaultsHolder
	Clock    clock.Clock
	Log      *zap.Logger
}

func NewCenter(p Params) *Center {
	return &Center{
		defaults:  p.Defaults,
		clk:       p.Clock,
		log:       p.Log.Named("notify"),
		afterFunc: time.AfterFunc,
	}
}

// SetAfterFunc replaces the timer factory. Tests use it to control when a
// scheduled dismissal fires.
func (c *Center) SetAfterFunc(fn func(d time.Duration, f func()) *time.Timer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterFunc = fn
}

// Push replaces the current notification and re-arms the dismiss timer.
func (c *Center) Push(level Level, message string) Notification {
	dismiss := c.defaults.Get().NotifyDismiss

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	c.seq++
	seq := c.seq
	note := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: c.clk.Now(),
	}
	c.current = &note
	c.timer = c.afterFunc(dismiss, func() {
		c.expire(seq)
	})

	c.log.Debug("notification pushed",
		zap.String("level", string(level)),
		zap.String("message", message),
	)
	return note
}

// Current returns the live notification, or nil after dismissal.
func (c *Center) Current() *Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	copied := *c.current
	return &copied
}

// Dismiss clears the current notification immediately.
func (c *Center) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.current = nil
}

func (c *Center) expire(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// A newer Push re-armed the timer; this fire is stale.
	if seq != c.seq {
		return
	}
	c.current = nil
	c.timer = nil
}

var Module = fx.Module("notify",
	fx.Provide(NewCenter),
)
