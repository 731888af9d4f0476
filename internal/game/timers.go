package game

import "time"

// gameTimer is a cancellable one-shot timer owned by a Game.
//
// Every method must be called with Game.mu held. A callback captures the
// generation it was armed with; once the timer is disarmed or re-armed the
// generation moves on and a late callback sees current(gen) == false.
type gameTimer struct {
	t     *time.Timer
	gen   uint64
	armed bool
}

func (gt *gameTimer) arm(d time.Duration, fire func(gen uint64)) {
	gt.stop()
	gt.gen++
	gen := gt.gen
	gt.armed = true
	gt.t = time.AfterFunc(d, func() { fire(gen) })
}

// disarm stops the timer. It reports whether the timer was armed.
func (gt *gameTimer) disarm() bool {
	was := gt.armed
	gt.stop()
	gt.gen++
	gt.armed = false
	return was
}

// current reports whether a callback armed with gen is still the live one.
func (gt *gameTimer) current(gen uint64) bool {
	return gt.armed && gt.gen == gen
}

func (gt *gameTimer) stop() {
	if gt.t != nil {
		gt.t.Stop()
		gt.t = nil
	}
}

// countdown is the per-turn timer: it ticks every interval and counts the
// remaining ticks down to zero.
type countdown struct {
	timer     gameTimer
	remaining int
}

func (c *countdown) armed() bool { return c.timer.armed }

// value returns the remaining ticks, or nil when the countdown is disarmed.
func (c *countdown) value() *int {
	if !c.timer.armed {
		return nil
	}
	v := c.remaining
	return &v
}

func (c *countdown) disarm() bool {
	c.remaining = 0
	return c.timer.disarm()
}

func ticksIn(total, interval time.Duration) int {
	if interval <= 0 {
		interval = time.Second
	}
	n := int(total / interval)
	if total%interval != 0 {
		n++
	}
	return n
}
