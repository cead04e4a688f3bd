package loop

import "time"

type manualTimer struct {
	t     *Timer
	at    time.Time
	every time.Duration
	fn    func()
}

// Manual is a deterministic Scheduler driven by a fake clock. Go runs its
// work inline, Run queues, and nothing executes until Flush or Advance is
// called. It is not safe for concurrent use.
type Manual struct {
	now    time.Time
	queue  []func()
	timers []*manualTimer
}

// NewManual creates a manual scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Run(fn func()) {
	if fn != nil {
		m.queue = append(m.queue, fn)
	}
}

func (m *Manual) Go(work func() func()) {
	m.Run(work())
}

func (m *Manual) After(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	m.timers = append(m.timers, &manualTimer{t: t, at: m.now.Add(d), fn: fn})
	return t
}

func (m *Manual) Every(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	m.timers = append(m.timers, &manualTimer{t: t, at: m.now.Add(d), every: d, fn: fn})
	return t
}

func (m *Manual) Now() time.Time { return m.now }

// Flush runs queued closures, including any they queue, until none remain.
func (m *Manual) Flush() {
	for len(m.queue) > 0 {
		fn := m.queue[0]
		m.queue = m.queue[1:]
		fn()
	}
}

// Advance moves the clock forward by d, firing due timers in time order and
// flushing the queue after each one.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		m.Flush()
		next := m.nextDue(target)
		if next == nil {
			break
		}
		m.now = next.at
		if next.every > 0 {
			next.at = next.at.Add(next.every)
			next.fn()
			continue
		}
		m.remove(next)
		if next.t.expire() {
			next.fn()
		}
	}
	m.now = target
	m.Flush()
}

// Pending counts timers that can still fire.
func (m *Manual) Pending() int {
	n := 0
	for _, mt := range m.timers {
		if mt.t.Active() {
			n++
		}
	}
	return n
}

func (m *Manual) nextDue(limit time.Time) *manualTimer {
	var next *manualTimer
	live := m.timers[:0]
	for _, mt := range m.timers {
		if !mt.t.Active() {
			continue
		}
		live = append(live, mt)
		if mt.at.After(limit) {
			continue
		}
		if next == nil || mt.at.Before(next.at) {
			next = mt
		}
	}
	m.timers = live
	return next
}

func (m *Manual) remove(target *manualTimer) {
	for i, mt := range m.timers {
		if mt == target {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}
