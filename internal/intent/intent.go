// Package intent turns raw input into discrete user intents and applies the
// device-level policy: per-key debounce and hold-to-repeat for minigame keys.
package intent

import (
	"fmt"
	"time"
)

type Kind int

const (
	Proceed Kind = iota
	Choose
	Navigate
	Scroll
	Minigame
	Reset
	Connect
)

var kindNames = [...]string{
	Proceed:  "proceed",
	Choose:   "choose",
	Navigate: "navigate",
	Scroll:   "scroll",
	Minigame: "minigame",
	Reset:    "reset",
	Connect:  "connect",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Intent is one user request. Index is used by Choose, Direction by
// Navigate and Scroll, Symbol by Minigame.
type Intent struct {
	Kind      Kind
	Index     int
	Direction string
	Symbol    string
}

func (i Intent) String() string {
	switch i.Kind {
	case Choose:
		return fmt.Sprintf("choose %d", i.Index+1)
	case Navigate, Scroll:
		return i.Kind.String() + " " + i.Direction
	case Minigame:
		return "minigame " + i.Symbol
	default:
		return i.Kind.String()
	}
}

// key identifies the physical control an intent comes from, for debounce.
func (i Intent) key() string {
	switch i.Kind {
	case Choose:
		return fmt.Sprintf("choose:%d", i.Index)
	case Navigate, Scroll:
		return i.Kind.String() + ":" + i.Direction
	case Minigame:
		return "minigame:" + i.Symbol
	default:
		return i.Kind.String()
	}
}

// Target executes intents. session.Coordinator implements it.
type Target interface {
	Proceed() error
	Choose(index int) error
	Navigate(direction string) error
	Scroll(direction string) error
	MinigameInput(symbol string) error
	Reset() error
	RequestConnect()
}

// Dispatch hands in to the matching Target method.
func Dispatch(t Target, in Intent) error {
	switch in.Kind {
	case Proceed:
		return t.Proceed()
	case Choose:
		return t.Choose(in.Index)
	case Navigate:
		return t.Navigate(in.Direction)
	case Scroll:
		return t.Scroll(in.Direction)
	case Minigame:
		return t.MinigameInput(in.Symbol)
	case Reset:
		return t.Reset()
	case Connect:
		t.RequestConnect()
		return nil
	}
	return fmt.Errorf("unknown intent %v", in.Kind)
}

// Debouncer drops a repeat of the same control that arrives within the
// interval of the last accepted one.
type Debouncer struct {
	interval time.Duration
	last     map[string]time.Time
}

func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval, last: make(map[string]time.Time)}
}

// Allow reports whether key may fire at now and records it if so.
func (d *Debouncer) Allow(key string, now time.Time) bool {
	if prev, ok := d.last[key]; ok && now.Sub(prev) < d.interval {
		return false
	}
	d.last[key] = now
	return true
}

func (d *Debouncer) SetInterval(interval time.Duration) { d.interval = interval }
