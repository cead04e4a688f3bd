package intent

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/TylerJayP/Orchestrator/internal/loop"
	"github.com/TylerJayP/Orchestrator/internal/session"
	"github.com/rs/zerolog"
)

type fakeTarget struct {
	calls       []string
	minigameErr error
}

func (f *fakeTarget) Proceed() error          { f.calls = append(f.calls, "proceed"); return nil }
func (f *fakeTarget) Choose(i int) error      { f.calls = append(f.calls, fmt.Sprintf("choose:%d", i)); return nil }
func (f *fakeTarget) Navigate(d string) error { f.calls = append(f.calls, "navigate:"+d); return nil }
func (f *fakeTarget) Scroll(d string) error   { f.calls = append(f.calls, "scroll:"+d); return nil }
func (f *fakeTarget) Reset() error            { f.calls = append(f.calls, "reset"); return nil }
func (f *fakeTarget) RequestConnect()         { f.calls = append(f.calls, "connect") }
func (f *fakeTarget) MinigameInput(s string) error {
	if f.minigameErr != nil {
		return f.minigameErr
	}
	f.calls = append(f.calls, "input:"+s)
	return nil
}

func (f *fakeTarget) joined() string { return strings.Join(f.calls, ",") }

func newSource(t *testing.T) (*Source, *fakeTarget, *loop.Manual) {
	t.Helper()
	sched := loop.NewManual(time.Unix(1700000000, 0))
	target := &fakeTarget{}
	opts := Options{Debounce: 50 * time.Millisecond, RepeatDelay: 200 * time.Millisecond, ReleaseAfter: 150 * time.Millisecond}
	src := NewSource(sched, target, opts, zerolog.Nop())
	t.Cleanup(src.Stop)
	return src, target, sched
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		in   Intent
		want string
	}{
		{Intent{Kind: Proceed}, "proceed"},
		{Intent{Kind: Choose, Index: 2}, "choose:2"},
		{Intent{Kind: Navigate, Direction: "up"}, "navigate:up"},
		{Intent{Kind: Scroll, Direction: "down"}, "scroll:down"},
		{Intent{Kind: Minigame, Symbol: "space"}, "input:space"},
		{Intent{Kind: Reset}, "reset"},
		{Intent{Kind: Connect}, "connect"},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			target := &fakeTarget{}
			if err := Dispatch(target, tt.in); err != nil {
				t.Fatal(err)
			}
			if got := target.joined(); got != tt.want {
				t.Errorf("calls = %s, want %s", got, tt.want)
			}
		})
	}
	if err := Dispatch(&fakeTarget{}, Intent{Kind: Kind(42)}); err == nil {
		t.Error("unknown kind accepted")
	}
}

func TestDebouncerPerKey(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	t0 := time.Unix(0, 0)
	if !d.Allow("a", t0) {
		t.Fatal("first press dropped")
	}
	if d.Allow("a", t0.Add(49*time.Millisecond)) {
		t.Error("bounce accepted")
	}
	if !d.Allow("b", t0.Add(10*time.Millisecond)) {
		t.Error("other key dropped")
	}
	if !d.Allow("a", t0.Add(50*time.Millisecond)) {
		t.Error("press after interval dropped")
	}
}

func TestSubmitDebounces(t *testing.T) {
	src, target, sched := newSource(t)

	if err := src.Submit(Intent{Kind: Proceed}); err != nil {
		t.Fatal(err)
	}
	sched.Advance(20 * time.Millisecond)
	if err := src.Submit(Intent{Kind: Proceed}); !errors.Is(err, ErrBounced) {
		t.Errorf("err = %v, want ErrBounced", err)
	}
	if err := src.Submit(Intent{Kind: Navigate, Direction: "down"}); err != nil {
		t.Errorf("different control bounced: %v", err)
	}
	sched.Advance(50 * time.Millisecond)
	if err := src.Submit(Intent{Kind: Proceed}); err != nil {
		t.Errorf("after interval: %v", err)
	}
	if got := target.joined(); got != "proceed,navigate:down,proceed" {
		t.Errorf("calls = %s", got)
	}
}

func TestTapSendsOnce(t *testing.T) {
	src, target, sched := newSource(t)

	if err := src.Press("w"); err != nil {
		t.Fatal(err)
	}
	sched.Advance(time.Second)
	if got := target.joined(); got != "input:w" {
		t.Errorf("calls = %s, want a single input", got)
	}
	if _, ok := src.Holding(); ok {
		t.Error("hold not released")
	}
	if sched.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", sched.Pending())
	}
}

func TestHoldRepeatsUntilKeypressesStop(t *testing.T) {
	src, target, sched := newSource(t)

	if err := src.Press("d"); err != nil {
		t.Fatal(err)
	}
	// Terminal auto-repeat keeps the key alive for 500ms.
	for i := 0; i < 5; i++ {
		sched.Advance(100 * time.Millisecond)
		if err := src.Press("d"); err != nil {
			t.Fatal(err)
		}
	}
	sched.Advance(time.Second)

	// Initial send plus ticks at 200, 400 and 600ms; released at 650ms.
	if got := target.joined(); got != "input:d,input:d,input:d,input:d" {
		t.Errorf("calls = %s", got)
	}
	if sched.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", sched.Pending())
	}
}

func TestOtherKeyEndsHold(t *testing.T) {
	src, target, sched := newSource(t)

	if err := src.Press("a"); err != nil {
		t.Fatal(err)
	}
	sched.Advance(100 * time.Millisecond)
	if err := src.Press("space"); err != nil {
		t.Fatal(err)
	}
	if sym, ok := src.Holding(); !ok || sym != "space" {
		t.Errorf("Holding = %q %v", sym, ok)
	}
	sched.Advance(100 * time.Millisecond)
	if err := src.Submit(Intent{Kind: Reset}); err != nil {
		t.Fatal(err)
	}
	if _, ok := src.Holding(); ok {
		t.Error("hold survived another intent")
	}
	sched.Advance(time.Second)
	if got := target.joined(); got != "input:a,input:space,reset" {
		t.Errorf("calls = %s", got)
	}
}

func TestRejectionEndsHold(t *testing.T) {
	src, target, sched := newSource(t)

	if err := src.Press("s"); err != nil {
		t.Fatal(err)
	}
	target.minigameErr = session.ErrNoMinigame
	sched.Advance(100 * time.Millisecond)
	src.Press("s")
	sched.Advance(100 * time.Millisecond)
	if _, ok := src.Holding(); ok {
		t.Error("hold continued after rejection")
	}
}

func TestDebouncedTickKeepsHold(t *testing.T) {
	src, target, sched := newSource(t)

	if err := src.Press("w"); err != nil {
		t.Fatal(err)
	}
	target.minigameErr = session.ErrDebounced
	sched.Advance(100 * time.Millisecond)
	src.Press("w")
	sched.Advance(100 * time.Millisecond)
	if _, ok := src.Holding(); !ok {
		t.Error("debounced tick ended the hold")
	}
}

func TestStopCancelsHoldAndIgnoresInput(t *testing.T) {
	src, target, sched := newSource(t)

	if err := src.Press("w"); err != nil {
		t.Fatal(err)
	}
	src.Stop()
	src.Stop()
	if sched.Pending() != 0 {
		t.Errorf("Pending = %d after Stop", sched.Pending())
	}
	if err := src.Submit(Intent{Kind: Proceed}); err != nil {
		t.Errorf("Submit after Stop = %v", err)
	}
	sched.Advance(time.Second)
	if got := target.joined(); got != "input:w" {
		t.Errorf("calls = %s", got)
	}
}

func TestSubmitRoutesMinigameToPress(t *testing.T) {
	src, _, _ := newSource(t)
	if err := src.Submit(Intent{Kind: Minigame, Symbol: "a"}); err != nil {
		t.Fatal(err)
	}
	if sym, ok := src.Holding(); !ok || sym != "a" {
		t.Errorf("Holding = %q %v", sym, ok)
	}
}
