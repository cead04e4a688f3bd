package app

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/TylerJayP/Orchestrator/internal/config"
	"github.com/TylerJayP/Orchestrator/internal/logbook"
	"github.com/TylerJayP/Orchestrator/internal/loop"
	"github.com/TylerJayP/Orchestrator/internal/transport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

// --- fakes ---

type fakeConn struct {
	handler   func([]byte)
	published []map[string]any
}

func (c *fakeConn) Subscribe(_ string, handler func([]byte)) error {
	c.handler = handler
	return nil
}

func (c *fakeConn) Publish(_ string, payload []byte) error {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return err
	}
	c.published = append(c.published, m)
	return nil
}

func (c *fakeConn) Close() {}

type fakeDialer struct {
	conns []*fakeConn
}

func (d *fakeDialer) Dial(context.Context, string, transport.ConnEvents) (transport.Conn, error) {
	c := &fakeConn{}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) conn() *fakeConn { return d.conns[len(d.conns)-1] }

// --- harness ---

type harness struct {
	sched  *loop.Manual
	dialer *fakeDialer
	rt     *Runtime
	m      Model
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Broker.Fallback = ""
	h := &harness{
		sched:  loop.NewManual(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		dialer: &fakeDialer{},
	}
	h.rt = NewRuntime(h.sched, cfg, h.dialer, "test-client", zerolog.Nop())
	h.m = New(h.rt, nil)
	h.update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return h
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	return cmd
}

func (h *harness) press(s string) tea.Cmd {
	h.sched.Advance(150 * time.Millisecond)
	switch s {
	case "enter":
		return h.update(tea.KeyMsg{Type: tea.KeyEnter})
	case "esc":
		return h.update(tea.KeyMsg{Type: tea.KeyEsc})
	case "space":
		return h.update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")})
	case "ctrl+c":
		return h.update(tea.KeyMsg{Type: tea.KeyCtrlC})
	}
	return h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (h *harness) deliver(t *testing.T, raw string) {
	t.Helper()
	h.dialer.conn().handler([]byte(raw))
	h.sched.Flush()
}

// connect opens the link, announces the Presenter and drops the
// resynchronisation requests.
func (h *harness) connect(t *testing.T) {
	t.Helper()
	h.m.Init()
	h.sched.Flush()
	if !h.rt.Transport.Connected() {
		t.Fatal("transport not connected")
	}
	h.deliver(t, `{"type":"app_ready","timestamp":"2024-05-01T12:00:00.000Z"}`)
	h.sched.Advance(2 * time.Second)
	h.dialer.conn().published = nil
}

func (h *harness) sent() []map[string]any { return h.dialer.conn().published }

func (h *harness) hasLog(substr string) bool {
	for _, e := range h.rt.Panel.book.Entries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// --- tests ---

func TestInitializingBeforeSize(t *testing.T) {
	cfg := config.Default()
	rt := NewRuntime(loop.NewManual(time.Now()), cfg, &fakeDialer{}, "id", zerolog.Nop())
	m := New(rt, nil)
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View = %q", got)
	}
}

func TestDisconnectedBanner(t *testing.T) {
	h := newHarness(t)
	view := h.m.View()
	if !strings.Contains(view, "DISCONNECTED") {
		t.Error("expected DISCONNECTED banner")
	}
	if !strings.Contains(view, "Reconnecting") {
		t.Error("expected reconnecting text")
	}

	h.connect(t)
	if strings.Contains(h.m.View(), "DISCONNECTED") {
		t.Error("banner shown while connected")
	}
}

func TestGaveUpBanner(t *testing.T) {
	h := newHarness(t)
	h.rt.Panel.SetTransport(0, true)
	if !strings.Contains(h.m.View(), "Gave up") {
		t.Error("expected gave-up banner")
	}
}

func TestEnterProceedsWithoutChoices(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	h.press("enter")
	sent := h.sent()
	if len(sent) != 1 || sent[0]["type"] != "proceed_chapter" {
		t.Fatalf("sent = %v", sent)
	}
	if sent[0]["action"] != "next" {
		t.Errorf("action = %v", sent[0]["action"])
	}
	if label, ok := h.rt.Panel.controls.Flashing(); !ok || label != "proceed" {
		t.Errorf("flash = %q %v", label, ok)
	}
}

func TestEnterPicksHighlightedChoice(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.deliver(t, `{"type":"choices_available","timestamp":"t","choices":[{"text":"a"},{"text":"b"},{"text":"c"}],"currentSelection":1}`)
	h.deliver(t, `{"type":"ready_for_input","timestamp":"t","awaitingInputType":"choice"}`)

	if got := h.rt.Panel.Controls().Choices; got != 3 {
		t.Fatalf("enabled choices = %d, want 3", got)
	}
	h.press("enter")
	sent := h.sent()
	if len(sent) != 1 || sent[0]["type"] != "make_choice" {
		t.Fatalf("sent = %v", sent)
	}
	if sent[0]["choiceIndex"] != float64(1) {
		t.Errorf("choiceIndex = %v", sent[0]["choiceIndex"])
	}
}

func TestDigitKeyChooses(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.deliver(t, `{"type":"choices_available","timestamp":"t","choices":[{"text":"a"},{"text":"b"}]}`)

	h.press("2")
	sent := h.sent()
	if len(sent) != 1 || sent[0]["choiceIndex"] != float64(1) {
		t.Fatalf("sent = %v", sent)
	}

	h.press("9")
	if len(h.sent()) != 1 {
		t.Errorf("out of range choice was sent: %v", h.sent())
	}
	if label, _ := h.rt.Panel.controls.Flashing(); !strings.HasPrefix(label, "✗") {
		t.Errorf("flash = %q, want rejection", label)
	}
}

func TestNavigateKeys(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.deliver(t, `{"type":"choices_available","timestamp":"t","choices":[{"text":"a"},{"text":"b"}]}`)

	h.press("j")
	h.press("k")
	sent := h.sent()
	if len(sent) != 2 {
		t.Fatalf("sent = %v", sent)
	}
	if sent[0]["direction"] != "down" || sent[1]["direction"] != "up" {
		t.Errorf("directions = %v, %v", sent[0]["direction"], sent[1]["direction"])
	}
}

func TestSpaceDuringMinigame(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.deliver(t, `{"type":"minigame_status","timestamp":"t","minigameId":"chase","status":"started"}`)

	c := h.rt.Panel.Controls()
	if !c.Minigame || c.Proceed {
		t.Fatalf("controls = %+v", c)
	}
	h.press("space")
	sent := h.sent()
	if len(sent) != 1 || sent[0]["type"] != "minigame_input" || sent[0]["input"] != "space" {
		t.Fatalf("sent = %v", sent)
	}
}

func TestHeldKeyShown(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.deliver(t, `{"type":"minigame_status","timestamp":"t","status":"active"}`)

	h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("w")})
	if h.rt.Panel.controls.Held != "w" {
		t.Errorf("held = %q", h.rt.Panel.controls.Held)
	}
	if !strings.Contains(h.m.View(), "holding W") {
		t.Error("view does not show the held key")
	}
}

func TestRejectedWhileDisconnected(t *testing.T) {
	h := newHarness(t)
	h.press("enter")
	if !h.hasLog("Cannot proceed - not connected") {
		t.Error("rejection not logged")
	}
}

func TestOverlays(t *testing.T) {
	h := newHarness(t)

	h.press("l")
	if h.m.overlay != OverlayLog {
		t.Fatalf("overlay = %v, want log", h.m.overlay)
	}
	if cmd := h.press("q"); cmd != nil {
		t.Error("q inside an overlay should not quit")
	}
	if h.m.overlay != OverlayNone {
		t.Errorf("overlay = %v after q", h.m.overlay)
	}

	h.press("?")
	if h.m.overlay != OverlayHelp {
		t.Fatalf("overlay = %v, want help", h.m.overlay)
	}
	if !strings.Contains(h.m.View(), "ctrl+r") {
		t.Error("help overlay missing bindings")
	}
	h.press("esc")
	if h.m.overlay != OverlayNone {
		t.Errorf("overlay = %v after esc", h.m.overlay)
	}
}

func TestQuitClosesRuntime(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	cmd := h.press("q")
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if !h.rt.closed {
		t.Error("runtime not closed")
	}
	if h.sched.Pending() != 0 {
		t.Errorf("pending timers = %d after close", h.sched.Pending())
	}
}

func TestExportAfterReload(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Broker.Fallback = ""
	cfg.Log.ExportDir = dir
	h.rt.Apply(cfg)
	if !h.hasLog("Configuration reloaded") {
		t.Error("reload not logged")
	}
	if h.hasLog("after restart") {
		t.Error("unchanged broker reported as changed")
	}

	h.press("e")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "orchestrator-log-") {
		t.Fatalf("exported files = %v", entries)
	}
	if !h.hasLog("Log exported to") {
		t.Error("export not logged")
	}
}

func TestReloadBrokerChangeNeedsRestart(t *testing.T) {
	h := newHarness(t)
	cfg := config.Default()
	cfg.Broker.Primary = "mqtt.example.net"
	h.rt.Apply(cfg)
	if !h.hasLog("after restart") {
		t.Error("broker change not reported")
	}
}

func TestConfigErrorLogged(t *testing.T) {
	h := newHarness(t)
	h.rt.ConfigError(errors.New("log.max_entries must be positive"))
	if !h.hasLog("Configuration reload failed: log.max_entries") {
		t.Error("reload failure not logged")
	}
}

func TestReloadResizesLog(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 20; i++ {
		h.rt.note(logbook.System, "filler")
	}
	cfg := config.Default()
	cfg.Broker.Fallback = ""
	cfg.Log.MaxEntries = 5
	h.rt.Apply(cfg)
	if got := h.rt.Panel.book.Len(); got != 5 {
		t.Errorf("log len = %d, want 5", got)
	}
}

func TestClearLog(t *testing.T) {
	h := newHarness(t)
	h.rt.note(logbook.System, "one")
	h.press("x")
	entries := h.rt.Panel.book.Entries()
	if len(entries) != 1 || entries[0].Message != "Log cleared" {
		t.Errorf("entries = %v", entries)
	}
}

func TestExtraSinkReceivesEvents(t *testing.T) {
	cfg := config.Default()
	cfg.Broker.Fallback = ""
	sched := loop.NewManual(time.Now())
	extra := NewPanel(10)
	rt := NewRuntime(sched, cfg, &fakeDialer{}, "id", zerolog.Nop(), extra)
	rt.Start()
	sched.Flush()
	if !extra.state.Connected {
		t.Error("extra sink missed the connection")
	}
	if extra.book.Len() == 0 {
		t.Error("extra sink missed log entries")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.rt.Close()
	h.rt.Close()
	h.rt.Apply(config.Default())
	if h.hasLog("Configuration reloaded") {
		t.Error("closed runtime applied config")
	}
}
