package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/TylerJayP/Orchestrator/internal/config"
	"github.com/TylerJayP/Orchestrator/internal/loop"
	"github.com/TylerJayP/Orchestrator/internal/protocol"
	"github.com/rs/zerolog"
)

// --- fakes ---

type fakeConn struct {
	endpoint  string
	events    ConnEvents
	handler   func([]byte)
	topics    []string
	published []string
	closed    bool
	onSub     func(handler func([]byte))
	failPub   bool
	log       *[]string
}

func (c *fakeConn) Subscribe(topic string, handler func([]byte)) error {
	c.topics = append(c.topics, topic)
	c.handler = handler
	if c.onSub != nil {
		c.onSub(handler)
	}
	return nil
}

func (c *fakeConn) Publish(topic string, payload []byte) error {
	if c.failPub {
		return errors.New("broken pipe")
	}
	c.published = append(c.published, string(payload))
	if c.log != nil {
		*c.log = append(*c.log, "publish:"+string(payload))
	}
	return nil
}

func (c *fakeConn) Close() { c.closed = true }

type fakeDialer struct {
	fail  map[string]bool
	dials []string
	conns []*fakeConn
	onSub func(handler func([]byte))
	log   *[]string
}

func (d *fakeDialer) Dial(_ context.Context, endpoint string, events ConnEvents) (Conn, error) {
	d.dials = append(d.dials, endpoint)
	if d.fail[endpoint] {
		return nil, fmt.Errorf("dial %s: refused", endpoint)
	}
	c := &fakeConn{endpoint: endpoint, events: events, onSub: d.onSub, log: d.log}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) last() *fakeConn { return d.conns[len(d.conns)-1] }

type recorder struct {
	log          *[]string
	connected    []string
	disconnected []error
	failed       []error
	received     []protocol.Message
	dropped      []error
	pubFailed    []error
}

func (r *recorder) TransportConnected(endpoint string) {
	r.connected = append(r.connected, endpoint)
	if r.log != nil {
		*r.log = append(*r.log, "connected")
	}
}
func (r *recorder) TransportDisconnected(err error) { r.disconnected = append(r.disconnected, err) }
func (r *recorder) TransportFailed(err error)       { r.failed = append(r.failed, err) }
func (r *recorder) MessageReceived(msg protocol.Message) {
	r.received = append(r.received, msg)
	if r.log != nil {
		*r.log = append(*r.log, "received:"+string(msg.Type))
	}
}
func (r *recorder) MessageDropped(err error) { r.dropped = append(r.dropped, err) }
func (r *recorder) PublishFailed(err error)  { r.pubFailed = append(r.pubFailed, err) }

const (
	primaryURL  = "ws://primary:8083/mqtt"
	fallbackURL = "ws://fallback:8083/mqtt"
)

func setup(t *testing.T, maxAttempts int) (*Client, *fakeDialer, *recorder, *loop.Manual) {
	t.Helper()
	var log []string
	sched := loop.NewManual(time.Unix(1700000000, 0))
	dialer := &fakeDialer{fail: map[string]bool{}, log: &log}
	rec := &recorder{log: &log}
	c := New(sched, dialer, rec, Options{
		Endpoints:      []string{primaryURL, fallbackURL},
		SubscribeTopic: "in",
		PublishTopic:   "out",
		ClientID:       "test",
		ConnectTimeout: time.Second,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		MaxAttempts:    maxAttempts,
	}, zerolog.Nop())
	return c, dialer, rec, sched
}

// --- tests ---

func TestConnectSubscribesAndNotifies(t *testing.T) {
	c, dialer, rec, sched := setup(t, 10)
	c.Connect()
	sched.Flush()

	if len(rec.connected) != 1 || rec.connected[0] != primaryURL {
		t.Fatalf("connected = %v", rec.connected)
	}
	if got := dialer.last().topics; len(got) != 1 || got[0] != "in" {
		t.Errorf("subscribed topics = %v, want [in]", got)
	}
	st := c.Stats()
	if !st.Connected || st.Endpoint != primaryURL || st.ClientID != "test" {
		t.Errorf("Stats = %+v", st)
	}
}

func TestConnectIsNoopWhileConnected(t *testing.T) {
	c, dialer, _, sched := setup(t, 10)
	c.Connect()
	sched.Flush()
	c.Connect()
	sched.Flush()
	if len(dialer.dials) != 1 {
		t.Errorf("dials = %v, want one", dialer.dials)
	}
}

func TestFallsBackToSecondEndpoint(t *testing.T) {
	c, dialer, rec, sched := setup(t, 10)
	dialer.fail[primaryURL] = true
	c.Connect()
	sched.Flush()

	if strings.Join(dialer.dials, ",") != primaryURL+","+fallbackURL {
		t.Errorf("dials = %v", dialer.dials)
	}
	if len(rec.connected) != 1 || rec.connected[0] != fallbackURL {
		t.Errorf("connected = %v", rec.connected)
	}
}

func TestQueueFlushedInOrderBeforeConnectedAndLaterMessages(t *testing.T) {
	c, dialer, rec, sched := setup(t, 10)
	for _, p := range []string{"a", "b", "c"} {
		if err := c.Publish([]byte(p)); err != nil {
			t.Fatal(err)
		}
	}
	if c.Stats().Queued != 3 {
		t.Fatalf("Queued = %d, want 3", c.Stats().Queued)
	}

	c.Connect()
	sched.Flush()
	if err := c.Publish([]byte("d")); err != nil {
		t.Fatal(err)
	}

	if got := strings.Join(dialer.last().published, ""); got != "abcd" {
		t.Errorf("published = %q, want abcd", got)
	}
	if c.Stats().Queued != 0 {
		t.Errorf("Queued = %d after flush", c.Stats().Queued)
	}
	want := "publish:a,publish:b,publish:c,connected,publish:d"
	if got := strings.Join(*rec.log, ","); got != want {
		t.Errorf("order = %s\nwant    %s", got, want)
	}
}

func TestPublishFailureRequeues(t *testing.T) {
	c, dialer, _, sched := setup(t, 10)
	c.Connect()
	sched.Flush()
	conn := dialer.last()
	conn.failPub = true
	if err := c.Publish([]byte("a")); err != nil {
		t.Fatal(err)
	}
	if c.Stats().Queued != 1 {
		t.Errorf("Queued = %d, want 1", c.Stats().Queued)
	}

	// The failed payload still goes out ahead of later ones.
	conn.failPub = false
	if err := c.Publish([]byte("b")); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(conn.published, ""); got != "ab" {
		t.Errorf("published = %q, want ab", got)
	}
	if c.Stats().Queued != 0 {
		t.Errorf("Queued = %d after drain", c.Stats().Queued)
	}
}

func TestRequeuedMessagesKeepOrderAcrossReconnect(t *testing.T) {
	c, dialer, _, sched := setup(t, 10)
	c.Connect()
	sched.Flush()
	dialer.last().failPub = true
	for _, p := range []string{"a", "b"} {
		if err := c.Publish([]byte(p)); err != nil {
			t.Fatal(err)
		}
	}
	if c.Stats().Queued != 2 {
		t.Fatalf("Queued = %d, want 2", c.Stats().Queued)
	}

	c.Reconnect()
	sched.Flush()
	if err := c.Publish([]byte("c")); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(dialer.last().published, ""); got != "abc" {
		t.Errorf("published = %q, want abc", got)
	}
}

func TestReconnectBackoffAndGiveUp(t *testing.T) {
	c, dialer, rec, sched := setup(t, 3)
	dialer.fail[primaryURL] = true
	dialer.fail[fallbackURL] = true

	c.Connect()
	sched.Flush()
	if len(rec.disconnected) != 1 {
		t.Fatalf("disconnected = %d, want 1", len(rec.disconnected))
	}

	// Delays 1s, 2s, 4s, each retry trying both endpoints.
	for i, delay := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		before := len(dialer.dials)
		sched.Advance(delay - time.Millisecond)
		if len(dialer.dials) != before {
			t.Fatalf("retry %d fired early", i+1)
		}
		sched.Advance(time.Millisecond)
		if len(dialer.dials) != before+2 {
			t.Fatalf("retry %d: dials = %d, want %d", i+1, len(dialer.dials), before+2)
		}
	}
	if len(rec.failed) != 1 || !errors.Is(rec.failed[0], ErrMaxAttempts) {
		t.Fatalf("failed = %v, want one ErrMaxAttempts", rec.failed)
	}
	if sched.Pending() != 0 {
		t.Errorf("Pending = %d after giving up", sched.Pending())
	}
	if !c.Stats().Failed {
		t.Error("Stats.Failed = false")
	}

	// Manual reconnect restores the budget.
	dialer.fail[primaryURL] = false
	c.Reconnect()
	sched.Flush()
	if len(rec.connected) != 1 {
		t.Fatalf("connected = %v after Reconnect", rec.connected)
	}
	if st := c.Stats(); st.Failed || st.Attempts != 0 {
		t.Errorf("Stats after reconnect = %+v", st)
	}
}

func TestDelayIsCapped(t *testing.T) {
	b := newRetry(Options{BaseDelay: time.Second, MaxDelay: 30 * time.Second, MaxAttempts: 10})
	want := []time.Duration{1, 2, 4, 8, 16, 30, 30, 30, 30, 30}
	for i, w := range want {
		if got := b.NextBackOff(); got != w*time.Second {
			t.Errorf("attempt %d delay = %s, want %s", i, got, w*time.Second)
		}
	}
	if got := b.NextBackOff(); got >= 0 {
		t.Errorf("attempt 11 = %s, want Stop", got)
	}
}

func TestLostConnectionReconnects(t *testing.T) {
	c, dialer, rec, sched := setup(t, 10)
	c.Connect()
	sched.Flush()
	first := dialer.last()

	first.events.Lost(errors.New("keepalive timeout"))
	sched.Flush()
	if c.Connected() || len(rec.disconnected) != 1 {
		t.Fatalf("after loss connected=%v disconnected=%v", c.Connected(), rec.disconnected)
	}
	if !first.closed {
		t.Error("lost connection not closed")
	}

	sched.Advance(time.Second)
	if len(rec.connected) != 2 {
		t.Fatalf("connected = %d, want reconnect", len(rec.connected))
	}

	// A late loss report from the retired connection is ignored.
	first.events.Lost(errors.New("late"))
	sched.Flush()
	if !c.Connected() || len(rec.disconnected) != 1 {
		t.Errorf("stale callback changed state: connected=%v disconnected=%d", c.Connected(), len(rec.disconnected))
	}
}

func TestLossDuringSubscribeReconnects(t *testing.T) {
	c, dialer, rec, sched := setup(t, 10)
	dialer.onSub = func(func([]byte)) {
		dialer.last().events.Lost(errors.New("connection reset by peer"))
	}
	c.Connect()
	sched.Flush()

	if c.Connected() || c.Stats().Connected {
		t.Fatal("adapter reports connected on a lost connection")
	}
	if len(rec.connected) != 0 || len(rec.disconnected) != 1 {
		t.Fatalf("connected=%d disconnected=%d", len(rec.connected), len(rec.disconnected))
	}
	if !dialer.last().closed {
		t.Error("lost connection not closed")
	}
	if sched.Pending() != 1 {
		t.Fatalf("pending timers = %d, want a reconnect", sched.Pending())
	}

	dialer.onSub = nil
	sched.Advance(time.Second)
	if !c.Connected() || len(rec.connected) != 1 {
		t.Errorf("after retry connected=%v notified=%d", c.Connected(), len(rec.connected))
	}
}

func TestStaleMessagesIgnored(t *testing.T) {
	c, dialer, rec, sched := setup(t, 10)
	c.Connect()
	sched.Flush()
	old := dialer.last()

	c.Reconnect()
	sched.Flush()
	if len(rec.disconnected) != 1 || !errors.Is(rec.disconnected[0], ErrReplaced) {
		t.Errorf("disconnected = %v, want ErrReplaced", rec.disconnected)
	}
	old.handler([]byte(`{"type":"app_ready","timestamp":"t"}`))
	sched.Flush()
	if len(rec.received) != 0 {
		t.Errorf("received %d messages from a retired connection", len(rec.received))
	}

	dialer.last().handler([]byte(`{"type":"app_ready","timestamp":"t"}`))
	sched.Flush()
	if len(rec.received) != 1 {
		t.Errorf("received = %d, want 1", len(rec.received))
	}
}

func TestInboundValidation(t *testing.T) {
	c, dialer, rec, sched := setup(t, 10)
	c.Connect()
	sched.Flush()

	h := dialer.last().handler
	h([]byte(`not json`))
	h([]byte(`{"type":"app_ready"}`))
	h([]byte(`{"type":"chapter_changed","timestamp":"2025-01-01T00:00:00.000Z","currentChapter":"ch2"}`))
	sched.Flush()

	if len(rec.dropped) != 2 {
		t.Errorf("dropped = %d, want 2", len(rec.dropped))
	}
	for _, err := range rec.dropped {
		if !errors.Is(err, protocol.ErrMalformed) {
			t.Errorf("dropped err = %v, want ErrMalformed", err)
		}
	}
	if len(rec.received) != 1 || rec.received[0].Type != protocol.KindChapterChanged {
		t.Errorf("received = %v", rec.received)
	}
}

func TestMessagesDuringSubscribeDeliveredAfterConnected(t *testing.T) {
	c, dialer, rec, sched := setup(t, 10)
	dialer.onSub = func(handler func([]byte)) {
		handler([]byte(`{"type":"app_ready","timestamp":"t"}`))
	}
	c.Connect()
	sched.Flush()

	if got := strings.Join(*rec.log, ","); got != "connected,received:app_ready" {
		t.Errorf("order = %s", got)
	}
}

func TestPublishFailedForwarded(t *testing.T) {
	c, dialer, rec, sched := setup(t, 10)
	c.Connect()
	sched.Flush()
	dialer.last().events.PublishFailed(errors.New("no route"))
	sched.Flush()
	if len(rec.pubFailed) != 1 {
		t.Errorf("pubFailed = %v", rec.pubFailed)
	}
}

func TestCloseCancelsReconnect(t *testing.T) {
	c, dialer, _, sched := setup(t, 10)
	dialer.fail[primaryURL] = true
	dialer.fail[fallbackURL] = true
	c.Connect()
	sched.Flush()
	if sched.Pending() != 1 {
		t.Fatalf("Pending = %d, want a reconnect timer", sched.Pending())
	}

	c.Close()
	c.Close()
	if sched.Pending() != 0 {
		t.Errorf("Pending = %d after Close", sched.Pending())
	}
	before := len(dialer.dials)
	sched.Advance(time.Minute)
	if len(dialer.dials) != before {
		t.Error("dialled after Close")
	}
	if err := c.Publish([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Close = %v, want ErrClosed", err)
	}
}

func TestCloseClosesConnection(t *testing.T) {
	c, dialer, _, sched := setup(t, 10)
	c.Connect()
	sched.Flush()
	c.Close()
	if !dialer.last().closed || c.Connected() {
		t.Error("Close should close the live connection")
	}
}

func TestBrokerURL(t *testing.T) {
	base := config.Default().Broker
	tls := base
	tls.UseTLS = true
	custom := base
	custom.Path = "ws"

	tests := []struct {
		name   string
		broker string
		cfg    config.BrokerConfig
		want   string
	}{
		{"plain host", "broker.emqx.io", base, "ws://broker.emqx.io:8083/mqtt"},
		{"tls host", "broker.emqx.io", tls, "wss://broker.emqx.io:8084/mqtt"},
		{"verbatim url", "tcp://localhost:1883", base, "tcp://localhost:1883"},
		{"path without slash", "h", custom, "ws://h:8083/ws"},
		{"ipv6", "::1", base, "ws://[::1]:8083/mqtt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BrokerURL(tt.broker, tt.cfg); got != tt.want {
				t.Errorf("BrokerURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEndpoints(t *testing.T) {
	cfg := config.Default().Broker
	if got := Endpoints(cfg); len(got) != 1 {
		t.Errorf("identical fallback should collapse, got %v", got)
	}
	cfg.Fallback = "test.mosquitto.org"
	if got := Endpoints(cfg); len(got) != 2 || got[1] != "ws://test.mosquitto.org:8083/mqtt" {
		t.Errorf("Endpoints = %v", got)
	}
	cfg.Fallback = ""
	if got := Endpoints(cfg); len(got) != 1 {
		t.Errorf("empty fallback should be skipped, got %v", got)
	}
}

func TestNewClientID(t *testing.T) {
	id := NewClientID("WhiskersOrchestrator", time.UnixMilli(1700000000123))
	parts := strings.Split(id, "_")
	if len(parts) != 3 || parts[0] != "WhiskersOrchestrator" || parts[1] != "1700000000123" || len(parts[2]) != 8 {
		t.Errorf("NewClientID = %q", id)
	}
	if NewClientID("p", time.UnixMilli(1)) == NewClientID("p", time.UnixMilli(1)) {
		t.Error("client ids should differ")
	}
}
