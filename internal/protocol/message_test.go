package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
		want    Kind
	}{
		{"valid", `{"type":"app_ready","timestamp":"2025-01-01T00:00:00.000Z"}`, false, KindAppReady},
		{"extra fields tolerated", `{"type":"scroll_status","timestamp":"t","direction":"up","x":{"y":1}}`, false, KindScrollStatus},
		{"unknown type still parses", `{"type":"mystery","timestamp":"t"}`, false, Kind("mystery")},
		{"not json", `{type:`, true, ""},
		{"not an object", `"hello"`, true, ""},
		{"null", `null`, true, ""},
		{"missing type", `{"timestamp":"t"}`, true, ""},
		{"empty type", `{"type":"","timestamp":"t"}`, true, ""},
		{"numeric type", `{"type":7,"timestamp":"t"}`, true, ""},
		{"missing timestamp", `{"type":"app_ready"}`, true, ""},
		{"numeric timestamp", `{"type":"app_ready","timestamp":12}`, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("Parse() err = %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() unexpected error: %v", err)
			}
			if msg.Type != tt.want {
				t.Errorf("Type = %q, want %q", msg.Type, tt.want)
			}
		})
	}
}

func TestNewFlattensPayload(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.FixedZone("X", 3600))
	msg, err := New(KindMakeChoice, at, MakeChoice{ChoiceIndex: 2})
	if err != nil {
		t.Fatal(err)
	}

	var fields map[string]any
	if err := json.Unmarshal(msg.Raw, &fields); err != nil {
		t.Fatal(err)
	}
	if fields["type"] != "make_choice" {
		t.Errorf("type = %v", fields["type"])
	}
	if fields["timestamp"] != "2025-03-04T04:06:07.890Z" {
		t.Errorf("timestamp = %v", fields["timestamp"])
	}
	if fields["choiceIndex"] != float64(2) {
		t.Errorf("choiceIndex = %v", fields["choiceIndex"])
	}

	back, err := Parse(msg.Raw)
	if err != nil {
		t.Fatalf("own output should parse: %v", err)
	}
	var mc MakeChoice
	if err := back.Decode(&mc); err != nil || mc.ChoiceIndex != 2 {
		t.Errorf("Decode = %+v, %v", mc, err)
	}
}

func TestNewWithoutPayload(t *testing.T) {
	msg := MustNew(KindResetGame, time.Unix(0, 0), nil)
	if msg.Type != KindResetGame {
		t.Errorf("Type = %q", msg.Type)
	}
	if _, err := Parse(msg.Raw); err != nil {
		t.Errorf("Parse: %v", err)
	}
}

func TestNewRejectsNonObjectPayload(t *testing.T) {
	if _, err := New(KindProceedChapter, time.Now(), []int{1}); err == nil {
		t.Error("expected error for array payload")
	}
}

func TestChapterName(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{`"ch2"`, "ch2", true},
		{`{"id":"forest","name":"The Forest"}`, "forest", true},
		{`{"name":"The Forest"}`, "The Forest", true},
		{`{"id":"","name":"Named"}`, "Named", true},
		{`{"title":"nope"}`, UnknownChapter, false},
		{`{"id":7}`, "7", true},
		{`3`, "3", true},
		{`true`, "true", true},
		{`null`, "", false},
		{``, "", false},
	}

	for _, tt := range tests {
		got, ok := ChapterName(json.RawMessage(tt.raw))
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ChapterName(%s) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestChoiceAcceptsBareStrings(t *testing.T) {
	var p ChoicesAvailable
	if err := json.Unmarshal([]byte(`{"choices":["Left",{"text":"Right"}],"currentSelection":1}`), &p); err != nil {
		t.Fatal(err)
	}
	if len(p.Choices) != 2 || p.Choices[0].Text != "Left" || p.Choices[1].Text != "Right" {
		t.Errorf("choices = %+v", p.Choices)
	}
	if p.CurrentSelection == nil || *p.CurrentSelection != 1 {
		t.Errorf("currentSelection = %v", p.CurrentSelection)
	}
}

func TestMinigameStatusIsActive(t *testing.T) {
	for status, want := range map[string]bool{
		MinigameStarted:   true,
		MinigameActive:    true,
		MinigameProgress:  true,
		MinigameCompleted: false,
		MinigameFailed:    false,
		MinigameError:     false,
		"":                false,
	} {
		if got := (MinigameStatus{Status: status}).IsActive(); got != want {
			t.Errorf("IsActive(%q) = %v, want %v", status, got, want)
		}
	}
}
