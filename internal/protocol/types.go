// Package protocol defines the JSON messages exchanged between the
// Orchestrator and the Presenter over the MQTT topic pair. Messages are flat
// objects: every one carries "type" and "timestamp", the remaining fields
// depend on the type. Unknown fields are ignored.
package protocol

import (
	"encoding/json"
	"strings"
)

// Kind identifies the type of a message.
type Kind string

// Presenter → Orchestrator.
const (
	KindChapterChanged        Kind = "chapter_changed"
	KindChoicesAvailable      Kind = "choices_available"
	KindReadyForInput         Kind = "ready_for_input"
	KindChoiceSelected        Kind = "choice_selected"
	KindMinigameStatus        Kind = "minigame_status"
	KindAudioStatus           Kind = "audio_status"
	KindAppReady              Kind = "app_ready"
	KindScrollStatus          Kind = "scroll_status"
	KindChoiceMade            Kind = "choice_made"
	KindGameReset             Kind = "game_reset"
	KindPresenterDisconnected Kind = "presenter_disconnected"
)

// Orchestrator → Presenter.
const (
	KindProceedChapter Kind = "proceed_chapter"
	KindMakeChoice     Kind = "make_choice"
	KindNavigateChoice Kind = "navigate_choice"
	KindScrollUp       Kind = "scroll_up"
	KindScrollDown     Kind = "scroll_down"
	KindMinigameInput  Kind = "minigame_input"
	KindResetGame      Kind = "reset_game"
	KindStatusRequest  Kind = "status_request"
)

// Choice is one entry of a choice menu. Its text is display-only.
type Choice struct {
	Text string `json:"text"`
}

// UnmarshalJSON accepts both {"text": "..."} and a bare string.
func (c *Choice) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		return nil
	}
	type plain Choice
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Choice(p)
	return nil
}

// --- Presenter payloads ---

// ChapterChanged announces a new narrative position.
type ChapterChanged struct {
	CurrentChapter json.RawMessage `json:"currentChapter"`
	PlayerState    map[string]any  `json:"playerState"`
	HasChoices     bool            `json:"hasChoices"`
}

// ChoicesAvailable replaces the active choice menu.
type ChoicesAvailable struct {
	Choices          []Choice `json:"choices"`
	CurrentSelection *int     `json:"currentSelection,omitempty"`
}

// ReadyForInput tells the Orchestrator what kind of input is expected next.
type ReadyForInput struct {
	AwaitingInputType string `json:"awaitingInputType"`
	Context           string `json:"context,omitempty"`
}

// ChoiceSelected syncs the remote selection cursor.
type ChoiceSelected struct {
	ChoiceIndex int    `json:"choiceIndex"`
	ChoiceText  string `json:"choiceText,omitempty"`
}

// MinigameResult carries the outcome details of a finished minigame.
type MinigameResult struct {
	Error string `json:"error,omitempty"`
}

// MinigameStatus reports the minigame lifecycle.
type MinigameStatus struct {
	MinigameID string          `json:"minigameId,omitempty"`
	Status     string          `json:"status"`
	Result     *MinigameResult `json:"result,omitempty"`
}

// Minigame status values.
const (
	MinigameStarted   = "started"
	MinigameActive    = "active"
	MinigameProgress  = "progress"
	MinigameCompleted = "completed"
	MinigameFailed    = "failed"
	MinigameError     = "error"
)

// IsActive reports whether status means a minigame is running.
func (s MinigameStatus) IsActive() bool {
	switch s.Status {
	case MinigameStarted, MinigameActive, MinigameProgress:
		return true
	}
	return false
}

// AudioStatus is informational.
type AudioStatus struct {
	Status    string `json:"status"`
	AudioFile string `json:"audioFile,omitempty"`
}

// AppReady announces that the Presenter is up.
type AppReady struct {
	ClientID string `json:"clientId,omitempty"`
}

// ScrollStatus is informational.
type ScrollStatus struct {
	Direction string `json:"direction"`
	AtTop     bool   `json:"atTop"`
	AtBottom  bool   `json:"atBottom"`
}

// ChoiceMade confirms a choice on the Presenter side.
type ChoiceMade struct {
	ChoiceIndex int    `json:"choiceIndex"`
	ChoiceText  string `json:"choiceText,omitempty"`
}

// GameReset confirms (or refuses) a reset request.
type GameReset struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PresenterDisconnected announces that the Presenter went away.
type PresenterDisconnected struct {
	ClientID string `json:"clientId,omitempty"`
}

// --- Orchestrator payloads ---

// ProceedChapter asks the Presenter to advance.
type ProceedChapter struct {
	Action string `json:"action"`
}

// MakeChoice picks a menu entry.
type MakeChoice struct {
	ChoiceIndex int `json:"choiceIndex"`
}

// NavigateChoice moves the remote cursor.
type NavigateChoice struct {
	Direction string `json:"direction"`
}

// MinigameInput forwards one directional or action input.
type MinigameInput struct {
	Input string `json:"input"`
}

// Navigation and scroll directions.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// ValidDirection reports whether d is "up" or "down".
func ValidDirection(d string) bool {
	return d == DirectionUp || d == DirectionDown
}

// Minigame input symbols.
const (
	InputUp    = "w"
	InputLeft  = "a"
	InputDown  = "s"
	InputRight = "d"
	InputSpace = "space"
)

// ValidMinigameInput reports whether s is one of w, a, s, d or space.
func ValidMinigameInput(s string) bool {
	switch s {
	case InputUp, InputLeft, InputDown, InputRight, InputSpace:
		return true
	}
	return false
}

// StatusRequest asks the Presenter to resend its state.
type StatusRequest struct {
	RequestID string `json:"requestId"`
}

// UnknownChapter stands in for a composite chapter id that has neither an
// id nor a name field.
const UnknownChapter = "Unknown Chapter"

// ChapterName normalizes the currentChapter field of a chapter_changed
// message. Strings are used as-is, objects yield their "id" or "name" field,
// other scalars their literal JSON text. ok is false when the value is
// absent or null, and for composite ids that fell back to UnknownChapter.
func ChapterName(raw json.RawMessage) (name string, ok bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"id", "name"} {
			if v, found := obj[key]; found {
				if n, ok := ChapterName(v); ok && n != "" {
					return n, true
				}
			}
		}
		return UnknownChapter, false
	}
	return trimmed, true
}
