// Package presenter simulates the Presenter app on the mirrored topic pair so
// the Orchestrator can be exercised without the real story player.
package presenter

import (
	"fmt"
	"sort"
)

// Option is one entry of a chapter's choice menu.
type Option struct {
	Text   string
	Target string
}

// Minigame is a chapter that waits for Target inputs before moving on.
type Minigame struct {
	ID     string
	Target int
}

// Chapter is one node of the story graph. A chapter either has choices, a
// minigame, a Next chapter, or none of them when it ends the story.
type Chapter struct {
	ID          string
	Title       string
	Next        string
	Choices     []Option
	Minigame    *Minigame
	PlayerState map[string]any
}

// Awaiting is the input kind the chapter asks for.
func (c Chapter) Awaiting() string {
	switch {
	case c.Minigame != nil:
		return "minigame"
	case len(c.Choices) > 0:
		return "choice"
	case c.Next != "":
		return "proceed"
	}
	return ""
}

// Script is a story graph.
type Script struct {
	Start    string
	Chapters map[string]Chapter
}

// Validate checks that every referenced chapter exists.
func (s Script) Validate() error {
	if _, ok := s.Chapters[s.Start]; !ok {
		return fmt.Errorf("start chapter %q not found", s.Start)
	}
	ids := make([]string, 0, len(s.Chapters))
	for id := range s.Chapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ch := s.Chapters[id]
		if ch.Minigame != nil && ch.Minigame.Target <= 0 {
			return fmt.Errorf("chapter %q: minigame target must be positive", id)
		}
		targets := []string{ch.Next}
		for _, o := range ch.Choices {
			if o.Target == "" {
				return fmt.Errorf("chapter %q: choice %q has no target", id, o.Text)
			}
			targets = append(targets, o.Target)
		}
		for _, target := range targets {
			if target == "" {
				continue
			}
			if _, ok := s.Chapters[target]; !ok {
				return fmt.Errorf("chapter %q: unknown target %q", id, target)
			}
		}
	}
	return nil
}

// DefaultScript is the built-in Whiskers story.
func DefaultScript() Script {
	chapters := []Chapter{
		{ID: "start", Title: "A Quiet Morning", Next: "window"},
		{ID: "window", Title: "Something Outside", Choices: []Option{
			{Text: "Jump onto the windowsill", Target: "sill"},
			{Text: "Hide under the sofa", Target: "sofa"},
			{Text: "Go back to sleep", Target: "nap"},
		}},
		{ID: "sill", Title: "The Windowsill", Next: "chase",
			PlayerState: map[string]any{"location": "Windowsill", "courage": "Brave"}},
		{ID: "sofa", Title: "Under the Sofa", Next: "window",
			PlayerState: map[string]any{"location": "Sofa", "courage": "Timid"}},
		{ID: "nap", Title: "A Long Nap", Next: "window",
			PlayerState: map[string]any{"health": 110}},
		{ID: "chase", Title: "The Chase", Next: "garden",
			Minigame:    &Minigame{ID: "mouse_chase", Target: 8},
			PlayerState: map[string]any{"location": "Garden"}},
		{ID: "garden", Title: "The Garden", Choices: []Option{
			{Text: "Climb the old oak", Target: "oak"},
			{Text: "Follow the stream home", Target: "home"},
		}},
		{ID: "oak", Title: "Top of the Oak", Next: "home",
			PlayerState: map[string]any{"location": "Oak", "courage": "Fearless"}},
		{ID: "home", Title: "Home Again",
			PlayerState: map[string]any{"location": "Home"}},
	}
	s := Script{Start: "start", Chapters: make(map[string]Chapter, len(chapters))}
	for _, ch := range chapters {
		s.Chapters[ch.ID] = ch
	}
	return s
}
