// Package logbook keeps the user-visible activity log: a bounded ring of
// entries read newest-first, with plain-text export.
package logbook

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultCapacity is used when a book is created with a non-positive size.
const DefaultCapacity = 100

// Category classifies an entry for colouring and export.
type Category string

const (
	Info      Category = "info"
	System    Category = "system"
	MQTT      Category = "mqtt"
	Presenter Category = "presenter"
	Success   Category = "success"
	Error     Category = "error"
)

// Entry is one log line.
type Entry struct {
	Time     time.Time `json:"timestamp"`
	Message  string    `json:"message"`
	Category Category  `json:"category"`
}

// Book is a fixed-capacity ring. Once full, adding an entry silently drops
// the oldest one. It is owned by the loop thread and not locked.
type Book struct {
	entries []Entry
	start   int
	count   int
}

// New creates a book holding at most capacity entries.
func New(capacity int) *Book {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Book{entries: make([]Entry, capacity)}
}

// Add appends an entry.
func (b *Book) Add(e Entry) {
	if b.count < len(b.entries) {
		b.entries[(b.start+b.count)%len(b.entries)] = e
		b.count++
		return
	}
	b.entries[b.start] = e
	b.start = (b.start + 1) % len(b.entries)
}

// Len returns the number of retained entries.
func (b *Book) Len() int { return b.count }

// Cap returns the capacity.
func (b *Book) Cap() int { return len(b.entries) }

// Entries returns a copy of the retained entries, newest first.
func (b *Book) Entries() []Entry {
	out := make([]Entry, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(b.start+b.count-1-i)%len(b.entries)]
	}
	return out
}

// Clear drops every entry.
func (b *Book) Clear() {
	clear(b.entries)
	b.start = 0
	b.count = 0
}

// Resize changes the capacity, keeping the newest entries that still fit.
func (b *Book) Resize(capacity int) {
	if capacity <= 0 || capacity == len(b.entries) {
		return
	}
	newest := b.Entries()
	if len(newest) > capacity {
		newest = newest[:capacity]
	}
	b.entries = make([]Entry, capacity)
	b.start = 0
	b.count = 0
	for i := len(newest) - 1; i >= 0; i-- {
		b.Add(newest[i])
	}
}

// Format renders an entry as a single export line.
func Format(e Entry) string {
	return fmt.Sprintf("[%s] %s: %s", e.Time.Format("15:04:05"), strings.ToUpper(string(e.Category)), e.Message)
}

// Export writes every entry, newest first, one per line.
func (b *Book) Export(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range b.Entries() {
		if _, err := fmt.Fprintln(bw, Format(e)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ExportFile writes the log to orchestrator-log-<unix-millis>.txt in dir and
// returns the file path.
func (b *Book) ExportFile(dir string, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, fmt.Sprintf("orchestrator-log-%d.txt", now.UnixMilli()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export log: %w", err)
	}
	if err := b.Export(f); err != nil {
		f.Close()
		return "", fmt.Errorf("export log: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("export log: %w", err)
	}
	return path, nil
}
