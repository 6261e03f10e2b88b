// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompt provides the user-prompt capability handed to the host
// bridge. Batch runs only ever use the logging implementation, so an
// informational dialog raised by the host never blocks the run.
package prompt

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// UserPrompter presents an informational message to the user.
type UserPrompter interface {
	Info(parent, title, text string, extras []string)
}

// Message is one recorded informational dialog.
type Message struct {
	Parent string
	Title  string
	Text   string
	Extras []string
}

// LogPrompter records dialogs and writes them to a logger instead of
// showing them.
type LogPrompter struct {
	logger *log.Logger

	mu       sync.Mutex
	messages []Message
}

// NewLogPrompter returns a prompter that logs to w.
func NewLogPrompter(w io.Writer) *LogPrompter {
	return &LogPrompter{
		logger: log.NewWithOptions(w, log.Options{Prefix: "dialog"}),
	}
}

// Info logs the dialog and returns immediately.
func (p *LogPrompter) Info(parent, title, text string, extras []string) {
	p.mu.Lock()
	p.messages = append(p.messages, Message{
		Parent: parent,
		Title:  title,
		Text:   text,
		Extras: append([]string(nil), extras...),
	})
	p.mu.Unlock()

	p.logger.Info("suppressed dialog",
		"parent", parent,
		"title", title,
		"text", text,
		"extras", fmt.Sprint(extras),
	)
}

// Messages returns a copy of every dialog seen so far.
func (p *LogPrompter) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
