// Package assistant talks to the conversational AI backend and turns its
// replies into the markdown text the relay renders.
package assistant

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrTimeout       = errors.New("assistant: timed out waiting for a reply")
	ErrEmptyResponse = errors.New("assistant: response has no content")
)

// PartKind tells textual reply parts from structured ones.
type PartKind string

const (
	PartText  PartKind = "text"
	PartOther PartKind = "other"
)

// Part is one content part of a reply.
type Part struct {
	Kind PartKind
	Text string
}

// Source is a web search result the reply was grounded on.
type Source struct {
	Title string
	URL   string
}

// Response is a backend reply.
type Response struct {
	Parts   []Part
	Sources []Source
}

const sourcesHeader = "\n\n参考情報："

// Text joins the textual parts with newlines, followed by the search sources
// when there are any. Non-text parts are skipped.
func (r Response) Text() string {
	lines := make([]string, 0, len(r.Parts)+2*len(r.Sources)+1)
	for _, p := range r.Parts {
		if p.Kind != PartText || p.Text == "" {
			continue
		}
		lines = append(lines, p.Text)
	}
	if len(r.Sources) > 0 {
		lines = append(lines, sourcesHeader)
		for _, s := range r.Sources {
			title := strings.TrimSpace(s.Title)
			if title == "" {
				title = s.URL
			}
			lines = append(lines, "- "+title, "  "+s.URL+"\n")
		}
	}
	return strings.Join(lines, "\n")
}

// HasText reports whether any textual part carries content.
func (r Response) HasText() bool {
	for _, p := range r.Parts {
		if p.Kind == PartText && strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

// Session is a stateful chat with the backend.
type Session interface {
	Send(ctx context.Context, question string) (Response, error)
}

// SessionFactory opens new chat sessions.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}
