package session

import (
	"errors"
	"fmt"
	"time"
)

// State is a user's position in the upload → choose → process cycle
type State int

const (
	Idle State = iota
	AwaitingFile
	AwaitingLanguageChoice
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingFile:
		return "awaiting_file"
	case AwaitingLanguageChoice:
		return "awaiting_language_choice"
	case Processing:
		return "processing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrBusy is returned for any event other than cancel while a job runs
var ErrBusy = errors.New("a job is already being processed")

// TransitionError reports an event that is not valid in the current state
type TransitionError struct {
	From  State
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Event, e.From)
}

// File is the pending upload attached to a session
type File struct {
	ID       string
	Name     string
	MIMEType string
	Size     int64
	Kind     string
}

// Session is one user's interaction progress. Values returned by Manager
// are copies.
type Session struct {
	UserID    int64
	State     State
	JobID     string
	File      *File
	Targets   []string
	MessageID int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasTarget reports whether lang is among the selected targets
func (s Session) HasTarget(lang string) bool {
	for _, t := range s.Targets {
		if t == lang {
			return true
		}
	}
	return false
}

func (s *Session) clone() Session {
	c := *s
	if s.File != nil {
		f := *s.File
		c.File = &f
	}
	c.Targets = append([]string(nil), s.Targets...)
	return c
}
