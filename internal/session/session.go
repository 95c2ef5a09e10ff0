// Package session keeps the short-lived per-user conversation scratch state: the chosen
// movie, the chosen style and the pending-input flag.
package session

import (
	"context"
	"errors"

	"github.com/m3rciful/moviebot/core/telegram/format"
)

// State is the pending-input flag of a conversation.
type State string

const (
	StateIdle          State = ""
	StateAwaitingMovie State = "awaiting_movie"
	StateAwaitingStyle State = "awaiting_style"
)

// DefaultStyle selects the built-in narrator persona.
const DefaultStyle = "Бухой дед"

// ErrUnavailable wraps storage failures.
var ErrUnavailable = errors.New("session store unavailable")

// Session is the stored scratch state of one user. The zero value is a valid empty session.
type Session struct {
	Movie string `json:"movie,omitempty"`
	Style string `json:"style,omitempty"`
	State State  `json:"state,omitempty"`
}

// EffectiveStyle returns the chosen style or DefaultStyle when none was set.
func (s Session) EffectiveStyle() string {
	if s.Style == "" {
		return DefaultStyle
	}
	return s.Style
}

// Update is a partial session write; nil fields are left untouched.
type Update struct {
	Movie *string
	Style *string
	State *State
}

// Apply merges u into s.
func (u Update) Apply(s Session) Session {
	s.Movie = format.DerefString(u.Movie, s.Movie)
	s.Style = format.DerefString(u.Style, s.Style)
	if u.State != nil {
		s.State = *u.State
	}
	return s
}

// Store persists sessions with a sliding expiry. Every write refreshes the expiry.
type Store interface {
	// Get returns the stored session or an empty one.
	Get(ctx context.Context, userID int64) (Session, error)
	// Merge applies u to the stored session and returns the result.
	Merge(ctx context.Context, userID int64, u Update) (Session, error)
	// ClearState drops the pending-input flag and keeps movie and style.
	ClearState(ctx context.Context, userID int64) error
}

// Ptr returns a pointer to v, for building Updates.
func Ptr[T any](v T) *T {
	return &v
}
