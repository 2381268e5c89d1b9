// Package transport defines the platform-neutral chat contract between a
// messaging frontend and the interaction engine.
package transport

import "context"

type EventKind string

const (
	EventText   EventKind = "text"
	EventVoice  EventKind = "voice"
	EventButton EventKind = "button"
)

// Sender identifies the user behind an event.
type Sender struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"handle,omitempty"`
}

// DisplayName falls back to the handle, then to a generic label.
func (s Sender) DisplayName() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Handle != "":
		return s.Handle
	}
	return "Anonymous"
}

type Voice struct {
	AudioRef string `json:"audio_ref"`
	Duration int    `json:"duration"`
}

type Event struct {
	From  Sender
	Kind  EventKind
	Text  string
	Voice *Voice
	Token string
}

type Button struct {
	Label string `json:"label"`
	Token string `json:"token"`
}

// Messenger is what the core needs from a transport.
type Messenger interface {
	SendText(ctx context.Context, to int64, text string) error
	SendVoice(ctx context.Context, to int64, audioRef, caption string) error
	PresentButtons(ctx context.Context, to int64, text string, rows [][]Button) error
}

// Handler consumes inbound events.
type Handler interface {
	Handle(ctx context.Context, ev Event)
}

type HandlerFunc func(ctx context.Context, ev Event)

func (f HandlerFunc) Handle(ctx context.Context, ev Event) {
	f(ctx, ev)
}
