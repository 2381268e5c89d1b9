package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alphabot-ai/voicethreads/internal/transport"
)

var ErrUnknownFrame = errors.New("gateway: unknown frame")

// inFrame is a client to server message.
type inFrame struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	AudioRef string `json:"audio_ref,omitempty"`
	Duration int    `json:"duration,omitempty"`
	Token    string `json:"token,omitempty"`
}

// outFrame is a server to client message.
type outFrame struct {
	Type     string               `json:"type"`
	Text     string               `json:"text,omitempty"`
	AudioRef string               `json:"audio_ref,omitempty"`
	Caption  string               `json:"caption,omitempty"`
	Buttons  [][]transport.Button `json:"buttons,omitempty"`
}

func (f inFrame) event(from transport.Sender) (transport.Event, error) {
	ev := transport.Event{From: from}
	switch strings.ToLower(f.Type) {
	case "text":
		ev.Kind = transport.EventText
		ev.Text = f.Text
	case "voice":
		ev.Kind = transport.EventVoice
		if f.AudioRef != "" {
			ev.Voice = &transport.Voice{AudioRef: f.AudioRef, Duration: f.Duration}
		}
	case "button":
		ev.Kind = transport.EventButton
		ev.Token = f.Token
	default:
		return transport.Event{}, fmt.Errorf("%w: %q", ErrUnknownFrame, f.Type)
	}
	return ev, nil
}
