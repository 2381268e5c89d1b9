// Package transporttest provides an in-memory Messenger for tests.
package transporttest

import (
	"context"
	"strings"
	"sync"

	"github.com/alphabot-ai/voicethreads/internal/transport"
)

type Message struct {
	To       int64
	Kind     string // "text", "voice" or "buttons"
	Text     string // text body, voice caption or button prompt
	AudioRef string
	Buttons  [][]transport.Button
}

// Tokens flattens the button matrix.
func (m Message) Tokens() []string {
	var out []string
	for _, row := range m.Buttons {
		for _, b := range row {
			out = append(out, b.Token)
		}
	}
	return out
}

// Recorder records every outbound message. Recipients listed in Fail get
// the configured error instead.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Fail     map[int64]error
}

func NewRecorder() *Recorder {
	return &Recorder{Fail: make(map[int64]error)}
}

func (r *Recorder) record(m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.Fail[m.To]; err != nil {
		return err
	}
	r.messages = append(r.messages, m)
	return nil
}

func (r *Recorder) SendText(_ context.Context, to int64, text string) error {
	return r.record(Message{To: to, Kind: "text", Text: text})
}

func (r *Recorder) SendVoice(_ context.Context, to int64, audioRef, caption string) error {
	return r.record(Message{To: to, Kind: "voice", Text: caption, AudioRef: audioRef})
}

func (r *Recorder) PresentButtons(_ context.Context, to int64, text string, rows [][]transport.Button) error {
	return r.record(Message{To: to, Kind: "buttons", Text: text, Buttons: rows})
}

// Messages returns a copy of everything sent to to.
func (r *Recorder) Messages(to int64) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.messages {
		if m.To == to {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message sent to to.
func (r *Recorder) Last(to int64) (Message, bool) {
	msgs := r.Messages(to)
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// Contains reports whether any text, caption or prompt sent to to contains s.
func (r *Recorder) Contains(to int64, s string) bool {
	for _, m := range r.Messages(to) {
		if strings.Contains(m.Text, s) {
			return true
		}
	}
	return false
}

// Reset forgets recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}

var _ transport.Messenger = (*Recorder)(nil)
