// Package voice delivers recognized speech to the resolver. Recognition
// itself happens in the browser; the recognized text is pushed in over HTTP.
package voice

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultLanguage is the recognition language requested from the client.
const DefaultLanguage = "ru-RU"

var (
	// ErrNotListening means a transcript arrived while capture was stopped.
	ErrNotListening = errors.New("voice capture is not active")
	// ErrEmptyTranscript means recognition produced no text.
	ErrEmptyTranscript = errors.New("empty transcript")
)

// Transcript is one recognized utterance. Err is set when recognition failed.
type Transcript struct {
	Text       string    `json:"text"`
	Err        error     `json:"-"`
	ReceivedAt time.Time `json:"received_at"`
}

// SpeechTranscriber yields one best transcript per utterance.
type SpeechTranscriber interface {
	OnResult(fn func(Transcript))
}

// Control arms and disarms voice capture. Capture is single-shot: Start arms
// it for one utterance, and the first delivered transcript disarms it.
type Control struct {
	active   atomic.Bool
	language string
}

// NewControl creates a stopped Control for the given recognition language.
func NewControl(language string) *Control {
	if language == "" {
		language = DefaultLanguage
	}
	return &Control{language: language}
}

// Start arms capture.
func (c *Control) Start() { c.active.Store(true) }

// Stop disarms capture.
func (c *Control) Stop() { c.active.Store(false) }

// Active reports whether capture is armed.
func (c *Control) Active() bool { return c.active.Load() }

// Language is the recognition language.
func (c *Control) Language() string { return c.language }

// consume disarms capture and reports whether it was armed.
func (c *Control) consume() bool { return c.active.CompareAndSwap(true, false) }

// PushTranscriber is a SpeechTranscriber fed from outside the process.
type PushTranscriber struct {
	control *Control
	now     func() time.Time

	mu       sync.RWMutex
	handlers []func(Transcript)
}

// NewPushTranscriber creates a transcriber gated by control.
func NewPushTranscriber(control *Control) *PushTranscriber {
	return &PushTranscriber{control: control, now: time.Now}
}

// OnResult registers a result handler.
func (p *PushTranscriber) OnResult(fn func(Transcript)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, fn)
}

// Push delivers a recognized utterance. It fails with ErrNotListening when
// capture is not armed and with ErrEmptyTranscript for blank text; in both
// cases no handler runs. A blank transcript still ends the capture.
func (p *PushTranscriber) Push(text string) error {
	if !p.control.consume() {
		return ErrNotListening
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyTranscript
	}
	p.dispatch(Transcript{Text: text, ReceivedAt: p.now()})
	return nil
}

// Fail reports a recognition failure. Handlers see a Transcript with Err
// set and no text.
func (p *PushTranscriber) Fail(err error) error {
	if !p.control.consume() {
		return ErrNotListening
	}
	p.dispatch(Transcript{Err: err, ReceivedAt: p.now()})
	return nil
}

func (p *PushTranscriber) dispatch(t Transcript) {
	p.mu.RLock()
	handlers := append([]func(Transcript){}, p.handlers...)
	p.mu.RUnlock()

	for _, fn := range handlers {
		fn(t)
	}
}
