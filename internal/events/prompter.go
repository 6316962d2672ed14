package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Messenger puts a message on the viewer's screen.
type Messenger interface {
	ShowMessage(text string) error
}

// Keys that count as declining an on-screen question.
var declineKeys = map[string]bool{
	"Back":  true,
	"Exit":  true,
	"Power": true,
}

// Prompter asks the viewer a question via the on-screen display and reads
// the answer from the remote control key stream. Confirm blocks its caller;
// keys arrive through notifyKey from the connection readers.
type Prompter struct {
	osd    Messenger
	logger zerolog.Logger

	mu     sync.Mutex
	waiter chan string
}

// NewPrompter creates a prompter on top of a messenger.
func NewPrompter(osd Messenger, logger zerolog.Logger) *Prompter {
	return &Prompter{
		osd:    osd,
		logger: logger.With().Str("component", "prompter").Logger(),
	}
}

// Confirm shows the message and waits up to timeout for a key. Any key
// keeps the session except Back/Exit/Power, which decline; no key at all
// resolves to defaultAnswer.
func (p *Prompter) Confirm(message string, timeout time.Duration, defaultAnswer bool) bool {
	ch := make(chan string, 1)
	p.mu.Lock()
	p.waiter = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.waiter = nil
		p.mu.Unlock()
	}()

	if err := p.osd.ShowMessage(message); err != nil {
		p.logger.Error().Err(err).Msg("Could not show prompt, using default answer")
		return defaultAnswer
	}

	select {
	case key := <-ch:
		p.logger.Debug().Str("key", key).Msg("Prompt answered")
		return !declineKeys[key]
	case <-time.After(timeout):
		p.logger.Debug().Msg("Prompt timed out")
		return defaultAnswer
	}
}

// notifyKey hands a remote key to a waiting Confirm, if any.
func (p *Prompter) notifyKey(key string) {
	p.mu.Lock()
	waiter := p.waiter
	p.mu.Unlock()
	if waiter == nil {
		return
	}
	select {
	case waiter <- key:
	default:
	}
}
