package chat

import (
	"sync"
	"time"
)

// Transcript is the append-only, ordered log of rendered messages.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{messages: make([]Message, 0, 16)}
}

// Append records a new message and returns it as stored.
func (t *Transcript) Append(text string, author Author) Message {
	msg := Message{
		Text:      text,
		Author:    author,
		CreatedAt: time.Now().UTC(),
	}

	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()

	return msg
}

// Messages returns a copy of the transcript in render order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	copied := make([]Message, len(t.messages))
	copy(copied, t.messages)
	return copied
}

// Len returns the number of rendered messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
