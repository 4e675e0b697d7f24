package chat

import "time"

// Author identifies who produced a transcript entry.
type Author string

const (
	AuthorUser Author = "user"
	AuthorBot  Author = "bot"
)

// Message is a single rendered turn in the transcript.
type Message struct {
	Text      string    `json:"text"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}
