// Package chat coordinates the conversation: speech turns in, tutor replies
// out, with an append-only message log.
package chat

import "github.com/google/uuid"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the conversation log.
type Message struct {
	ID      uuid.UUID
	Role    Role
	Text    string
	Loading bool
}

func newUserMessage(text string) Message {
	return Message{ID: uuid.New(), Role: RoleUser, Text: text}
}

func newAssistantMessage(text string) Message {
	return Message{ID: uuid.New(), Role: RoleAssistant, Text: text}
}

// newLoadingMessage is the transient placeholder shown while a reply is
// being generated. It is replaced in place, keeping its id.
func newLoadingMessage() Message {
	return Message{ID: uuid.New(), Role: RoleAssistant, Loading: true}
}
