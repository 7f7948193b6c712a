package domain

import "time"

// Turn is one exchanged message pair in a conversation.
type Turn struct {
	UserMessage string    `json:"userMessage"`
	Reply       string    `json:"reply"`
	At          time.Time `json:"at"`
}

type Conversation struct {
	ID        string    `json:"sessionId"`
	OwnerID   string    `json:"ownerId"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
