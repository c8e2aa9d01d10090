package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/mtessier/reactsync/internal/chat"
)

// Event types carried on the gateway stream.
const (
	EventReactionAdd    = "reaction_add"
	EventReactionRemove = "reaction_remove"
	EventMessageDelete  = "message_delete"
)

// Envelope is the outer frame of every gateway event: a type tag and
// the raw payload, decoded per type.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ReactionPayload is the body of reaction_add and reaction_remove
// events.
type ReactionPayload struct {
	ServerID  string `json:"server_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	MemberID  string `json:"member_id"`
	Emoji     string `json:"emoji"`
}

// Ref returns the message the reaction sits on.
func (p ReactionPayload) Ref() chat.MessageRef {
	return chat.MessageRef{
		Server:  chat.ServerID(p.ServerID),
		Channel: chat.ChannelID(p.ChannelID),
		Message: chat.MessageID(p.MessageID),
	}
}

// MessageDeletePayload is the body of message_delete events.
type MessageDeletePayload struct {
	ServerID  string `json:"server_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// Ref returns the deleted message.
func (p MessageDeletePayload) Ref() chat.MessageRef {
	return chat.MessageRef{
		Server:  chat.ServerID(p.ServerID),
		Channel: chat.ChannelID(p.ChannelID),
		Message: chat.MessageID(p.MessageID),
	}
}

// decodeReaction unmarshals a reaction payload, normalizing the emoji
// into a binding cache key.
func decodeReaction(data json.RawMessage) (ReactionPayload, chat.Symbol, error) {
	var p ReactionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, "", fmt.Errorf("decode reaction payload: %w", err)
	}
	return p, chat.ParseSymbol(p.Emoji), nil
}
