package chat

import "fmt"

// Identifier types for the chat platform. All IDs are opaque strings;
// the engine never interprets them beyond equality.
type (
	// ServerID identifies a server (guild).
	ServerID string

	// ChannelID identifies a text channel within a server.
	ChannelID string

	// MessageID identifies a message within a channel.
	MessageID string

	// RoleID identifies a grantable role within a server.
	RoleID string

	// MemberID identifies a member account. The same account has the
	// same MemberID across servers.
	MemberID string
)

// MessageRef fully qualifies a message: server, channel, message.
type MessageRef struct {
	Server  ServerID
	Channel ChannelID
	Message MessageID
}

// String renders the reference as "server/channel/message" for logs.
func (r MessageRef) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Server, r.Channel, r.Message)
}

// MemberKey identifies a member within a specific server. It is the
// aggregation key for pending role mutations: at most one live intent
// exists per MemberKey.
type MemberKey struct {
	Server ServerID
	Member MemberID
}

// String renders the key as "server_member", the same shape the queue
// uses internally.
func (k MemberKey) String() string {
	return fmt.Sprintf("%s_%s", k.Server, k.Member)
}

// EveryoneRole returns the base pseudo-role of a server. Its ID equals
// the server ID, mirroring the platform convention. Every member holds
// it implicitly and it must never be written back through a role
// replacement, so fresh mutation intents seed their remove set with it.
func EveryoneRole(server ServerID) RoleID {
	return RoleID(server)
}
