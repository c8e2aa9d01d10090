package engine

import (
	"sync"

	"github.com/mtessier/reactsync/internal/chat"
)

// BindingCache maps (message, symbol) pairs to role IDs.
//
// The cache sits on the event hot path: every inbound reaction does one
// Lookup. It is read-mostly - mutations only happen through infrequent
// admin operations and message deletions - so a plain RWMutex over
// nested maps is enough.
//
// Layout mirrors the persisted snapshot:
// server -> channel -> message -> symbol -> role.
type BindingCache struct {
	mu      sync.RWMutex
	servers map[chat.ServerID]map[chat.ChannelID]map[chat.MessageID]map[chat.Symbol]chat.RoleID
}

// NewBindingCache creates an empty cache.
func NewBindingCache() *BindingCache {
	return &BindingCache{
		servers: make(map[chat.ServerID]map[chat.ChannelID]map[chat.MessageID]map[chat.Symbol]chat.RoleID),
	}
}

// Bind maps the (message, symbol) pair to a role. Fails with
// AlreadyBound if the pair is already mapped.
func (c *BindingCache) Bind(ref chat.MessageRef, symbol chat.Symbol, role chat.RoleID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels, ok := c.servers[ref.Server]
	if !ok {
		channels = make(map[chat.ChannelID]map[chat.MessageID]map[chat.Symbol]chat.RoleID)
		c.servers[ref.Server] = channels
	}
	messages, ok := channels[ref.Channel]
	if !ok {
		messages = make(map[chat.MessageID]map[chat.Symbol]chat.RoleID)
		channels[ref.Channel] = messages
	}
	symbols, ok := messages[ref.Message]
	if !ok {
		symbols = make(map[chat.Symbol]chat.RoleID)
		messages[ref.Message] = symbols
	}

	if _, bound := symbols[symbol]; bound {
		return newAlreadyBound(ref, symbol)
	}
	symbols[symbol] = role
	return nil
}

// Unbind removes the binding for the (message, symbol) pair and returns
// the role it was mapped to. Fails with NotBound if absent.
func (c *BindingCache) Unbind(ref chat.MessageRef, symbol chat.Symbol) (chat.RoleID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	symbols := c.symbolsLocked(ref)
	role, bound := symbols[symbol]
	if !bound {
		return "", newNotBound(ref, symbol)
	}
	delete(symbols, symbol)
	return role, nil
}

// Lookup returns the role bound to the (message, symbol) pair. O(1).
func (c *BindingCache) Lookup(ref chat.MessageRef, symbol chat.Symbol) (chat.RoleID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	role, ok := c.symbolsLocked(ref)[symbol]
	return role, ok
}

// RolesOf returns every role bound anywhere on the message.
func (c *BindingCache) RolesOf(ref chat.MessageRef) chat.RoleSet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	symbols := c.symbolsLocked(ref)
	roles := make(chat.RoleSet, len(symbols))
	for _, role := range symbols {
		roles.Add(role)
	}
	return roles
}

// SymbolFor returns the symbol a role is bound under on the message,
// if any. Used by the unbind-by-role admin path.
func (c *BindingCache) SymbolFor(ref chat.MessageRef, role chat.RoleID) (chat.Symbol, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for symbol, bound := range c.symbolsLocked(ref) {
		if bound == role {
			return symbol, true
		}
	}
	return "", false
}

// RemoveMessage cascades, removing every binding for the message.
// Returns the number of bindings removed.
func (c *BindingCache) RemoveMessage(ref chat.MessageRef) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels, ok := c.servers[ref.Server]
	if !ok {
		return 0
	}
	messages, ok := channels[ref.Channel]
	if !ok {
		return 0
	}
	removed := len(messages[ref.Message])
	delete(messages, ref.Message)
	return removed
}

// Bindings returns every binding as flat records in deterministic
// (lexicographic) order. Used to build persistence snapshots.
func (c *BindingCache) Bindings() []BindingRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []BindingRecord
	for server, channels := range c.servers {
		for channel, messages := range channels {
			for message, symbols := range messages {
				for symbol, role := range symbols {
					out = append(out, BindingRecord{
						Ref:    chat.MessageRef{Server: server, Channel: channel, Message: message},
						Symbol: symbol,
						Role:   role,
					})
				}
			}
		}
	}
	sortBindingRecords(out)
	return out
}

// symbolsLocked returns the symbol map for a message, or nil if absent.
// Caller must hold the mutex. The returned map may be mutated only
// under the write lock.
func (c *BindingCache) symbolsLocked(ref chat.MessageRef) map[chat.Symbol]chat.RoleID {
	channels, ok := c.servers[ref.Server]
	if !ok {
		return nil
	}
	messages, ok := channels[ref.Channel]
	if !ok {
		return nil
	}
	return messages[ref.Message]
}
