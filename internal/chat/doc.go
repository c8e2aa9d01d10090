// Package chat defines the domain identifiers and collaborator interfaces
// shared by the reaction-role engine.
//
// The package is deliberately dependency-light: it holds the identifier
// types (server, channel, message, role, member), the reaction symbol
// representation, role sets, and the interfaces through which the engine
// talks to the outside world (membership store, reaction source, message
// resolver, marker). Concrete implementations live in internal/gateway
// (HTTP/websocket) and internal/testutil (in-memory fakes).
//
// Store errors carry an explicit kind (Forbidden or Transient) so the
// worker can branch on error classification instead of catching
// generically.
package chat
