package store

import (
	"context"
	"fmt"

	"github.com/mtessier/reactsync/internal/chat"
	"github.com/mtessier/reactsync/internal/engine"
)

// SaveSnapshot replaces the stored configuration with the snapshot in
// one transaction. A crash mid-save leaves the previous configuration
// intact.
func (s *Store) SaveSnapshot(ctx context.Context, snap engine.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM bindings`); err != nil {
		return fmt.Errorf("save snapshot: clear bindings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM link_messages`); err != nil {
		return fmt.Errorf("save snapshot: clear links: %w", err)
	}

	for _, rec := range snap.Bindings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bindings
			(server_id, channel_id, message_id, symbol, role_id)
			VALUES (?, ?, ?, ?, ?)
		`,
			string(rec.Ref.Server),
			string(rec.Ref.Channel),
			string(rec.Ref.Message),
			string(rec.Symbol),
			string(rec.Role),
		)
		if err != nil {
			return fmt.Errorf("save snapshot: insert binding: %w", err)
		}
	}

	for _, rec := range snap.Links {
		for pos, ref := range rec.Messages {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO link_messages
				(server_id, group_name, channel_id, message_id, position)
				VALUES (?, ?, ?, ?, ?)
			`,
				string(rec.Server),
				rec.Name,
				string(ref.Channel),
				string(ref.Message),
				pos,
			)
			if err != nil {
				return fmt.Errorf("save snapshot: insert link message: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save snapshot: commit: %w", err)
	}
	return nil
}

// LoadSnapshot reads the stored configuration. An empty database
// yields an empty snapshot, not an error.
func (s *Store) LoadSnapshot(ctx context.Context) (engine.Snapshot, error) {
	var snap engine.Snapshot

	rows, err := s.db.QueryContext(ctx, `
		SELECT server_id, channel_id, message_id, symbol, role_id
		FROM bindings
		ORDER BY server_id, channel_id, message_id, symbol
	`)
	if err != nil {
		return snap, fmt.Errorf("load snapshot: query bindings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var server, channel, message, symbol, role string
		if err := rows.Scan(&server, &channel, &message, &symbol, &role); err != nil {
			return snap, fmt.Errorf("load snapshot: scan binding: %w", err)
		}
		snap.Bindings = append(snap.Bindings, engine.BindingRecord{
			Ref: chat.MessageRef{
				Server:  chat.ServerID(server),
				Channel: chat.ChannelID(channel),
				Message: chat.MessageID(message),
			},
			Symbol: chat.Symbol(symbol),
			Role:   chat.RoleID(role),
		})
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("load snapshot: iterate bindings: %w", err)
	}

	linkRows, err := s.db.QueryContext(ctx, `
		SELECT server_id, group_name, channel_id, message_id
		FROM link_messages
		ORDER BY server_id, group_name, position
	`)
	if err != nil {
		return snap, fmt.Errorf("load snapshot: query links: %w", err)
	}
	defer linkRows.Close()

	// Rows arrive ordered by (server, group, position), so consecutive
	// rows of one group fold into one record.
	var current *engine.LinkRecord
	for linkRows.Next() {
		var server, group, channel, message string
		if err := linkRows.Scan(&server, &group, &channel, &message); err != nil {
			return snap, fmt.Errorf("load snapshot: scan link message: %w", err)
		}
		ref := chat.MessageRef{
			Server:  chat.ServerID(server),
			Channel: chat.ChannelID(channel),
			Message: chat.MessageID(message),
		}
		if current == nil || current.Server != chat.ServerID(server) || current.Name != group {
			snap.Links = append(snap.Links, engine.LinkRecord{
				Server: chat.ServerID(server),
				Name:   group,
			})
			current = &snap.Links[len(snap.Links)-1]
		}
		current.Messages = append(current.Messages, ref)
	}
	if err := linkRows.Err(); err != nil {
		return snap, fmt.Errorf("load snapshot: iterate links: %w", err)
	}

	return snap, nil
}
