package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PeerID returns the integer id for jid, allocating one on first sight.
// Aliases resolve to the id of the jid they point at.
func (db *DB) PeerID(jid string) (int64, error) {
	var id int64
	err := db.QueryRow(`
		SELECT peer_id FROM peer_aliases WHERE jid = ?
		UNION ALL
		SELECT id FROM peers WHERE jid = ?
		LIMIT 1`, jid, jid).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if _, err := db.Exec(`INSERT INTO peers (jid, created_at) VALUES (?, ?) ON CONFLICT(jid) DO NOTHING`, jid, time.Now().UnixMilli()); err != nil {
		return 0, fmt.Errorf("insert peer %q: %w", jid, err)
	}
	if err := db.QueryRow(`SELECT id FROM peers WHERE jid = ?`, jid).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// PeerJID returns the jid behind id, or "" when unknown.
func (db *DB) PeerJID(id int64) (string, error) {
	var jid string
	err := db.QueryRow(`SELECT jid FROM peers WHERE id = ?`, id).Scan(&jid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return jid, err
}

// AliasPeer makes alias resolve to canonical's id. If alias already had an
// id of its own, its chat, user and messages are merged into canonical's.
// Returns the canonical id.
func (db *DB) AliasPeer(alias, canonical string) (int64, error) {
	target, err := db.PeerID(canonical)
	if err != nil {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var old int64
	err = tx.QueryRow(`SELECT id FROM peers WHERE jid = ?`, alias).Scan(&old)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return 0, err
	case old != target:
		if err := mergePeer(tx, old, target); err != nil {
			return 0, err
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO peer_aliases (jid, peer_id) VALUES (?, ?)
		ON CONFLICT(jid) DO UPDATE SET peer_id = excluded.peer_id`, alias, target); err != nil {
		return 0, fmt.Errorf("alias %q: %w", alias, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return target, nil
}

// mergePeer moves everything owned by from onto to and drops from.
func mergePeer(tx *sql.Tx, from, to int64) error {
	// Ensure the target chat exists so messages can move.
	if _, err := tx.Exec(`
		INSERT INTO chats (id, title, kind, is_channel, user_id, position, is_pinned, is_archived,
			is_marked_unread, unread_count, last_message_id, last_read_inbox_id, last_read_outbox_id, updated_at)
		SELECT ?, title, kind, is_channel, ?, position, is_pinned, is_archived,
			is_marked_unread, unread_count, last_message_id, last_read_inbox_id, last_read_outbox_id, updated_at
		FROM chats WHERE id = ?
		ON CONFLICT(id) DO UPDATE SET
			position = MAX(chats.position, excluded.position),
			last_message_id = MAX(chats.last_message_id, excluded.last_message_id),
			unread_count = chats.unread_count + excluded.unread_count,
			title = CASE WHEN chats.title = '' THEN excluded.title ELSE chats.title END`,
		to, to, from); err != nil {
		return fmt.Errorf("merge chat: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE OR IGNORE messages SET chat_id = ? WHERE chat_id = ?`, to, from); err != nil {
		return fmt.Errorf("merge messages: %w", err)
	}
	if _, err := tx.Exec(`UPDATE messages SET sender_id = ? WHERE sender_id = ?`, to, from); err != nil {
		return fmt.Errorf("merge senders: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO users (id, first_name, last_name, username, push_name, is_bot, is_contact, updated_at)
		SELECT ?, first_name, last_name, username, push_name, is_bot, is_contact, updated_at
		FROM users WHERE id = ?
		ON CONFLICT(id) DO UPDATE SET
			first_name = CASE WHEN users.first_name = '' THEN excluded.first_name ELSE users.first_name END,
			last_name = CASE WHEN users.last_name = '' THEN excluded.last_name ELSE users.last_name END,
			push_name = CASE WHEN users.push_name = '' THEN excluded.push_name ELSE users.push_name END,
			is_contact = MAX(users.is_contact, excluded.is_contact)`,
		to, from); err != nil {
		return fmt.Errorf("merge user: %w", err)
	}

	// Cascades to the old chat, its leftover messages and user row.
	if _, err := tx.Exec(`DELETE FROM peers WHERE id = ?`, from); err != nil {
		return fmt.Errorf("delete peer: %w", err)
	}
	return nil
}
