package store

import (
	"database/sql"
	"errors"
	"time"
)

const chatColumns = `id, title, kind, is_channel, user_id, position, is_pinned, is_archived,
	is_marked_unread, unread_count, last_message_id, last_read_inbox_id, last_read_outbox_id`

func scanChat(row interface{ Scan(...any) error }) (*Chat, error) {
	var c Chat
	err := row.Scan(&c.ID, &c.Title, &c.Kind, &c.IsChannel, &c.UserID, &c.Position, &c.IsPinned, &c.IsArchived,
		&c.IsMarkedUnread, &c.UnreadCount, &c.LastMessageID, &c.LastReadInboxID, &c.LastReadOutboxID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertChat inserts or updates a chat's descriptive fields. Activity,
// read state and position are left alone on update, except that a
// non-zero position only ever moves forward. An empty title keeps the
// stored one.
func (db *DB) UpsertChat(c *Chat) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO chats (id, title, kind, is_channel, user_id, position, is_pinned, is_archived, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE chats.title END,
			kind = excluded.kind,
			is_channel = excluded.is_channel,
			user_id = excluded.user_id,
			position = MAX(chats.position, excluded.position),
			is_pinned = excluded.is_pinned,
			is_archived = excluded.is_archived,
			updated_at = excluded.updated_at`,
		c.ID, c.Title, c.Kind, c.IsChannel, c.UserID, c.Position, c.IsPinned, c.IsArchived, now)
	return err
}

// ListChats returns positioned chats, pinned first, then most recent.
func (db *DB) ListChats(limit, offset int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT `+chatColumns+`
		FROM chats
		WHERE position > 0
		ORDER BY is_pinned DESC, position DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

// GetChat returns a single chat by id, or nil when unknown.
func (db *DB) GetChat(id int64) (*Chat, error) {
	c, err := scanChat(db.QueryRow(`SELECT `+chatColumns+` FROM chats WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// TouchChat records a new last message and moves the chat to position
// date if that is later than its current one.
func (db *DB) TouchChat(id, messageID, date int64) error {
	_, err := db.Exec(`
		UPDATE chats SET
			last_message_id = CASE WHEN ? >= last_message_id THEN ? ELSE last_message_id END,
			position = MAX(position, ?),
			updated_at = ?
		WHERE id = ?`, messageID, messageID, date, time.Now().UnixMilli(), id)
	return err
}

// IncrementUnread bumps a chat's unread counter.
func (db *DB) IncrementUnread(id int64) error {
	_, err := db.Exec(`UPDATE chats SET unread_count = unread_count + 1 WHERE id = ?`, id)
	return err
}

// MarkChatRead records messages up to lastRead as read and recomputes the
// unread counter from the incoming messages after it.
func (db *DB) MarkChatRead(id, lastRead int64) (unread int, err error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		UPDATE chats SET last_read_inbox_id = MAX(last_read_inbox_id, ?), is_marked_unread = 0 WHERE id = ?`,
		lastRead, id); err != nil {
		return 0, err
	}
	if err := tx.QueryRow(`
		SELECT COUNT(*) FROM messages m JOIN chats c ON c.id = m.chat_id
		WHERE m.chat_id = ? AND m.is_outgoing = 0 AND m.id > c.last_read_inbox_id`, id).Scan(&unread); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`UPDATE chats SET unread_count = ? WHERE id = ?`, unread, id); err != nil {
		return 0, err
	}
	return unread, tx.Commit()
}

// SetReadOutbox records that the peer has read our messages up to lastRead.
func (db *DB) SetReadOutbox(id, lastRead int64) error {
	_, err := db.Exec(`UPDATE chats SET last_read_outbox_id = MAX(last_read_outbox_id, ?) WHERE id = ?`, lastRead, id)
	return err
}

// SetMarkedUnread sets the manual unread mark.
func (db *DB) SetMarkedUnread(id int64, marked bool) error {
	_, err := db.Exec(`UPDATE chats SET is_marked_unread = ? WHERE id = ?`, marked, id)
	return err
}

// NextUnannounced returns up to limit positioned chats that have not been
// announced since ResetAnnounced, oldest first.
func (db *DB) NextUnannounced(limit int) ([]Chat, error) {
	rows, err := db.Query(`
		SELECT `+chatColumns+`
		FROM chats
		WHERE position > 0 AND announced = 0
		ORDER BY is_pinned ASC, position ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

// MarkAnnounced flags a chat as announced.
func (db *DB) MarkAnnounced(id int64) error {
	_, err := db.Exec(`UPDATE chats SET announced = 1 WHERE id = ?`, id)
	return err
}

// ResetAnnounced clears every announced flag.
func (db *DB) ResetAnnounced() error {
	_, err := db.Exec(`UPDATE chats SET announced = 0`)
	return err
}

// ChatCount returns the total number of chats.
func (db *DB) ChatCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM chats`).Scan(&count)
	return count, err
}

// SetUnreadCount overwrites a chat's unread counter.
func (db *DB) SetUnreadCount(id int64, n int) error {
	_, err := db.Exec(`UPDATE chats SET unread_count = ? WHERE id = ?`, n, id)
	return err
}

// SetPinned pins or unpins a chat.
func (db *DB) SetPinned(id int64, pinned bool) error {
	_, err := db.Exec(`UPDATE chats SET is_pinned = ? WHERE id = ?`, pinned, id)
	return err
}

// SetArchived moves a chat in or out of the archive.
func (db *DB) SetArchived(id int64, archived bool) error {
	_, err := db.Exec(`UPDATE chats SET is_archived = ? WHERE id = ?`, archived, id)
	return err
}

// RefreshLastMessage points last_message_id at the newest remaining message
// and returns it, 0 when the chat is empty.
func (db *DB) RefreshLastMessage(id int64) (int64, error) {
	var last int64
	err := db.QueryRow(`
		UPDATE chats SET last_message_id = COALESCE((SELECT MAX(id) FROM messages WHERE chat_id = ?), 0)
		WHERE id = ?
		RETURNING last_message_id`, id, id).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return last, err
}

// RenameChat sets a chat's title.
func (db *DB) RenameChat(id int64, title string) error {
	_, err := db.Exec(`UPDATE chats SET title = ? WHERE id = ?`, title, id)
	return err
}
