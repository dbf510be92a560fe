package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

// messageIDShift is the number of id bits reserved for messages sharing a
// second.
const messageIDShift = 20

const messageColumns = `id, chat_id, remote_id, sender_id, date, edit_date, is_outgoing,
	content_type, text, emoji, duration, COALESCE(file_id, 0)`

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ChatID, &m.RemoteID, &m.SenderID, &m.Date, &m.EditDate, &m.IsOutgoing,
		&m.ContentType, &m.Text, &m.Emoji, &m.Duration, &m.FileID)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// InsertMessage stores m unless a message with the same chat and remote id
// exists (idempotent on chat_id + remote_id). It sets m.ID and reports
// whether a row was created.
//
// Ids are allocated from the message date so that id order is
// chronological however late a message is stored: the high bits carry
// the unix second and the low messageIDShift bits a sequence within it.
func (db *DB) InsertMessage(m *Message) (created bool, err error) {
	now := time.Now().UnixMilli()
	base := m.Date<<messageIDShift + 1
	res, err := db.Exec(`
		INSERT INTO messages (id, chat_id, remote_id, sender_id, date, edit_date, is_outgoing,
			content_type, text, emoji, duration, file_id, created_at)
		VALUES (
			(SELECT COALESCE(MAX(id) + 1, ?1) FROM messages WHERE id >= ?1 AND id < ?2),
			?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11, ?12, ?13, ?14)
		ON CONFLICT(chat_id, remote_id) DO NOTHING`,
		base, (m.Date+1)<<messageIDShift,
		m.ChatID, m.RemoteID, m.SenderID, m.Date, m.EditDate, m.IsOutgoing,
		m.ContentType, m.Text, m.Emoji, m.Duration, nullID(m.FileID), now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := db.QueryRow(`SELECT id FROM messages WHERE chat_id = ? AND remote_id = ?`, m.ChatID, m.RemoteID).Scan(&m.ID); err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetMessage returns a message by id, or nil when unknown.
func (db *DB) GetMessage(chatID, id int64) (*Message, error) {
	m, err := scanMessage(db.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE chat_id = ? AND id = ?`, chatID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// MessageByRemoteID returns a message by its network id, or nil when unknown.
func (db *DB) MessageByRemoteID(chatID int64, remoteID string) (*Message, error) {
	m, err := scanMessage(db.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE chat_id = ? AND remote_id = ?`, chatID, remoteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// ListMessages returns messages of a chat older than fromID, newest first,
// using keyset pagination by id. A zero fromID starts at the newest.
func (db *DB) ListMessages(chatID, fromID int64, offset, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if fromID <= 0 {
		fromID = 1<<63 - 1
	}
	rows, err := db.Query(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE chat_id = ? AND id < ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?`, chatID, fromID, limit, max(offset, 0))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// GetMessages returns the messages of a chat with the given ids.
func (db *DB) GetMessages(chatID int64, ids []int64) ([]Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := []any{chatID}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := db.Query(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE chat_id = ? AND id IN (`+placeholders(len(ids))+`)
		ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// EditMessage replaces a message's text and stamps its edit date.
func (db *DB) EditMessage(chatID, id int64, text string, editDate int64) error {
	_, err := db.Exec(`UPDATE messages SET text = ?, edit_date = ? WHERE chat_id = ? AND id = ?`, text, editDate, chatID, id)
	return err
}

// DeleteMessages removes messages of a chat and returns how many existed.
func (db *DB) DeleteMessages(chatID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := []any{chatID}
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := db.Exec(`DELETE FROM messages WHERE chat_id = ? AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LatestMessageID returns the newest message id of a chat, or 0.
func (db *DB) LatestMessageID(chatID int64) (int64, error) {
	var id int64
	err := db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM messages WHERE chat_id = ?`, chatID).Scan(&id)
	return id, err
}

// CountMessages returns the number of stored messages of a chat.
func (db *DB) CountMessages(chatID int64) (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE chat_id = ?`, chatID).Scan(&count)
	return count, err
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
