package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const upsertUserSQL = `
	INSERT INTO users (id, first_name, last_name, username, push_name, is_bot, is_contact, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		first_name = CASE WHEN excluded.first_name != '' THEN excluded.first_name ELSE users.first_name END,
		last_name = CASE WHEN excluded.last_name != '' THEN excluded.last_name ELSE users.last_name END,
		username = CASE WHEN excluded.username != '' THEN excluded.username ELSE users.username END,
		push_name = CASE WHEN excluded.push_name != '' THEN excluded.push_name ELSE users.push_name END,
		is_bot = MAX(users.is_bot, excluded.is_bot),
		is_contact = MAX(users.is_contact, excluded.is_contact),
		updated_at = excluded.updated_at`

// UpsertUser inserts or updates a user. Empty names keep stored values.
func (db *DB) UpsertUser(u *User) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(upsertUserSQL, u.ID, u.FirstName, u.LastName, u.Username, u.PushName, u.IsBot, u.IsContact, now)
	return err
}

// BulkUpsertUsers inserts or updates multiple users in a single transaction.
func (db *DB) BulkUpsertUsers(users []User) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, u := range users {
		if _, err := tx.Exec(upsertUserSQL, u.ID, u.FirstName, u.LastName, u.Username, u.PushName, u.IsBot, u.IsContact, now); err != nil {
			return fmt.Errorf("upsert user %d: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

// GetUser returns a user by id, or nil when unknown.
func (db *DB) GetUser(id int64) (*User, error) {
	var u User
	err := db.QueryRow(`
		SELECT id, first_name, last_name, username, push_name, is_bot, is_contact
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.PushName, &u.IsBot, &u.IsContact)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ContactIDs returns the ids of users in the address book, by name.
func (db *DB) ContactIDs() ([]int64, error) {
	rows, err := db.Query(`
		SELECT id FROM users WHERE is_contact = 1
		ORDER BY COALESCE(NULLIF(first_name,''), NULLIF(push_name,''), username), id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
