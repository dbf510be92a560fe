package store

import (
	"database/sql"
	"errors"
	"strings"
)

// SearchChats finds chats whose title, or private peer's names,
// contain query. Matching is case-insensitive for ASCII.
func (db *DB) SearchChats(query string, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	rows, err := db.Query(`
		SELECT c.id
		FROM chats c
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.title LIKE ?1 ESCAPE '\'
			OR u.username LIKE ?1 ESCAPE '\'
			OR u.push_name LIKE ?1 ESCAPE '\'
		ORDER BY c.position DESC
		LIMIT ?2`, pattern, limit)
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

// FindByUsername returns the chat id of the private chat with the user
// named username, or 0.
func (db *DB) FindByUsername(username string) (int64, error) {
	var id int64
	err := db.QueryRow(`
		SELECT c.id FROM chats c JOIN users u ON u.id = c.user_id
		WHERE u.username = ? COLLATE NOCASE
		LIMIT 1`, strings.TrimPrefix(username, "@")).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
