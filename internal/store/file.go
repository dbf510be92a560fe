package store

import (
	"database/sql"
	"errors"
)

// InsertFile stores a media descriptor and sets f.ID.
func (db *DB) InsertFile(f *File) error {
	res, err := db.Exec(`
		INSERT INTO files (media_type, mime_type, size, direct_path, media_key, file_sha256, file_enc_sha256)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.MediaType, f.MimeType, f.Size, f.DirectPath, f.MediaKey, f.FileSHA256, f.FileEncSHA256)
	if err != nil {
		return err
	}
	f.ID, err = res.LastInsertId()
	return err
}

// GetFile returns a file by id, or nil when unknown.
func (db *DB) GetFile(id int64) (*File, error) {
	var f File
	err := db.QueryRow(`
		SELECT id, media_type, mime_type, size, direct_path, media_key, file_sha256, file_enc_sha256,
			local_path, downloaded_size, completed
		FROM files WHERE id = ?`, id).
		Scan(&f.ID, &f.MediaType, &f.MimeType, &f.Size, &f.DirectPath, &f.MediaKey, &f.FileSHA256, &f.FileEncSHA256,
			&f.LocalPath, &f.DownloadedSize, &f.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// MarkFileDownloaded records where a file was written.
func (db *DB) MarkFileDownloaded(id int64, path string, size int64) error {
	_, err := db.Exec(`
		UPDATE files SET local_path = ?, downloaded_size = ?, completed = 1 WHERE id = ?`, path, size, id)
	return err
}
