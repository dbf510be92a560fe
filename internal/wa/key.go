package wa

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/matheus3301/telesync/internal/store"
	"github.com/zeebo/blake3"
)

const keyFingerprintState = "key_fingerprint"

// errWrongKey is reported as a 401 to the caller.
var errWrongKey = errors.New("database encryption key does not match")

func fingerprint(key []byte) string {
	sum := blake3.Sum256(key)
	return hex.EncodeToString(sum[:])
}

// checkKey binds the database to key on first open and rejects any other
// key afterwards.
func checkKey(db *store.DB, key []byte) error {
	stored, err := db.GetState(keyFingerprintState)
	if err != nil {
		return fmt.Errorf("read key fingerprint: %w", err)
	}
	fp := fingerprint(key)
	if stored == "" {
		return db.SetState(keyFingerprintState, fp)
	}
	if stored != fp {
		return errWrongKey
	}
	return nil
}
