package session

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// BackupFileName is where pending sessions are parked across restarts.
const BackupFileName = "pending_orders_backup.json"

// WriteBackup persists sessions to path via a temp file rename so a crash
// mid-write never truncates an existing backup.
func WriteBackup(path string, sessions []Session) error {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace backup: %w", err)
	}
	return nil
}

// ReadBackup loads a backup written by WriteBackup. A missing file is not an
// error; it just means there is nothing to restore.
func ReadBackup(path string) ([]Session, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("parse backup: %w", err)
	}
	return sessions, nil
}

// Restore re-arms the given sessions in st with whatever window each has
// left. Sessions whose deadline already passed are dropped, not expired: the
// process was down, so no customer reply was possible and the decision stays
// with reconciliation. Returns how many sessions were re-armed.
func Restore(st *Store, sessions []Session, now time.Time) int {
	restored := 0
	for _, sess := range sessions {
		if !sess.ExpiresAt.After(now) {
			continue
		}
		st.Put(sess)
		restored++
	}
	return restored
}
