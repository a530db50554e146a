package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Session is the CLI state persisted between runs.
type Session struct {
	AccessToken string `json:"access_token,omitempty"`
	PlayerID    string `json:"player_id,omitempty"`
	RoomID      string `json:"room_id,omitempty"`
}

// Load reads the session file. A missing or empty file yields an empty session.
func Load(path string) (Session, error) {
	var st Session
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("read session state failed: %w", err)
	}
	if len(data) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parse session state failed: %w", err)
	}
	return st, nil
}

func Save(path string, st Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create session state dir failed: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session state failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session state failed: %w", err)
	}
	return nil
}

func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session state failed: %w", err)
	}
	return nil
}
