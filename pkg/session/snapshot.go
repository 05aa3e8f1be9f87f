package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteSnapshot overwrites path with the cookie jar as JSON. The write goes
// through a temporary file and a rename so readers never see a partial jar.
func WriteSnapshot(path string, cookies []Cookie) error {
	if path == "" {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	if cookies == nil {
		cookies = []Cookie{}
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
