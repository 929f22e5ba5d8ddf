package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveJson writes data as indented JSON to path, creating parent directories
// as needed.
func SaveJson(path string, data interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}

	bs, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}

	if err := os.WriteFile(path, bs, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
