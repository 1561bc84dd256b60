package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// jsonFile persists a JSON document atomically: the document is written to a
// temp file in the same directory and renamed over the target, so a crash
// mid-write never leaves a truncated store behind.
type jsonFile struct {
	path string
}

func (f jsonFile) Save(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(f.path), err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}

// Load decodes the file into v. A missing file is not an error; it reports
// found=false so callers can start empty.
func (f jsonFile) Load(v any) (found bool, err error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", f.path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("decoding %s: %w", f.path, err)
	}
	return true, nil
}

// copyFile refreshes the backup sibling of a store. Best effort only.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
