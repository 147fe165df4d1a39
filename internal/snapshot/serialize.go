package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var ErrNotFound = errors.New("snapshot not found")

// Marshal renders the snapshot as its durable JSON document.
func Marshal(s *Snapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Unmarshal parses a snapshot document. Documents written by a newer tool
// revision are rejected; added optional fields within the same format
// version decode fine.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Meta.FormatVersion > FormatVersion {
		return nil, fmt.Errorf("snapshot format version %d is newer than supported version %d",
			s.Meta.FormatVersion, FormatVersion)
	}
	return &s, nil
}

// Save writes the snapshot document to path, replacing any previous one
// atomically.
func Save(path string, s *Snapshot) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Load reads a snapshot document from path. A missing file is reported as
// ErrNotFound.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return Unmarshal(data)
}
