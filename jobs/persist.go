package jobs

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/teranos/jobtrail/errors"
)

const filePermissions = 0644

// loadFile reads the record array at path. A missing or empty file is an empty store.
func loadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read store %s", path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []Record{}, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "store %s is not a valid job list", path),
			"restore the file from a backup or move it aside to start a new store")
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// writeFile replaces path with records. The new content is written to a
// temporary file in the same directory, synced, and renamed over path, so
// readers see either the previous or the new content in full.
func writeFile(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode store")
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return unwritable(err, path)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return unwritable(err, path)
	}
	if err := tmp.Sync(); err != nil {
		return unwritable(err, path)
	}
	if err := tmp.Chmod(filePermissions); err != nil {
		return unwritable(err, path)
	}
	if err := tmp.Close(); err != nil {
		return unwritable(err, path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return unwritable(err, path)
	}
	committed = true

	// Persist the rename itself; not every filesystem supports syncing a directory
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}

func unwritable(err error, path string) error {
	return errors.WithHintf(
		errors.Mark(errors.Wrapf(err, "failed to commit store %s", path), errors.ErrStorageUnwritable),
		"check that %s is writable and the disk is not full", filepath.Dir(path))
}
