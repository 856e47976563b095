package analytics

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// FileStore persists records as append-only JSON lines in a local file.
// MarkCorrected rewrites the file in place, which is acceptable at the
// evaluation volumes a single deployment sees. Thread-safe.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore that writes to the given path.
// The file is created on first save if it does not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save appends rec to the file.
func (fs *FileStore) Save(_ context.Context, rec Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("analytics: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("analytics: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("analytics: write: %w", err)
	}
	return nil
}

// MarkCorrected flags the record with the given id as corrected.
func (fs *FileStore) MarkCorrected(_ context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	records, err := fs.readAll()
	if err != nil {
		return err
	}

	found := false
	for i := range records {
		if records[i].ID == id {
			now := time.Now().UTC()
			records[i].Corrected = true
			records[i].CorrectedAt = &now
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("analytics: mark corrected %q: %w", id, ErrNotFound)
	}
	return fs.writeAll(records)
}

// readAll loads every record. Must be called with fs.mu held.
func (fs *FileStore) readAll() ([]Record, error) {
	f, err := os.Open(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("analytics: open file: %w", err)
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("analytics: parse record: %w", err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("analytics: scan file: %w", err)
	}
	return records, nil
}

// writeAll replaces the file contents through a temp-file rename.
// Must be called with fs.mu held.
func (fs *FileStore) writeAll(records []Record) error {
	tmp := fs.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("analytics: open temp file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			f.Close()
			return fmt.Errorf("analytics: marshal: %w", err)
		}
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("analytics: write temp file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("analytics: flush temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("analytics: close temp file: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("analytics: replace file: %w", err)
	}
	return nil
}
