package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileStore persists records as append-only JSON lines in a local file.
// Reads scan the whole file, which is fine for a single-user or small
// deployment. Lines that fail to decode, such as a write torn by a crash,
// are skipped.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore that writes to path. The file and its
// parent directory are created on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save appends r to the file.
func (s *FileStore) Save(_ context.Context, r *Record) error {
	if err := validateForSave(r); err != nil {
		return err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("history: create directory: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("history: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("history: write: %w", err)
	}
	return nil
}

// Get returns the record with the given ID. When an ID was written more than
// once the last line wins.
func (s *FileStore) Get(_ context.Context, id string) (*Record, error) {
	var found *Record
	err := s.scan(func(r Record) {
		if r.ID == id {
			found = &r
		}
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// List returns up to limit records of userID, newest first.
func (s *FileStore) List(_ context.Context, userID string, limit int) ([]Record, error) {
	var out []Record
	err := s.scan(func(r Record) {
		if r.UserID == userID {
			out = append(out, r)
		}
	})
	if err != nil {
		return nil, err
	}

	// Lines are in write order; reverse before the stable sort so that equal
	// timestamps keep newest-written first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping checks that the directory holding the file exists or can be created.
func (s *FileStore) Ping(context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	return nil
}

// Close is a no-op; the file is opened per operation.
func (s *FileStore) Close() error { return nil }

// scan calls fn for every decodable line in the file. A missing file is
// treated as empty.
func (s *FileStore) scan(fn func(Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("history: open file: %w", err)
	}
	defer f.Close()

	rd := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		line, err := rd.ReadBytes('\n')
		if len(line) > 0 && (len(line) > 1 || line[0] != '\n') {
			var r Record
			if jerr := json.Unmarshal(line, &r); jerr != nil {
				slog.Warn("history: skipping malformed line",
					"path", s.path, "line", lineNo, "err", jerr)
			} else {
				fn(r)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("history: read: %w", err)
		}
	}
}
