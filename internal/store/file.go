package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rbright/rehearse/internal/interview"
)

// FileStore writes one JSON document per key into a directory:
// interview_<id>.json and feedback_<id>.json.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created on
// first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the store root.
func (f *FileStore) Dir() string { return f.dir }

func (f *FileStore) Save(ctx context.Context, record interview.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateID(record.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record %s: %w", record.ID, err)
	}
	return f.write(record.Key(), data)
}

func (f *FileStore) Load(_ context.Context, id string) (interview.Record, error) {
	if err := ValidateID(id); err != nil {
		return interview.Record{}, err
	}
	data, err := f.read(interview.RecordKey(id))
	if err != nil {
		return interview.Record{}, err
	}
	var record interview.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return interview.Record{}, fmt.Errorf("decode record %s: %w", id, err)
	}
	return record, nil
}

func (f *FileStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Summary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store dir %s: %w", f.dir, err)
	}

	out := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "interview_") || filepath.Ext(name) != ".json" {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, "interview_"), ".json")
		record, err := f.Load(ctx, id)
		if err != nil {
			continue
		}
		_, statErr := os.Stat(f.path(interview.FeedbackKey(id)))
		out = append(out, summarize(record, statErr == nil))
	}
	sortNewestFirst(out)
	return out, nil
}

func (f *FileStore) SaveFeedback(ctx context.Context, id string, report json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}
	if _, err := os.Stat(f.path(interview.RecordKey(id))); err != nil {
		return ErrNotFound
	}
	return f.write(interview.FeedbackKey(id), report)
}

func (f *FileStore) LoadFeedback(_ context.Context, id string) (json.RawMessage, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	data, err := f.read(interview.FeedbackKey(id))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// write replaces key atomically via a temp file rename.
func (f *FileStore) write(key string, data []byte) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("create store dir %s: %w", f.dir, err)
	}
	tmp, err := os.CreateTemp(f.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

func (f *FileStore) read(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}
