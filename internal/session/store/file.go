package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/zensu/focusflow/internal/domain/model"
)

// envelope is the on-disk format. The explicit version field lets a
// future layout change migrate old files in place.
type envelope struct {
	Version  int                            `json:"version"`
	Sessions map[string]model.SessionRecord `json:"sessions"`
}

const envelopeVersion = 1

// FileStore implements Store on a single JSON file. The full record map
// is rewritten on every mutation via temp file, fsync and rename, so a
// crash leaves either the old file or the new one, never a torn write.
// Active sessions number at most one per connected user of this
// process, so whole-file rewrites stay cheap.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	records map[string]model.SessionRecord
}

// NewFileStore opens (or creates) the store at path and loads any
// records a previous process left behind.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		records: make(map[string]model.SessionRecord),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if env.Sessions != nil {
		s.records = env.Sessions
	}
	return nil
}

// flush writes the current map durably. Caller holds the write lock.
func (s *FileStore) flush() error {
	data, err := json.Marshal(envelope{Version: envelopeVersion, Sessions: s.records})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err = f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err = f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, userID string) (model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return model.SessionRecord{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *FileStore) Put(ctx context.Context, rec model.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.records[rec.UserID]
	s.records[rec.UserID] = rec.Clone()
	if err := s.flush(); err != nil {
		// Durable write failed: roll back so memory and disk agree.
		if existed {
			s.records[rec.UserID] = prev
		} else {
			delete(s.records, rec.UserID)
		}
		return err
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.records[userID]
	if !existed {
		return nil
	}
	delete(s.records, userID)
	if err := s.flush(); err != nil {
		s.records[userID] = prev
		return err
	}
	return nil
}

func (s *FileStore) All(ctx context.Context) ([]model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SessionRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}
