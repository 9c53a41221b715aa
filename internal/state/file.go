package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/terrane-io/terrane/internal/ir"
)

// FileStore keeps state as a JSON document on local disk. Writes go
// through a temp file plus rename so a crash never leaves a truncated
// state file, and a single mutex serializes the read-modify-write of
// each upsert.
type FileStore struct {
	path string

	mu    sync.Mutex
	cache map[string]*ir.StateRecord
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) (map[string]*ir.StateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}

	out := make(map[string]*ir.StateRecord, len(s.cache))
	for id, rec := range s.cache {
		copied := *rec
		out[id] = &copied
	}
	return out, nil
}

func (s *FileStore) Save(ctx context.Context, id string, rec *ir.StateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	copied := *rec
	s.cache[id] = &copied
	return s.writeLocked()
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	if _, ok := s.cache[id]; !ok {
		return nil
	}
	delete(s.cache, id)
	return s.writeLocked()
}

func (s *FileStore) loadLocked() error {
	if s.cache != nil {
		return nil
	}

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.cache = make(map[string]*ir.StateRecord)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state file %s: %w", s.path, err)
	}

	raw, err = DecryptState(raw)
	if err != nil {
		return fmt.Errorf("failed to decrypt state: %w", err)
	}

	var records map[string]*ir.StateRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("failed to parse state file %s: %w", s.path, err)
	}
	s.cache = records
	return nil
}

func (s *FileStore) writeLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	raw, err := json.MarshalIndent(s.cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	encrypted, err := EncryptState(raw)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}

	tmp := fmt.Sprintf("%s.tmp.%d", s.path, os.Getpid())
	if err := os.WriteFile(tmp, encrypted, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Lock acquires a file lock next to the state file to prevent
// concurrent runs. Locks older than ten minutes are treated as stale.
func (s *FileStore) Lock() error {
	lockPath := s.lockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	if info, err := os.Stat(lockPath); err == nil {
		if time.Since(info.ModTime()) > 10*time.Minute {
			os.Remove(lockPath)
		} else {
			return fmt.Errorf("state is locked by another process (lock file: %s). "+
				"If this is an error, remove the lock file manually", lockPath)
		}
	}

	content := fmt.Sprintf("pid=%d\ntime=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(lockPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	return nil
}

// Unlock releases the state lock.
func (s *FileStore) Unlock() error {
	if err := os.Remove(s.lockPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (s *FileStore) lockPath() string {
	return s.path + ".lock"
}
