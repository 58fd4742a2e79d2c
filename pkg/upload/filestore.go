package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ecochain/platform/pkg/common/logger"
	"github.com/ecochain/platform/pkg/observability/metrics"
)

const (
	sessionsFile  = "sessions.json"
	backupPrefix  = "sessions_backup_"
	backupTimeFmt = "20060102_150405"
)

// FileStore keeps the full session map in memory and mirrors every mutation
// to a single JSON document. Writes go through a temp-file-then-rename
// sequence, so a crash mid-write leaves the previous document intact.
//
// The mutex guards the map and serializes disk writes. It does not close the
// read-modify-write window at the service layer: two pipelines updating the
// same session concurrently can still lose one update (last full write wins).
type FileStore struct {
	dir  string
	path string

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session data dir: %w", err)
	}

	s := &FileStore{
		dir:      dir,
		path:     filepath.Join(dir, sessionsFile),
		sessions: make(map[string]*Session),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading session document: %w", err)
	}

	var sessions map[string]*Session
	if err := json.Unmarshal(payload, &sessions); err != nil {
		logger.Log.WithError(err).Error("session document corrupt, recovering from latest backup")
		return s.recoverFromBackup()
	}
	if sessions == nil {
		sessions = make(map[string]*Session)
	}
	s.sessions = sessions
	return nil
}

// recoverFromBackup restores the lexicographically-latest backup as the new
// main document. Backup names embed a UTC timestamp, so lexicographic order
// is chronological order.
func (s *FileStore) recoverFromBackup() error {
	matches, err := filepath.Glob(filepath.Join(s.dir, backupPrefix+"*.json"))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("session document corrupt and no backups available in %s", s.dir)
	}
	sort.Strings(matches)
	latest := matches[len(matches)-1]

	payload, err := os.ReadFile(latest)
	if err != nil {
		return fmt.Errorf("reading backup %s: %w", latest, err)
	}
	var sessions map[string]*Session
	if err := json.Unmarshal(payload, &sessions); err != nil {
		return fmt.Errorf("backup %s corrupt: %w", latest, err)
	}
	if sessions == nil {
		sessions = make(map[string]*Session)
	}

	s.sessions = sessions
	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("restoring session document from %s: %w", latest, err)
	}

	metrics.IncSessionRecovery()
	logger.Log.WithFields(map[string]interface{}{
		"backup":   filepath.Base(latest),
		"sessions": len(sessions),
	}).Warn("session document restored from backup")
	return nil
}

func (s *FileStore) Put(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The in-memory map keeps the update even when the disk write fails;
	// durability is lost until the next successful persist.
	s.sessions[sess.ID] = cloneSession(sess)
	return s.persistLocked()
}

func (s *FileStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(sess), nil
}

func (s *FileStore) ListByWallet(ctx context.Context, wallet string) ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Session
	for _, sess := range s.sessions {
		if sess.UserWallet == wallet {
			out = append(out, cloneSession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return s.persistLocked()
}

// Backup snapshots the current map to a timestamp-suffixed file next to the
// main document. Backups accumulate; pruning is an operator concern.
func (s *FileStore) Backup() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding session backup: %w", err)
	}

	name := backupPrefix + time.Now().UTC().Format(backupTimeFmt) + ".json"
	path := filepath.Join(s.dir, name)
	if err := s.writeFileAtomic(path, payload); err != nil {
		return "", fmt.Errorf("writing session backup: %w", err)
	}

	metrics.IncSessionBackup()
	logger.Log.WithFields(map[string]interface{}{
		"backup":   name,
		"sessions": len(s.sessions),
	}).Info("session backup written")
	return path, nil
}

func (s *FileStore) persistLocked() error {
	payload, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session document: %w", err)
	}
	if err := s.writeFileAtomic(s.path, payload); err != nil {
		return fmt.Errorf("writing session document: %w", err)
	}
	return nil
}

func (s *FileStore) writeFileAtomic(path string, payload []byte) error {
	tmp, err := os.CreateTemp(s.dir, "sessions-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// cloneSession is a shallow copy. Nested results are replaced wholesale by
// the pipeline rather than mutated in place, so sharing their pointers across
// copies is safe.
func cloneSession(sess *Session) *Session {
	if sess == nil {
		return nil
	}
	clone := *sess
	return &clone
}
