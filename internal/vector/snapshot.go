package vector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/hyperjump/docqa/internal/models"
)

const (
	lockTimeout   = 5 * time.Second
	lockRetryWait = 100 * time.Millisecond
)

// snapshotFile is the on-disk shape of a Corpus.
type snapshotFile struct {
	Documents []models.Document      `json:"documents"`
	Vectors   [][]float32            `json:"vectors"`
	Metadata  *models.CorpusMetadata `json:"metadata"`
}

// snapshotter reads and writes the corpus file. Writes go to a temp file that is renamed over the
// target; a sibling .lock file serialises access between processes sharing the snapshot.
type snapshotter struct {
	path string
	lock *flock.Flock
}

func newSnapshotter(path string) *snapshotter {
	return &snapshotter{path: path, lock: flock.New(path + ".lock")}
}

func (s *snapshotter) acquire(shared bool) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	deadline := time.Now().Add(lockTimeout)
	for {
		var locked bool
		var err error
		if shared {
			locked, err = s.lock.TryRLock()
		} else {
			locked, err = s.lock.TryLock()
		}
		if err != nil {
			return nil, fmt.Errorf("cannot acquire snapshot lock: %w", err)
		}
		if locked {
			return func() { _ = s.lock.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("snapshot is locked by another process (lock: %s)", s.lock.Path())
		}
		time.Sleep(lockRetryWait)
	}
}

// load returns the stored corpus, (nil, nil) when no snapshot exists, or a *PersistenceError.
func (s *snapshotter) load() (*Corpus, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	release, err := s.acquire(true)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	defer release()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	if len(snap.Documents) != len(snap.Vectors) {
		return nil, &PersistenceError{
			Op:   "load",
			Path: s.path,
			Err:  fmt.Errorf("%d documents but %d vectors", len(snap.Documents), len(snap.Vectors)),
		}
	}
	c := emptyCorpus()
	if snap.Documents != nil {
		c.Documents = snap.Documents
		c.Vectors = snap.Vectors
	}
	c.Metadata = snap.Metadata
	return c, nil
}

func (s *snapshotter) save(c *Corpus) error {
	snap := snapshotFile{Documents: c.Documents, Vectors: c.Vectors, Metadata: c.Metadata}
	if snap.Documents == nil {
		snap.Documents = []models.Document{}
	}
	if snap.Vectors == nil {
		snap.Vectors = [][]float32{}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	release, err := s.acquire(false)
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	defer release()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

func (s *snapshotter) remove() error {
	release, err := s.acquire(false)
	if err != nil {
		return &PersistenceError{Op: "delete", Path: s.path, Err: err}
	}
	defer release()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &PersistenceError{Op: "delete", Path: s.path, Err: err}
	}
	return nil
}
