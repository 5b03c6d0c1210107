package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/confluentinc/ducktape-core/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketResults = []byte("results")
	bucketSession = []byte("session")

	sessionIDKey = []byte("last_session_id")
)

// resultKey returns the storage key for a result: session_id/test_id/schedule_index.
// Keying on schedule_index (not just test_id) lets deflake re-runs of the same
// context coexist in the bucket without clobbering each other.
func resultKey(sessionID, testID string, scheduleIndex int) []byte {
	return []byte(fmt.Sprintf("%s/%s/%04d", sessionID, testID, scheduleIndex))
}

// BoltStore implements Store using an embedded BoltDB file, grounded on the
// teacher's bucket-per-concern, JSON-encoded-value convention.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a BoltDB-backed store rooted at dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "ducktape-core.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketResults, bucketSession} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveResult persists a single TestResult, keyed by session/test_id/schedule_index.
// A deflake re-run gets a new schedule index, so its result is stored beside,
// not over, the earlier attempt's.
func (s *BoltStore) SaveResult(result *types.Result) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketResults)
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result %s: %w", result.TestID, err)
		}
		return b.Put(resultKey(result.SessionID, result.TestID, result.ScheduleIndex), data)
	})
}

// ListResults returns every result recorded for a session, in storage key
// order (session_id/test_id/schedule_index — stable but not run order; callers
// needing arrival order should use the in-memory types.Results accumulator).
func (s *BoltStore) ListResults(sessionID string) ([]*types.Result, error) {
	prefix := []byte(sessionID + "/")
	var results []*types.Result

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketResults)
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var r types.Result
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal result %s: %w", k, err)
			}
			results = append(results, &r)
		}
		return nil
	})
	return results, err
}

// LastSessionID returns the most recently generated session id, or "" if none
// has been generated yet.
func (s *BoltStore) LastSessionID() (string, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		data := b.Get(sessionIDKey)
		if data != nil {
			id = string(data)
		}
		return nil
	})
	return id, err
}

// SaveSessionID persists the most recently generated session id.
func (s *BoltStore) SaveSessionID(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		return b.Put(sessionIDKey, []byte(id))
	})
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}
