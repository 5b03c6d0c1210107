package storage

import (
	"github.com/confluentinc/ducktape-core/pkg/types"
)

// Store defines the interface for result and session-state persistence.
// Implemented by the BoltDB-backed store in boltdb.go.
type Store interface {
	// Results
	SaveResult(result *types.Result) error
	ListResults(sessionID string) ([]*types.Result, error)

	// Session bookkeeping (last session id)
	LastSessionID() (string, error)
	SaveSessionID(id string) error

	// Utility
	Close() error
}
