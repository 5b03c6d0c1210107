package cluster

import (
	"fmt"

	"github.com/confluentinc/ducktape-core/pkg/types"
)

// ErrNodeNotPresent is raised when a caller attempts to remove or free a node
// that is not present in the container/cluster it named. It is always a
// programming error and is fatal for the run.
type ErrNodeNotPresent struct {
	NodeID string
}

func (e *ErrNodeNotPresent) Error() string {
	return fmt.Sprintf("node not present: %s", e.NodeID)
}

// InsufficientResourcesError means the container being allocated from holds
// too few nodes of the requested kind, whatever their health. For
// BaseCluster.Alloc that container is the available pool, so the shortfall
// can be momentary: on this error the supervisor drops only the queued tests
// that exceed the cluster's total capacity and keeps the rest queued.
type InsufficientResourcesError struct {
	Spec    types.ClusterSpec
	Message string
}

func (e *InsufficientResourcesError) Error() string {
	return fmt.Sprintf("insufficient resources for %s: %s", e.Spec.String(), e.Message)
}

// InsufficientHealthyNodesError is the recoverable subtype: the cluster has
// enough total nodes of the requested kind, but not enough passed the health
// check during this allocation attempt. The scheduler must retain the test
// context and retry after any subsequent FINISHED.
//
// It is a distinct type from InsufficientResourcesError, not a wrapper
// around it, so an errors.As against the permanent type never matches this
// recoverable one; callers must check for *InsufficientHealthyNodesError
// first (see IsRecoverable/IsPermanent).
type InsufficientHealthyNodesError struct {
	Spec     types.ClusterSpec
	Message  string
	BadNodes []types.Node
}

func (e *InsufficientHealthyNodesError) Error() string {
	return fmt.Sprintf("insufficient healthy nodes for %s: %s (%d unhealthy)", e.Spec.String(), e.Message, len(e.BadNodes))
}

// IsRecoverable reports whether err represents a "cannot run now, retry
// later" condition as opposed to a permanent InsufficientResourcesError.
func IsRecoverable(err error) bool {
	_, ok := err.(*InsufficientHealthyNodesError)
	return ok
}

// IsPermanent reports whether err is an InsufficientResourcesError rather
// than the recoverable InsufficientHealthyNodesError.
func IsPermanent(err error) bool {
	if IsRecoverable(err) {
		return false
	}
	_, ok := err.(*InsufficientResourcesError)
	return ok
}
