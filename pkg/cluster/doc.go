/*
Package cluster implements the node pool bookkeeping layer: NodeContainer's
atomic spec-based allocation with health-check rollback, BaseCluster's
available/in_use/max_used tracking, and FiniteSubcluster, the disjoint node
slice handed to a single test for its duration.

Failure is communicated through two distinct error types rather than string
matching: InsufficientResourcesError (too few matching nodes in the pool
allocated from — the supervisor then drops the queued tests that exceed total
capacity) and InsufficientHealthyNodesError (recoverable — the scheduler
retries after the next FINISHED). See errors.go.
*/
package cluster
