/*
Package types defines the core data structures shared across the scheduler,
cluster, mark, worker, runner and ipc packages: NodeSpec/ClusterSpec resource
requests, the Node/Account capability handle, TestContext and its derived
identity, Mark's tagged-variant decorator shapes, Result/Results, the IPC
Event/Reply envelope, and SessionContext.

None of these types own behavior beyond small derived accessors (TestID,
String, Matches, RunTime); the packages that consume them own the algorithms.
*/
package types
