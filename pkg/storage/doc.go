/*
Package storage provides BoltDB-backed persistence for test results and the
most recent session id.

It is the supervisor's only on-disk artifact within the core's scope: every
FINISHED event's result is written here so a partial-report snapshot survives
a crash, and the run command records each run's session id here as the last
session id. No session id is derived from the stored one.

	┌──────────────── BOLTDB STORAGE ────────────────┐
	│  File: <resultsDir>/ducktape-core.db           │
	│  buckets:                                      │
	│    results  (session_id/test_id/schedule_index)│
	│    session  (last_session_id)                  │
	└─────────────────────────────────────────────────┘
*/
package storage
