// Package runner implements the supervisor side of ducktape-core: the run
// loop, deflake retry policy, signal handling, and worker join/kill
// escalation described by the Supervisor module. Workers are opaque
// Process/Spawner values so this package never depends on how a given
// deployment actually launches a worker subprocess.
package runner
