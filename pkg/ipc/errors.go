package ipc

import "errors"

// ErrTimeout is raised by Receiver.Recv when no event arrives within the
// requested deadline. It is fatal for the run: the supervisor has no way to
// distinguish a hung worker from a dead one and must terminate everything.
var ErrTimeout = errors.New("ipc: recv timed out")

// ErrRetriesExhausted is raised by Sender.Send when every attempt failed
// (no reply before the deadline, or the connection could not be reopened);
// it wraps the last attempt's error. The worker that sees this must exit non-zero; the supervisor
// reaps it via the normal join-timeout path.
var ErrRetriesExhausted = errors.New("ipc: all retries exhausted")
