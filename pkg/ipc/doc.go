// Package ipc implements the request/reply transport between the
// supervisor and each worker subprocess: a Receiver bound to a random port
// in a configured range on the supervisor side, and a Sender with
// retry-on-timeout semantics on the worker side. The wire format is
// length-prefixed JSON over a plain TCP socket — there is no generated
// wire-format tooling anywhere in this codebase's lineage to ground a
// heavier transport on, so framing is hand-rolled the way a small internal
// tool would do it rather than via a code-generated protocol.
package ipc
