// Package scheduler holds the on-demand feed of runnable TestContexts that
// the supervisor's run loop drains as cluster capacity frees up.
//
// Entries are kept sorted descending by expected node count so the largest,
// hardest-to-place specs get first refusal at a fresh pool of available
// nodes — scheduling a 20-node test after ninety 1-node tests have already
// claimed the pool risks starving it indefinitely. Peek/Next answer "what
// can run right now against N available nodes"; FilterUnschedulableTests
// answers "what can never run against this cluster's total capacity",
// letting the supervisor report those tests as failed up front instead of
// hanging forever waiting for room that will never exist.
package scheduler
