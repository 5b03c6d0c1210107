/*
Package demo supplies the synthetic Loader and Cluster provider that
cmd/ducktape-core wires into a runner.Supervisor for a smoke/demo run.

spec.md deliberately scopes out the Loader (filesystem discovery, YAML suite
parsing, CLI argument parsing) and any real remote cluster provider — the
core only consumes their output: a finite sequence of fully-expanded
TestContexts, and a Cluster backed by some pool of nodes. This package is
that standing-in pair:

  - Suite returns a fixed catalog of TestContexts, expanded through pkg/mark
    so the demo exercises matrix/cluster-use-metadata/ignore/env marks the same way a
    real suite file would.
  - NewCluster builds a cluster.BaseCluster over synthetic nodes, optionally
    wrapping allocation with a DoAllocFunc that retires a node after a
    configured number of allocations to simulate spec.md §5's shrinkage
    model end to end.
  - Spawner launches worker subprocesses with os/exec, re-invoking the
    current binary's "worker" subcommand, and resolves each TestContext's
    function name to one of a small set of built-in TestCase bodies (there
    being no compiled test suite to load).
*/
package demo
