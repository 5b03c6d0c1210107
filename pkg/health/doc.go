/*
Package health implements the health-check strategies used to back a cluster
node's availability predicate.

spec.md models a Node's health as an opaque `available()` predicate on its
account object, present for remote providers and absent (always healthy) for
purely local nodes. This package supplies three concrete, swappable
implementations of that predicate plus a small hysteresis tracker so a
flapping probe doesn't toggle a node's health on every single check.

# Checker Interface

	type Checker interface {
		Check(ctx context.Context) Result
		Type() CheckType
	}

HTTPChecker, TCPChecker, and ExecChecker each implement it. A cluster
provider wires one of these into a Node's Account.Available() so that
NodeContainer.RemoveSpec (pkg/cluster) can set aside unhealthy nodes during
allocation without knowing which check type backs any given node.

# Hysteresis

Status tracks consecutive failures/successes and only flips Healthy after
Retries consecutive failures, preventing a single transient probe failure
from retiring a node mid-allocation:

	status := health.NewStatus()
	cfg := health.DefaultConfig()
	result := checker.Check(ctx)
	status.Update(result, cfg)
	if !status.Healthy {
		// node becomes a retirement candidate
	}

# See Also

  - pkg/cluster - consumes Checker results via Account.Available()
  - pkg/demo - wires a TCPChecker or HTTPChecker, plus the Status hysteresis
    tracker, into the synthetic provider's per-node Account.Probe
*/
package health
