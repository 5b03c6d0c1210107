// Package mark implements the decorator-driven expansion of a seed
// TestContext into the list of concrete contexts a loader hands to the
// scheduler: Parametrize × Matrix × Defaults, minus Ignore, adjusted by Env,
// annotated by ClusterUseMetadata.
package mark

import (
	"fmt"
	"os"
	"sort"

	"github.com/confluentinc/ducktape-core/pkg/types"
)

// Apply folds a single Mark into the accumulator, dispatching on Kind. Marks
// are applied in source-file order (bottom-up: a mark annotates every test
// case physically below it), so each call receives and returns the
// in-progress accumulator for the function being expanded.
func Apply(m types.Mark, seed types.TestContext, acc []types.TestContext) ([]types.TestContext, error) {
	switch m.Kind {
	case types.MarkParametrize:
		ctx := seed
		ctx.InjectedArgs = cloneArgs(m.Args)
		return prepend(acc, ctx), nil

	case types.MarkMatrix:
		return prepend(acc, expandAxes(seed, m.Axes, nil)...), nil

	case types.MarkDefaults:
		if len(acc) == 0 {
			return prepend(acc, expandAxes(seed, m.Axes, nil)...), nil
		}
		var out []types.TestContext
		for _, ctx := range acc {
			restricted := restrictAxes(m.Axes, ctx.InjectedArgs)
			out = append(out, expandAxes(ctx, restricted, ctx.InjectedArgs)...)
		}
		return out, nil

	case types.MarkIgnore:
		if len(acc) == 0 {
			return nil, fmt.Errorf("mark: Ignore applied to an empty context list")
		}
		for i := range acc {
			if matchesArgs(m.IgnoreArgs, acc[i].InjectedArgs) {
				acc[i].Ignore = true
			}
		}
		return acc, nil

	case types.MarkEnv:
		if !envSatisfied(m.EnvVars) {
			for i := range acc {
				acc[i].Ignore = true
			}
		}
		return acc, nil

	case types.MarkClusterUseMetadata:
		for i := range acc {
			if len(acc[i].ClusterUseMetadata) == 0 {
				acc[i].ClusterUseMetadata = m.Metadata
			}
		}
		return acc, nil

	default:
		return nil, fmt.Errorf("mark: unknown kind %q", m.Kind)
	}
}

// Expand folds every mark attached to a test function over an initially
// empty (or single-seed) accumulator, then deduplicates by test_id — two
// expansions with identical identity collapse to one, first wins.
func Expand(seed types.TestContext, marks []types.Mark) ([]types.TestContext, error) {
	acc := []types.TestContext{}
	if !hasStructuralMark(marks) {
		acc = []types.TestContext{seed}
	}

	for _, m := range marks {
		var err error
		acc, err = Apply(m, seed, acc)
		if err != nil {
			return nil, err
		}
	}

	return dedupeByTestID(acc), nil
}

// ApplyOverride implements the command-line override rule: strip every
// Parametrize/Matrix/Defaults mark and re-apply a single synthetic
// Parametrize(injectedArgs), so every resulting context gets exactly those
// args regardless of what the source file originally declared.
func ApplyOverride(seed types.TestContext, marks []types.Mark, injectedArgs map[string]any) ([]types.TestContext, error) {
	filtered := make([]types.Mark, 0, len(marks))
	for _, m := range marks {
		switch m.Kind {
		case types.MarkParametrize, types.MarkMatrix, types.MarkDefaults:
			continue
		default:
			filtered = append(filtered, m)
		}
	}
	filtered = append([]types.Mark{{Kind: types.MarkParametrize, Args: injectedArgs}}, filtered...)
	return Expand(seed, filtered)
}

func hasStructuralMark(marks []types.Mark) bool {
	for _, m := range marks {
		switch m.Kind {
		case types.MarkParametrize, types.MarkMatrix, types.MarkDefaults:
			return true
		}
	}
	return false
}

func prepend(acc []types.TestContext, items ...types.TestContext) []types.TestContext {
	return append(items, acc...)
}

// expandAxes returns one context per element of the Cartesian product of
// axes, merged on top of base's existing InjectedArgs (fixed does the same,
// kept separate so Defaults can pass its pre-restricted fixed set while
// Matrix passes nil).
func expandAxes(base types.TestContext, axes map[string][]any, fixed map[string]any) []types.TestContext {
	names := make([]string, 0, len(axes))
	for name := range axes {
		names = append(names, name)
	}
	sort.Strings(names)

	var combos []map[string]any
	combos = append(combos, map[string]any{})
	for _, name := range names {
		values := axes[name]
		var next []map[string]any
		for _, combo := range combos {
			for _, v := range values {
				extended := cloneArgs(combo)
				extended[name] = v
				next = append(next, extended)
			}
		}
		combos = next
	}

	out := make([]types.TestContext, 0, len(combos))
	for _, combo := range combos {
		ctx := base
		merged := cloneArgs(fixed)
		for k, v := range combo {
			merged[k] = v
		}
		ctx.InjectedArgs = merged
		out = append(out, ctx)
	}
	return out
}

// restrictAxes drops any axis key already bound in existing, so Defaults
// never overrides an explicit Parametrize/Matrix binding.
func restrictAxes(axes map[string][]any, existing map[string]any) map[string][]any {
	restricted := make(map[string][]any, len(axes))
	for k, v := range axes {
		if _, bound := existing[k]; bound {
			continue
		}
		restricted[k] = v
	}
	return restricted
}

func matchesArgs(want, have map[string]any) bool {
	if len(want) == 0 {
		return true
	}
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func envSatisfied(required map[string]string) bool {
	for k, want := range required {
		if os.Getenv(k) != want {
			return false
		}
	}
	return true
}

func cloneArgs(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func dedupeByTestID(contexts []types.TestContext) []types.TestContext {
	seen := make(map[string]bool, len(contexts))
	out := make([]types.TestContext, 0, len(contexts))
	for _, ctx := range contexts {
		id := ctx.TestID()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, ctx)
	}
	return out
}
