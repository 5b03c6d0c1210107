// Package mark models each test function's decorators as a vector of
// tagged Mark values and expands them into concrete TestContexts through a
// fold, the same shape as the original Python ducktape's mark expansion:
// Apply(mark, seed, acc) -> acc, threaded across marks in
// source order.
package mark
