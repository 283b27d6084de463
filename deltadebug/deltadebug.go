// Package deltadebug implements a generic ddmin-style minimizer: given a
// set of candidate "changes" and a predicate over subsets, it finds a
// subset that still satisfies the predicate and cannot be shrunk further
// by the partition/bisect strategy below.
package deltadebug

// Run finds a minimal subset of changes for which predicate returns true,
// assuming predicate is monotonic (true for a superset of any true set),
// the same assumption classic delta debugging makes. If predicate(nil) is
// already true, the empty set is returned immediately.
func Run[T comparable](changes []T, predicate func([]T) bool) []T {
	if predicate(nil) {
		return nil
	}
	return delta(changes, partition(changes), predicate)
}

// partition splits changes into two: the first ⌊n/2⌋ elements and the
// rest, in their original (insertion) order. A set of size
// 0 or 1 cannot usefully be partitioned further and is returned whole.
func partition[T comparable](changes []T) [][]T {
	n := len(changes)
	if n <= 1 {
		return [][]T{changes}
	}
	mid := n / 2
	first := append([]T(nil), changes[:mid]...)
	rest := append([]T(nil), changes[mid:]...)
	return [][]T{first, rest}
}

func delta[T comparable](changes []T, parts [][]T, predicate func([]T) bool) []T {
	if len(parts) <= 1 {
		return changes
	}

	for _, p := range parts {
		if predicate(p) {
			return delta(p, partition(p), predicate)
		}
		complement := difference(changes, p)
		if predicate(complement) {
			return delta(complement, partition(complement), predicate)
		}
	}

	finer := bisectAll(parts)
	if !finerThan(finer, parts) {
		return changes
	}
	return delta(changes, finer, predicate)
}

// bisectAll doubles partition granularity by splitting every partition
// with more than one element into two.
func bisectAll[T comparable](parts [][]T) [][]T {
	var out [][]T
	for _, p := range parts {
		out = append(out, partition(p)...)
	}
	return out
}

// finerThan reports whether b has strictly more partitions than a, the
// signal that bisecting made progress; when it stops making progress
// (every partition already down to one element) delta must stop to avoid
// looping forever.
func finerThan[T comparable](b, a [][]T) bool {
	return len(b) > len(a)
}

func difference[T comparable](all, subset []T) []T {
	exclude := make(map[T]struct{}, len(subset))
	for _, v := range subset {
		exclude[v] = struct{}{}
	}
	var out []T
	for _, v := range all {
		if _, skip := exclude[v]; !skip {
			out = append(out, v)
		}
	}
	return out
}
