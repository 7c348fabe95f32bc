package optimistic

// Clamp floors a counter at zero.
func Clamp(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

// AddDelta applies delta to n without going below zero.
func AddDelta(n, delta int64) int64 {
	return Clamp(n + delta)
}

// ToggleDelta is the counter change that goes with flipping a flag from
// current: +1 when it becomes set, -1 when it is cleared.
func ToggleDelta(current bool) int64 {
	if current {
		return -1
	}
	return 1
}
