package track

// Track is the ordered path a satellite has traveled while a view observed it.
type Track []GeoPosition

// Append returns a new track holding t followed by p. t itself is never
// modified, so snapshots handed to readers stay stable. There is no
// deduplication and no length cap; see Tail for bounding what is kept.
func Append(t Track, p GeoPosition) Track {
	out := make(Track, len(t), len(t)+1)
	copy(out, t)
	return append(out, p)
}

// Tail returns the last n points of t, or t unchanged when n <= 0 or the
// track is already short enough.
func Tail(t Track, n int) Track {
	if n <= 0 || len(t) <= n {
		return t
	}
	out := make(Track, n)
	copy(out, t[len(t)-n:])
	return out
}
