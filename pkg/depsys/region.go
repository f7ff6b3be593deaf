package depsys

// Region is a byte range declared by an access (§3: "region: (start, length)").
type Region struct {
	Start  uintptr
	Length uintptr
}

// End returns the exclusive end of the region.
func (r Region) End() uintptr { return r.Start + r.Length }

// Overlaps reports whether two regions share at least one byte. Per §8
// boundary behavior, a zero-length region overlaps nothing.
func (r Region) Overlaps(o Region) bool {
	if r.Length == 0 || o.Length == 0 {
		return false
	}
	return r.Start < o.End() && o.Start < r.End()
}

// Empty reports whether the region is the silently-ignored null access
// (§8: "Empty length or null address accesses are silently ignored").
func (r Region) Empty() bool {
	return r.Length == 0 || r.Start == 0
}
