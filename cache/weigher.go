package cache

// UnitWeigher weighs every entry at 1, which turns MaxWeight into a plain
// entry-count limit. It is the default when Options.Weigher is nil.
func UnitWeigher[K comparable, V any](K, V) uint64 { return 1 }

// BytesWeigher weighs byte-slice values by their length, so MaxWeight
// approximates resident payload bytes. Empty values still weigh 1 to keep
// them subject to eviction.
func BytesWeigher[K comparable](_ K, v []byte) uint64 {
	if len(v) == 0 {
		return 1
	}
	return uint64(len(v))
}

// StringWeigher is BytesWeigher for string values.
func StringWeigher[K comparable](_ K, v string) uint64 {
	if len(v) == 0 {
		return 1
	}
	return uint64(len(v))
}
