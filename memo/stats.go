package memo

// Stats is a point-in-time snapshot of aggregate cache counters.
// Counters are summed across shards without stopping the world, so a
// snapshot taken under concurrent traffic is approximate.
type Stats struct {
	Hits      int64  // Fetch/Get served from a filled entry
	Misses    int64  // Fetch/Get that found no usable entry
	Produces  int64  // producer invocations (both modes)
	Evictions uint64 // entries removed by policy or limits
	Entries   int    // resident entries, including placeholders
	Cost      int64  // total resident cost
}

// HitRate returns Hits/(Hits+Misses), or 0 when there was no traffic.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
