package loadtest

import (
	"math"
	"sort"
	"time"
)

// LatencyStats summarises a latency distribution.
type LatencyStats struct {
	Min  time.Duration `json:"min_ns"`
	Mean time.Duration `json:"mean_ns"`
	Max  time.Duration `json:"max_ns"`
	P50  time.Duration `json:"p50_ns"`
	P90  time.Duration `json:"p90_ns"`
	P95  time.Duration `json:"p95_ns"`
	P99  time.Duration `json:"p99_ns"`
}

// computeStats summarises the given latencies. The slice is sorted in
// place.
func computeStats(latencies []time.Duration) LatencyStats {
	if len(latencies) == 0 {
		return LatencyStats{}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var total time.Duration
	for _, l := range latencies {
		total += l
	}

	return LatencyStats{
		Min:  latencies[0],
		Mean: total / time.Duration(len(latencies)),
		Max:  latencies[len(latencies)-1],
		P50:  percentile(latencies, 50),
		P90:  percentile(latencies, 90),
		P95:  percentile(latencies, 95),
		P99:  percentile(latencies, 99),
	}
}

// percentile uses the nearest-rank method on a sorted slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100.0 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
