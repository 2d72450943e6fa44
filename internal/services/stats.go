package services

import (
	"math"
	"sort"
)

// summaryStats holds a full recompute over a retained observation window
type summaryStats struct {
	Mean   float64
	StdDev float64
	Median float64
	Min    float64
	Max    float64
	P95    float64
	P99    float64
}

// computeSummary derives all baseline statistics from raw observations.
// Standard deviation uses sample variance (n-1).
func computeSummary(values []float64) summaryStats {
	n := len(values)
	if n == 0 {
		return summaryStats{}
	}

	sum := 0.0
	min, max := values[0], values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	if n > 1 {
		variance /= float64(n - 1)
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	return summaryStats{
		Mean:   mean,
		StdDev: math.Sqrt(variance),
		Median: percentile(sorted, 50),
		Min:    min,
		Max:    max,
		P95:    percentile(sorted, 95),
		P99:    percentile(sorted, 99),
	}
}

// percentile returns the q-th percentile of an ascending-sorted slice using
// the nearest-rank method
func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := int(math.Ceil(q / 100 * float64(n)))
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return sorted[rank-1]
}
