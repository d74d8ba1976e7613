package util

import (
	"math"
	"sync"
)

// ----------------------------------------------------------------------------
// Distribution Statistics
// ----------------------------------------------------------------------------

type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
}

// NewStats computes the standard deviation, minimum, maximum and mean
// from an array of float64 values.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	min := values[0]
	max := values[0]

	var sum float64
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	return Stats{
		StdDeviation: math.Sqrt(variance),
		Min:          min,
		Max:          max,
		Mean:         mean,
	}
}

// ----------------------------------------------------------------------------
// Size Histogram
// ----------------------------------------------------------------------------

// numBuckets covers sizes from 1 byte to ~1 GB with exponential bucketing
const numBuckets = 31

// SizeHistogram tracks the distribution of entry sizes with exponential
// buckets. It lets an engine report size estimates without a full scan.
//
// Thread-safety: all methods are safe for concurrent use.
type SizeHistogram struct {
	mu      sync.Mutex
	buckets [numBuckets]uint64
	count   uint64
	total   uint64
}

// NewSizeHistogram creates an empty size histogram
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{}
}

// bucketOf maps a size in bytes to its exponential bucket index
func bucketOf(size int) int {
	if size <= 0 {
		return 0
	}
	b := math.Ilogb(float64(size)) + 1
	if b >= numBuckets {
		return numBuckets - 1
	}
	return b
}

// AddSample records one entry size in bytes
func (h *SizeHistogram) AddSample(size int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buckets[bucketOf(size)]++
	h.count++
	h.total += uint64(size)
}

// AverageSize returns the mean sampled size in bytes
func (h *SizeHistogram) AverageSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return 0
	}
	return int(h.total / h.count)
}

// MedianEstimate returns an estimate of the median sampled size in bytes.
// The estimate is the geometric center of the bucket containing the median
// sample, so it is accurate to within a factor of sqrt(2).
func (h *SizeHistogram) MedianEstimate() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return 0
	}

	half := h.count / 2
	var seen uint64
	for b, n := range h.buckets {
		seen += n
		if seen > half {
			if b == 0 {
				return 0
			}
			// geometric center of [2^(b-1), 2^b)
			return int(math.Exp2(float64(b-1)) * math.Sqrt2)
		}
	}
	return 0
}

// Samples returns the number of recorded samples
func (h *SizeHistogram) Samples() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int(h.count)
}
