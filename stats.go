package rasterview

import "math"

// Statistics holds band statistics with no-data and NaN samples excluded.
type Statistics struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// sanitizeStats replaces non finite statistics with made up but usable
// numbers. Inf and NaN in any of the fields would poison the LUT scaling.
func sanitizeStats(s Statistics) Statistics {
	if !isFinite(s.Min) {
		s.Min = 0.0
	}
	if !isFinite(s.Max) {
		s.Max = 10.0
	}
	if !isFinite(s.Mean) {
		s.Mean = 5.0
	}
	if !isFinite(s.StdDev) {
		s.StdDev = 1.0
	}
	return s
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// computeLocalStats calculates statistics over the given samples, skipping
// NaN. An empty or all NaN input gives non finite results which callers are
// expected to run through sanitizeStats.
func computeLocalStats(data []float64) Statistics {
	minVal := math.Inf(1)
	maxVal := math.Inf(-1)
	var sum float64
	var n int
	for _, v := range data {
		if math.IsNaN(v) {
			continue
		}
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
		sum += v
		n++
	}
	if n == 0 {
		nan := math.NaN()
		return Statistics{Min: nan, Max: nan, Mean: nan, StdDev: nan}
	}
	mean := sum / float64(n)
	var sqsum float64
	for _, v := range data {
		if math.IsNaN(v) {
			continue
		}
		d := v - mean
		sqsum += d * d
	}
	return Statistics{
		Min:    minVal,
		Max:    maxVal,
		Mean:   mean,
		StdDev: math.Sqrt(sqsum / float64(n)),
	}
}

// computeLocalHistogram counts samples into nBins equal width bins spanning
// [min, max]. The top edge of the last bin is inclusive. NaN and out of
// range samples are skipped.
func computeLocalHistogram(data []float64, min, max float64, nBins int) []int {
	histo := make([]int, nBins)
	width := (max - min) / float64(nBins)
	if width <= 0 {
		return histo
	}
	for _, v := range data {
		if math.IsNaN(v) || v < min || v > max {
			continue
		}
		bin := int((v - min) / width)
		if bin >= nBins {
			bin = nBins - 1
		}
		histo[bin]++
	}
	return histo
}
