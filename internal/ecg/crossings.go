// Package ecg holds the signal statistics computed over uploaded ECG leads.
package ecg

// Sample is any numeric type a lead can carry.
type Sample interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// CountZeroCrossings returns the number of sign changes between consecutive samples.
//
// A crossing between samples[i-1] and samples[i] is counted only when one of them
// is strictly positive and the other strictly negative, so a sample equal to zero
// never produces a crossing on either side: [1, 0, -1] yields 0.
func CountZeroCrossings[S Sample](samples []S) int {
	count := 0
	for i := 1; i < len(samples); i++ {
		// sign test instead of the product to stay clear of integer overflow
		prev, cur := samples[i-1], samples[i]
		if (prev > 0 && cur < 0) || (prev < 0 && cur > 0) {
			count++
		}
	}

	return count
}
