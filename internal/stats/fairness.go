// Package stats measures scheduler fairness: given a set of per-thread
// tick counts sampled over a run, it reports whether the round-robin
// policy distributed the CPU roughly evenly across equal-priority
// threads.
package stats

import "gonum.org/v1/gonum/stat"

// Sample is one thread's observed share of scheduled ticks.
type Sample struct {
	Name  string
	Ticks uint64
}

// Fairness summarizes the spread of a set of samples.
type Fairness struct {
	Mean   float64
	StdDev float64
	// CV is the coefficient of variation (StdDev/Mean); lower means more
	// even distribution. A perfectly fair round-robin schedule over
	// threads of equal quantum approaches 0 as the run lengthens.
	CV float64
}

// Measure computes Fairness over samples. It returns the zero value if
// fewer than two samples are given, since variation is undefined for a
// single thread.
func Measure(samples []Sample) Fairness {
	if len(samples) < 2 {
		return Fairness{}
	}
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = float64(s.Ticks)
	}
	mean, std := stat.MeanStdDev(values, nil)
	var cv float64
	if mean != 0 {
		cv = std / mean
	}
	return Fairness{Mean: mean, StdDev: std, CV: cv}
}
