package metrics

// JobDurationBuckets defines latency buckets for job processing metrics.
var JobDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// HTTPDurationBuckets defines latency buckets for upstream HTTP call metrics.
var HTTPDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
