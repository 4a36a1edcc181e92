package utils

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the mean of a slice of float64 values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Variance calculates the unbiased sample variance of values
func Variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.Variance(values, nil)
}

// StdDev calculates the sample standard deviation of values
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// StdErr calculates the standard error of the mean of values
func StdErr(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdErr(StdDev(values), float64(len(values)))
}

// RMSE calculates the root mean squared error of values against target
func RMSE(values []float64, target float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - target
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// Percentile calculates the percentile of a slice of float64 values
// percentile should be between 0 and 100
func Percentile(values []float64, percentile float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return stat.Quantile(percentile/100.0, stat.LinInterp, sorted, nil)
}
