package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/osbuild/ibmetrics/pkg/dataset"
)

// DAUOverMAU computes the ratio of daily active orgs (1-day sliding window)
// over monthly active orgs (30-day sliding window) for each day the MAU
// series covers. The DAU series starts 29 days earlier than the MAU series
// and is truncated to stay aligned with the MAU window ends. A zero MAU
// value is an error, never a silent Inf or NaN.
func DAUOverMAU(ds dataset.Dataset) ([]float64, []time.Time, error) {
	dau, _, err := DistinctSliding(ds, dataset.ByOrg, 1)
	if err != nil {
		return nil, nil, err
	}
	mau, mauEnds, err := DistinctSliding(ds, dataset.ByOrg, 30)
	if err != nil {
		return nil, nil, err
	}

	dau = dau[len(dau)-len(mau):]
	ratios := make([]float64, len(mau))
	for i := range mau {
		if mau[i] == 0 {
			return nil, nil, fmt.Errorf("MAU is zero at %s, DAU/MAU undefined", mauEnds[i].Format("2006-01-02"))
		}
		ratios[i] = float64(dau[i]) / float64(mau[i])
	}
	return ratios, mauEnds, nil
}

// ExpandingMean returns the running cumulative average of the series: the
// value at index i is the mean of values[0..i]. This is an expanding mean,
// not a fixed-width moving average; see Trendline for kernel smoothing.
func ExpandingMean(values []float64) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		out[i] = sum / float64(i+1)
	}
	return out
}

// Trendline smooths the series with a normalized Gaussian kernel spanning
// the full series length. The tail is padded by repeating the last value
// for half the kernel width so the smoothed curve does not collapse toward
// zero at the end. Used for long-range trend visualization; not
// interchangeable with ExpandingMean.
func Trendline(values []float64, std float64) []float64 {
	n := len(values)
	if n == 0 {
		return nil
	}
	if std <= 0 {
		std = 7
	}
	half := n / 2

	kernel := gaussianKernel(n, std)

	padded := make([]float64, n+half)
	copy(padded, values)
	for i := n; i < n+half; i++ {
		padded[i] = values[n-1]
	}

	smoothed := convolveSame(padded, kernel)
	return smoothed[:len(smoothed)-half]
}

// gaussianKernel returns a normalized Gaussian window of m points.
func gaussianKernel(m int, std float64) []float64 {
	kernel := make([]float64, m)
	center := float64(m-1) / 2
	sum := 0.0
	for i := range kernel {
		x := (float64(i) - center) / std
		kernel[i] = math.Exp(-0.5 * x * x)
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// convolveSame computes the discrete convolution of values with kernel and
// returns the centered len(values) samples.
func convolveSame(values, kernel []float64) []float64 {
	n, m := len(values), len(kernel)
	full := make([]float64, n+m-1)
	for i, v := range values {
		for j, k := range kernel {
			full[i+j] += v * k
		}
	}
	offset := (m - 1) / 2
	return full[offset : offset+n]
}
