package metrics

import "errors"

var (
	// ErrEmptyDataset is returned when an aggregation is asked to operate
	// on a dataset with no timestamped records.
	ErrEmptyDataset = errors.New("metrics: empty dataset")

	// ErrInvalidWindow is returned for window specifications that cannot
	// produce a meaningful result: non-positive periods or widths,
	// minBuilds < 2, minDays < 1.
	ErrInvalidWindow = errors.New("metrics: invalid window specification")
)
