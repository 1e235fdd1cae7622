// Package grad provides the gradient math used by the coordinator during
// reduction: NaN/Inf validation, L2-norm clipping, and element-wise
// accumulation into a shared buffer.
package grad

import (
	"fmt"
	"math"
)

// maxReportedIndices caps how many offending indices a validation report
// carries. Diagnostics only need a sample, not the full list.
const maxReportedIndices = 5

// ValidationReport describes the outcome of scanning a gradient buffer for
// non-finite values.
type ValidationReport struct {
	NaNCount   int
	InfCount   int
	BadIndices []int // first offenders, at most maxReportedIndices
}

// Valid reports whether the scanned buffer contained only finite values.
func (r ValidationReport) Valid() bool {
	return r.NaNCount == 0 && r.InfCount == 0
}

// BadTotal returns the total number of non-finite elements found.
func (r ValidationReport) BadTotal() int {
	return r.NaNCount + r.InfCount
}

func (r ValidationReport) String() string {
	if r.Valid() {
		return "valid"
	}
	return fmt.Sprintf("%d NaN, %d Inf (first offenders at %v)", r.NaNCount, r.InfCount, r.BadIndices)
}

// Validate scans a gradient buffer for NaN and Inf values. An invalid buffer
// must be excluded from reduction entirely; zeroing it and including it would
// silently drag the average toward zero.
func Validate(buf []float64) ValidationReport {
	var report ValidationReport

	for i, v := range buf {
		switch {
		case math.IsNaN(v):
			report.NaNCount++
		case math.IsInf(v, 0):
			report.InfCount++
		default:
			continue
		}
		if len(report.BadIndices) < maxReportedIndices {
			report.BadIndices = append(report.BadIndices, i)
		}
	}

	return report
}
