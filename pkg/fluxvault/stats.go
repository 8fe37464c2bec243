package fluxvault

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrorStats summarizes the sent-minus-received error of one tag.
type ErrorStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	RMS    float64 `json:"rms"`
	MaxAbs float64 `json:"max_abs"`
}

func ComputeErrorStats(deltas []float32) ErrorStats {
	if len(deltas) == 0 {
		return ErrorStats{}
	}
	x := make([]float64, len(deltas))
	abs := make([]float64, len(deltas))
	for i, d := range deltas {
		x[i] = float64(d)
		abs[i] = math.Abs(x[i])
	}

	st := ErrorStats{Count: len(x)}
	if len(x) == 1 {
		st.Mean = x[0]
	} else {
		st.Mean, st.StdDev = stat.MeanStdDev(x, nil)
	}
	st.RMS = math.Sqrt(floats.Dot(x, x) / float64(len(x)))
	st.MaxAbs = floats.Max(abs)
	return st
}
