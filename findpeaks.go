// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package peakbench

import (
	"gonum.org/v1/gonum/floats"
)

func init() {
	RegisterDetector("findpeaks", FindPeaks)
}

// FindPeaks is the default detector, registered under the name
// "findpeaks". For each width spanned between params.MinWidth and
// params.MaxWidth it smooths the row with a moving average of that
// width and tallies the local maxima of the smoothed signal; indices
// that are maxima at a majority of widths are reported as peaks.
func FindPeaks(row []float64, params Params) ([]int, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(row) == 0 {
		return nil, nil
	}
	widths := make([]float64, params.NumSteps)
	if params.NumSteps == 1 {
		widths[0] = params.MinWidth
	} else {
		floats.Span(widths, params.MinWidth, params.MaxWidth)
	}
	votes := make([]int, len(row))
	smoothed := make([]float64, len(row))
	for _, width := range widths {
		window := int(width)
		if window < 1 {
			window = 1
		}
		smooth(smoothed, row, window)
		for _, i := range localMaxima(smoothed) {
			votes[i]++
		}
	}
	need := (len(widths) + 1) / 2
	var peaks []int
	for i, n := range votes {
		if n >= need {
			peaks = append(peaks, i)
		}
	}
	return peaks, nil
}

// Smooth computes a centered moving average of src with the given
// window, clipped at the row's edges.
func smooth(dst, src []float64, window int) {
	half := window / 2
	for i := range src {
		lo, hi := i-half, i+half+1
		if lo < 0 {
			lo = 0
		}
		if hi > len(src) {
			hi = len(src)
		}
		dst[i] = floats.Sum(src[lo:hi]) / float64(hi-lo)
	}
}

// LocalMaxima returns the indices of the interior points of x that
// exceed their left neighbor and are at least their right neighbor,
// so that a plateau contributes its leftmost point.
func localMaxima(x []float64) []int {
	var ix []int
	for i := 1; i < len(x)-1; i++ {
		if x[i] > x[i-1] && x[i] >= x[i+1] {
			ix = append(ix, i)
		}
	}
	return ix
}
