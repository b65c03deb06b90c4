// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package exec implements the execution strategies that apply a peak
// detector to every row of a dataset: serial iteration on the calling
// goroutine, a bounded local worker pool, and a bigmachine cluster.
// All strategies implement the same contract so they can be
// benchmarked and tested uniformly.
package exec

import (
	"context"

	"github.com/grailbio/peakbench"
	"github.com/grailbio/peakbench/dataset"
)

// Results holds the outcome of applying a detector to every row of a
// dataset. Peaks[i] holds the peak indices for row i, or nil when no
// peaks were found in that row; strategies reassemble results in row
// index order even when the underlying execution completes rows out
// of order. Parallelism is the number of execution slots the strategy
// used.
type Results struct {
	Peaks       [][]int
	Parallelism int
}

// normPeaks maps an empty detection to nil. Gob, which carries
// cluster replies, decodes an empty slice as nil; normalizing at
// every strategy keeps results comparable across transports.
func normPeaks(peaks []int) []int {
	if len(peaks) == 0 {
		return nil
	}
	return peaks
}

// A Strategy applies a peak detector to every row of a dataset.
// Strategies are fail-fast: a detector error on any row aborts the
// whole run with a *peakbench.DetectionError attributing the failing
// row. The dataset is never mutated, so one dataset may be run
// through any number of strategies.
type Strategy interface {
	// Name returns a short name identifying the strategy in reports.
	Name() string

	// Run applies the strategy's detector to every row of ds. An
	// empty dataset yields empty results and no error, with
	// Parallelism still reporting the configured slot count.
	Run(ctx context.Context, ds *dataset.Dataset, params peakbench.Params) (Results, error)
}
