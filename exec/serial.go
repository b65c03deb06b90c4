// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"

	"github.com/grailbio/peakbench"
	"github.com/grailbio/peakbench/dataset"
)

type serial struct {
	detector string
}

// Serial returns a strategy that detects peaks one row at a time, in
// row order, on the calling goroutine. Its parallelism is always 1.
func Serial(detector string) Strategy {
	return serial{detector}
}

func (s serial) Name() string { return "serial" }

func (s serial) Run(ctx context.Context, ds *dataset.Dataset, params peakbench.Params) (Results, error) {
	detect, err := peakbench.Lookup(s.detector)
	if err != nil {
		return Results{}, err
	}
	if err := params.Validate(); err != nil {
		return Results{}, err
	}
	results := Results{Peaks: make([][]int, ds.NumRow()), Parallelism: 1}
	for i := 0; i < ds.NumRow(); i++ {
		if err := ctx.Err(); err != nil {
			return Results{}, err
		}
		peaks, err := detect(ds.Row(i), params)
		if err != nil {
			return Results{}, peakbench.Detection(i, err)
		}
		results.Peaks[i] = normPeaks(peaks)
	}
	return results, nil
}
