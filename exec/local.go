// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"

	"github.com/grailbio/base/traverse"
	"github.com/grailbio/peakbench"
	"github.com/grailbio/peakbench/dataset"
)

type local struct {
	detector string
	procs    int
}

// Local returns a strategy that partitions rows across a bounded pool
// of procs workers. Completion order is irrelevant: results are
// indexed by row, so final ordering is that of the dataset. A single
// row failure fails the whole batch. Local panics if procs < 1.
func Local(detector string, procs int) Strategy {
	if procs < 1 {
		panic("exec.Local: procs < 1")
	}
	return local{detector, procs}
}

func (l local) Name() string { return "local" }

func (l local) Run(ctx context.Context, ds *dataset.Dataset, params peakbench.Params) (Results, error) {
	detect, err := peakbench.Lookup(l.detector)
	if err != nil {
		return Results{}, err
	}
	if err := params.Validate(); err != nil {
		return Results{}, err
	}
	peaks := make([][]int, ds.NumRow())
	err = traverse.Limit(l.procs).Each(ds.NumRow(), func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := detect(ds.Row(i), params)
		if err != nil {
			return peakbench.Detection(i, err)
		}
		peaks[i] = normPeaks(row)
		return nil
	})
	if err != nil {
		return Results{}, err
	}
	return Results{Peaks: peaks, Parallelism: l.procs}, nil
}
