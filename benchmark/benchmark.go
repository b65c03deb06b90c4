// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package benchmark runs a set of execution strategies over one
// dataset, one strictly after another, and records the wall-clock
// cost and parallelism of each so that the strategies can be
// compared. A failing strategy is recorded as a failed sample and
// does not prevent the remaining strategies from running.
package benchmark

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/peakbench"
	"github.com/grailbio/peakbench/dataset"
	"github.com/grailbio/peakbench/exec"
)

// A Sample records the outcome of one strategy's run. Samples are
// immutable once recorded.
type Sample struct {
	// Strategy is the name of the strategy that produced the sample.
	Strategy string
	// Elapsed is the strategy's wall-clock duration.
	Elapsed time.Duration
	// Parallelism is the number of execution slots the strategy used.
	// It is zero when the strategy failed before its parallelism was
	// established.
	Parallelism int
	// Err is the strategy's error, if any.
	Err error
}

// Failed reports whether the strategy failed.
func (s Sample) Failed() bool { return s.Err != nil }

// Seconds returns the sample's elapsed wall-clock seconds, or NaN for
// a failed sample.
func (s Sample) Seconds() float64 {
	if s.Failed() {
		return math.NaN()
	}
	return s.Elapsed.Seconds()
}

// A Report is an ordered collection of samples, one per strategy run.
type Report struct {
	Samples []Sample
}

func (r Report) String() string {
	var b strings.Builder
	for _, s := range r.Samples {
		if s.Failed() {
			fmt.Fprintf(&b, "%s:\tfailed: %v\n", s.Strategy, s.Err)
			continue
		}
		fmt.Fprintf(&b, "%s:\tp=%d\t%s\n", s.Strategy, s.Parallelism, s.Elapsed)
	}
	return b.String()
}

// Run benchmarks each strategy in turn over ds, returning one sample
// per strategy in the order given. Strategies run strictly one after
// another, so no strategy's sample is affected by another's resource
// use. Because detectors are deterministic, all successful strategies
// must produce identical peaks; Run cross-checks them against the
// first successful strategy and logs any divergence.
func Run(ctx context.Context, ds *dataset.Dataset, strategies []exec.Strategy, params peakbench.Params) Report {
	report := Report{Samples: make([]Sample, 0, len(strategies))}
	var (
		baseline     [][]int
		baselineName string
	)
	for _, strategy := range strategies {
		start := time.Now()
		results, err := strategy.Run(ctx, ds, params)
		sample := Sample{
			Strategy:    strategy.Name(),
			Elapsed:     time.Since(start),
			Parallelism: results.Parallelism,
			Err:         err,
		}
		report.Samples = append(report.Samples, sample)
		if err != nil {
			log.Error.Printf("benchmark: strategy %s failed after %s: %v", sample.Strategy, sample.Elapsed, err)
			continue
		}
		log.Printf("benchmark: strategy %s: p=%d elapsed %s", sample.Strategy, sample.Parallelism, sample.Elapsed)
		if baseline == nil {
			baseline, baselineName = results.Peaks, sample.Strategy
		} else if !reflect.DeepEqual(baseline, results.Peaks) {
			log.Error.Printf("benchmark: results diverge between %s and %s", baselineName, sample.Strategy)
		}
	}
	return report
}
