// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Peakbench loads a two-dimensional dataset from an HDF5 file and
// runs a peak detector over every row using three execution
// strategies in turn -- serial, local multi-core, and a bigmachine
// cluster -- then renders a comparison of wall-clock cost against
// parallelism.
//
//	peakbench -dataset data.h5 -hpath x -out bench
//
// Dataset locators may also be s3:// or http(s):// URLs; remote
// objects are downloaded to a local cache file before reading.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/bigmachine"
	"github.com/grailbio/peakbench"
	"github.com/grailbio/peakbench/benchmark"
	"github.com/grailbio/peakbench/dataset"
	"github.com/grailbio/peakbench/exec"
)

func init() {
	file.RegisterImplementation("s3", s3file.NewImplementation(
		s3file.NewDefaultProvider(session.Options{})))
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `usage: peakbench -dataset locator [flags]

Peakbench benchmarks three ways of finding peaks in the rows of a
two-dimensional dataset: serial iteration, a local multi-core worker
pool, and a bigmachine cluster. Each strategy runs once over the same
dataset; the comparison of wall-clock time against parallelism is
printed and rendered as a scatter plot.
`)
		flag.PrintDefaults()
		os.Exit(2)
	}
	var (
		locator  = flag.String("dataset", "", "dataset locator: a local path, s3:// URL, or http(s):// URL")
		hpath    = flag.String("hpath", "x", "path of the dataset within the HDF5 file")
		detector = flag.String("detector", "findpeaks", "name of the registered peak detector")
		minWidth = flag.Float64("minwidth", 1, "minimum peak width, in samples")
		maxWidth = flag.Float64("maxwidth", 10, "maximum peak width, in samples")
		numSteps = flag.Int("steps", 10, "number of widths scanned between minwidth and maxwidth")
		procs    = flag.Int("procs", runtime.GOMAXPROCS(0), "worker pool size for the local strategy")
		machines = flag.Int("machines", 2, "number of cluster machines")
		out      = flag.String("out", "peakbench", "base name of the rendered comparison plot")
	)
	log.AddFlags()
	flag.Parse()

	// The cluster strategy is constructed before any other work: when
	// this process is launched as a cluster worker, Cluster serves
	// detection tasks and does not return.
	cluster, shutdown := exec.Cluster(*detector, bigmachine.Local, exec.Machines(*machines))
	defer shutdown()

	must.True(*locator != "", "no dataset specified")

	ctx := context.Background()
	ds, err := dataset.Load(ctx, *locator, dataset.Path(*hpath))
	must.Nil(err, "loading dataset")
	log.Printf("loaded %v from %s", ds, *locator)

	params := peakbench.Params{MinWidth: *minWidth, MaxWidth: *maxWidth, NumSteps: *numSteps}
	must.Nil(params.Validate())

	strategies := []exec.Strategy{
		exec.Serial(*detector),
		exec.Local(*detector, *procs),
		cluster,
	}
	report := benchmark.Run(ctx, ds, strategies, params)
	fmt.Print(report)
	must.Nil(report.Plot(*out), "rendering plot")
}
