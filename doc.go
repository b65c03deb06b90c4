// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package peakbench provides a benchmark harness for row-wise peak
// detection over two-dimensional scientific datasets. A dataset is an
// ordered collection of rows, each a fixed-length series of samples;
// a peak detector locates the local maxima within a single row. The
// harness applies one detector to every row of one dataset using
// three interchangeable execution strategies -- serial iteration, a
// local multi-core worker pool, and a bigmachine cluster -- and
// compares the wall-clock cost of each against the parallelism it
// achieved.
//
// Package peakbench itself defines the detector contract and a
// registry of named detectors. Detectors must be registered before
// strategies are constructed, and must be registered in the same
// order in every process so that cluster worker processes resolve
// the same detectors as the driver. Registering detectors from
// package initialization provides this by default.
//
// Subpackage dataset loads datasets from HDF5 files, subpackage exec
// implements the execution strategies, and subpackage benchmark runs
// strategies in sequence and renders the comparison.
package peakbench
