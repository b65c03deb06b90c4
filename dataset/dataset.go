// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package dataset loads and represents the two-dimensional numeric
// datasets over which peaks are detected. A dataset's rows are
// independent samples of a fixed common width; datasets are loaded
// once, held read-only, and safely shared by any number of concurrent
// readers.
package dataset

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/spaolacci/murmur3"
)

// A Dataset is a Rows x Cols matrix of samples stored row-major in a
// single contiguous buffer. The fields are exported so datasets can
// be gob-encoded when scattered to cluster workers; they must not be
// modified after the dataset is loaded.
type Dataset struct {
	Rows, Cols int
	Data       []float64
}

// New returns a zero-valued dataset with the given shape.
func New(rows, cols int) *Dataset {
	return &Dataset{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// Make builds a dataset by copying the provided rows, which must all
// share the same length. Make fails with kind errors.Invalid on
// ragged input.
func Make(rows [][]float64) (*Dataset, error) {
	if len(rows) == 0 {
		return &Dataset{}, nil
	}
	d := New(len(rows), len(rows[0]))
	for i, row := range rows {
		if len(row) != d.Cols {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("dataset: row %d has length %d, want %d", i, len(row), d.Cols))
		}
		copy(d.Row(i), row)
	}
	return d, nil
}

// NumRow returns the number of rows in the dataset.
func (d *Dataset) NumRow() int { return d.Rows }

// Width returns the common length of the dataset's rows.
func (d *Dataset) Width() int { return d.Cols }

// Row returns the ith row. The returned slice shares the dataset's
// buffer and must be treated as read-only.
func (d *Dataset) Row(i int) []float64 {
	return d.Data[i*d.Cols : (i+1)*d.Cols]
}

// Checksum computes a murmur3 hash over the dataset's shape and
// samples. It is used to verify that a dataset survived the scatter
// to cluster worker memory intact.
func (d *Dataset) Checksum() uint64 {
	h := murmur3.New64()
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(d.Rows))
	h.Write(b[:])
	binary.LittleEndian.PutUint64(b[:], uint64(d.Cols))
	h.Write(b[:])
	for _, v := range d.Data {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
		h.Write(b[:])
	}
	return h.Sum64()
}

func (d *Dataset) String() string {
	return fmt.Sprintf("dataset<%dx%d>", d.Rows, d.Cols)
}
