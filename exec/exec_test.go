// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/peakbench"
	"github.com/grailbio/peakbench/dataset"
)

var errSynthetic = errors.New("synthetic detector failure")

func init() {
	peakbench.RegisterDetector("test-const", func(row []float64, _ peakbench.Params) ([]int, error) {
		return []int{4}, nil
	})
	peakbench.RegisterDetector("test-argmax", func(row []float64, _ peakbench.Params) ([]int, error) {
		if len(row) == 0 {
			return nil, nil
		}
		max := 0
		for i, v := range row {
			if v > row[max] {
				max = i
			}
		}
		return []int{max}, nil
	})
	peakbench.RegisterDetector("test-none", func([]float64, peakbench.Params) ([]int, error) {
		return []int{}, nil
	})
	peakbench.RegisterDetector("test-fail", func([]float64, peakbench.Params) ([]int, error) {
		return nil, errSynthetic
	})
	peakbench.RegisterDetector("test-slow", func(row []float64, _ peakbench.Params) ([]int, error) {
		time.Sleep(5 * time.Second)
		return nil, nil
	})
}

var testParams = peakbench.Params{MinWidth: 1, MaxWidth: 4, NumSteps: 4}

// TestDataset returns a dataset whose row i has its maximum at
// index i%width, so that results betray any row misordering.
func testDataset(t *testing.T, rows, width int) *dataset.Dataset {
	t.Helper()
	d := dataset.New(rows, width)
	for i := 0; i < rows; i++ {
		d.Row(i)[i%width] = 1
	}
	return d
}

func TestSerial(t *testing.T) {
	ds := testDataset(t, 5, 8)
	results, err := Serial("test-argmax").Run(context.Background(), ds, testParams)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := results.Parallelism, 1; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	for i, peaks := range results.Peaks {
		if got, want := peaks, []int{i % 8}; !reflect.DeepEqual(got, want) {
			t.Errorf("row %d: got %v, want %v", i, got, want)
		}
	}
}

func TestSerialFailure(t *testing.T) {
	ds := testDataset(t, 1, 10)
	_, err := Serial("test-fail").Run(context.Background(), ds, testParams)
	row, ok := peakbench.DetectionRow(err)
	if !ok {
		t.Fatalf("got %v, want detection error", err)
	}
	if got, want := row, 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLocal(t *testing.T) {
	ds := testDataset(t, 64, 16)
	want, err := Serial("test-argmax").Run(context.Background(), ds, testParams)
	if err != nil {
		t.Fatal(err)
	}
	for _, procs := range []int{1, 2, 7, 64, 100} {
		results, err := Local("test-argmax", procs).Run(context.Background(), ds, testParams)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := results.Parallelism, procs; got != want {
			t.Errorf("procs %d: got %v, want %v", procs, got, want)
		}
		// Worker count must not change the results, only the parallelism.
		if !reflect.DeepEqual(results.Peaks, want.Peaks) {
			t.Errorf("procs %d: results diverge from serial", procs)
		}
	}
}

func TestLocalFailure(t *testing.T) {
	ds := testDataset(t, 1, 10)
	_, err := Local("test-fail", 4).Run(context.Background(), ds, testParams)
	row, ok := peakbench.DetectionRow(err)
	if !ok {
		t.Fatalf("got %v, want detection error", err)
	}
	if got, want := row, 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLocalBadProcs(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Local("test-const", 0)
}

func TestEmptyDataset(t *testing.T) {
	ds, err := dataset.Make(nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, strategy := range []Strategy{Serial("test-const"), Local("test-const", 3)} {
		results, err := strategy.Run(context.Background(), ds, testParams)
		if err != nil {
			t.Fatalf("%s: %v", strategy.Name(), err)
		}
		if got, want := len(results.Peaks), 0; got != want {
			t.Errorf("%s: got %v, want %v", strategy.Name(), got, want)
		}
		if results.Parallelism < 1 {
			t.Errorf("%s: parallelism %d < 1", strategy.Name(), results.Parallelism)
		}
	}
}

func TestUnknownDetector(t *testing.T) {
	ds := testDataset(t, 2, 4)
	for _, strategy := range []Strategy{Serial("test-nonesuch"), Local("test-nonesuch", 2)} {
		if _, err := strategy.Run(context.Background(), ds, testParams); err == nil {
			t.Errorf("%s: expected error", strategy.Name())
		}
	}
}

func TestStrategyAgreement(t *testing.T) {
	fz := fuzz.New().NilChance(0).NumElements(16, 64)
	const N = 10
	for i := 0; i < N; i++ {
		var rows [][]float64
		fz.Fuzz(&rows)
		width := 32
		for j := range rows {
			row := make([]float64, width)
			copy(row, rows[j])
			rows[j] = row
		}
		ds, err := dataset.Make(rows)
		if err != nil {
			t.Fatal(err)
		}
		want, err := Serial("findpeaks").Run(context.Background(), ds, testParams)
		if err != nil {
			t.Fatal(err)
		}
		got, err := Local("findpeaks", 4).Run(context.Background(), ds, testParams)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got.Peaks, want.Peaks) {
			t.Fatalf("local results diverge from serial")
		}
	}
}
