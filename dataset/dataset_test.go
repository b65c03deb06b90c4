// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dataset

import (
	"reflect"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/base/errors"
)

func TestMake(t *testing.T) {
	d, err := Make([][]float64{{1, 2, 3}, {4, 5, 6}})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := d.NumRow(), 2; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got, want := d.Width(), 3; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got, want := d.Row(1), []float64{4, 5, 6}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMakeRagged(t *testing.T) {
	_, err := Make([][]float64{{1, 2, 3}, {4, 5}})
	if !errors.Match(errors.E(errors.Invalid), err) {
		t.Errorf("got %v, want invalid", err)
	}
}

func TestMakeEmpty(t *testing.T) {
	d, err := Make(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := d.NumRow(), 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestChecksum(t *testing.T) {
	fz := fuzz.New().NilChance(0).NumElements(8, 64)
	const N = 20
	for i := 0; i < N; i++ {
		var row []float64
		fz.Fuzz(&row)
		d, err := Make([][]float64{row, row})
		if err != nil {
			t.Fatal(err)
		}
		if got, want := d.Checksum(), d.Checksum(); got != want {
			t.Fatalf("unstable checksum: %x vs %x", got, want)
		}
		e, err := Make([][]float64{row, row})
		if err != nil {
			t.Fatal(err)
		}
		if got, want := e.Checksum(), d.Checksum(); got != want {
			t.Fatalf("got %x, want %x", got, want)
		}
		e.Data[0]++
		if e.Checksum() == d.Checksum() {
			t.Fatal("checksum insensitive to data")
		}
	}
	// Shape must contribute to the checksum even when the samples agree.
	a, _ := Make([][]float64{{0, 0, 0, 0}})
	b, _ := Make([][]float64{{0, 0}, {0, 0}})
	if a.Checksum() == b.Checksum() {
		t.Error("checksum insensitive to shape")
	}
}
