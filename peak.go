// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package peakbench

import (
	"fmt"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Params parameterizes a peak detector. Detectors scan a range of
// candidate peak widths; Params determines that range and its
// granularity.
type Params struct {
	// MinWidth and MaxWidth bound the peak widths, in samples,
	// considered by the detector.
	MinWidth, MaxWidth float64
	// NumSteps is the number of widths scanned between MinWidth and
	// MaxWidth, inclusive.
	NumSteps int
}

// Validate returns an error of kind errors.Invalid if the parameters
// are out of range.
func (p Params) Validate() error {
	if p.NumSteps <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("peakbench: numsteps %d <= 0", p.NumSteps))
	}
	if p.MinWidth <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("peakbench: minwidth %g <= 0", p.MinWidth))
	}
	if p.MaxWidth < p.MinWidth {
		return errors.E(errors.Invalid, fmt.Sprintf("peakbench: maxwidth %g < minwidth %g", p.MaxWidth, p.MinWidth))
	}
	return nil
}

// A Detector returns the indices of the peaks in a single row. The
// returned indices are strictly increasing and in range for the row.
// Detectors must be pure and deterministic: the execution strategies
// rely on being able to invoke a detector concurrently and in any
// row order.
type Detector func(row []float64, params Params) ([]int, error)

var (
	detectorsMu sync.Mutex
	detectors   = map[string]Detector{}
)

// RegisterDetector registers the detector under the given name so
// that it can be resolved by name on cluster workers. RegisterDetector
// panics if the name is already registered.
func RegisterDetector(name string, detect Detector) {
	detectorsMu.Lock()
	defer detectorsMu.Unlock()
	if _, present := detectors[name]; present {
		log.Panicf("detector %s is already registered", name)
	}
	detectors[name] = detect
}

// Lookup returns the detector registered under the given name,
// or an error of kind errors.NotExist.
func Lookup(name string) (Detector, error) {
	detectorsMu.Lock()
	defer detectorsMu.Unlock()
	detect, ok := detectors[name]
	if !ok {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("peakbench: no detector named %s", name))
	}
	return detect, nil
}

// DetectionError attributes a detector failure to the dataset row on
// which it occurred.
type DetectionError struct {
	// Row is the index of the failing row.
	Row int
	// Err is the detector's error.
	Err error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detection failed on row %d: %v", e.Row, e.Err)
}

// Detection returns an error attributing err to the given row.
func Detection(row int, err error) error {
	return &DetectionError{Row: row, Err: err}
}

// DetectionRow returns the row to which err is attributed; ok reports
// whether err is a detection error.
func DetectionRow(err error) (row int, ok bool) {
	e, ok := err.(*DetectionError)
	if !ok {
		return 0, false
	}
	return e.Row, true
}
