// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/retry"
	"github.com/spaolacci/murmur3"
	"gonum.org/v1/hdf5"
)

// FetchPolicy is the retry policy applied to remote fetches.
var fetchPolicy = retry.Backoff(time.Second, 10*time.Second, 2)

// MaxFetchRetries bounds the number of fetch attempts per locator.
const maxFetchRetries = 4

// FatalErr matches fetch errors that must not be retried.
var fatalErr = errors.E(errors.Fatal)

// An Option configures a Load.
type Option func(*loader)

// Path selects the dataset within the HDF5 file. The default is "x".
func Path(path string) Option {
	return func(l *loader) { l.path = path }
}

// Cache sets the directory into which remote locators are downloaded.
// The default is the system temporary directory.
func Cache(dir string) Option {
	return func(l *loader) { l.cache = dir }
}

type loader struct {
	path  string
	cache string
}

// Load resolves locator to a local HDF5 file and reads the configured
// two-dimensional dataset from it. Locators may be local paths, URLs
// in any scheme registered with package file (e.g., s3://), or
// http(s):// URLs; the named object is copied into a local cache file
// first. The cache file is truncated before each copy so that a cache
// artifact left behind by a previous run can never serve stale data.
//
// Load fails with kind errors.Unavailable when the remote resource
// cannot be fetched, and with kind errors.Invalid when the file does
// not have the expected internal structure.
func Load(ctx context.Context, locator string, opts ...Option) (*Dataset, error) {
	l := loader{path: "x", cache: os.TempDir()}
	for _, opt := range opts {
		opt(&l)
	}
	path, err := l.fetch(ctx, locator)
	if err != nil {
		return nil, err
	}
	return l.read(path)
}

func (l *loader) fetch(ctx context.Context, locator string) (string, error) {
	u, err := url.Parse(locator)
	switch {
	case err == nil && (u.Scheme == "http" || u.Scheme == "https"):
		return l.download(ctx, locator, func(w io.Writer) error {
			return httpFetch(ctx, locator, w)
		})
	case err == nil && u.Scheme == "file":
		locator = u.Path
	}
	// Everything else resolves through package file: plain local paths
	// as well as any registered remote scheme such as s3.
	return l.download(ctx, locator, func(w io.Writer) error {
		return fileFetch(ctx, locator, w)
	})
}

// Download fetches the locator into a cache file, retrying transient
// failures, and returns the cache file's path. os.Create truncates,
// so a pre-existing cache file for the same locator is always
// overwritten.
func (l *loader) download(ctx context.Context, locator string, fetch func(io.Writer) error) (string, error) {
	path := filepath.Join(l.cache, fmt.Sprintf("peakbench-%016x%s", murmur3.Sum64([]byte(locator)), filepath.Ext(locator)))
	for retries := 0; ; retries++ {
		err := func() (err error) {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := f.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			return fetch(f)
		}()
		if err == nil {
			break
		}
		log.Error.Printf("dataset: fetch %s: %v", locator, err)
		if errors.Match(fatalErr, err) {
			os.Remove(path)
			return "", errors.E(errors.Unavailable, fmt.Sprintf("dataset: fetch %s", locator), err)
		}
		if retries+1 >= maxFetchRetries {
			os.Remove(path)
			return "", errors.E(errors.Unavailable, fmt.Sprintf("dataset: fetch %s", locator), err)
		}
		if rerr := retry.Wait(ctx, fetchPolicy, retries); rerr != nil {
			os.Remove(path)
			return "", errors.E(errors.Unavailable, fmt.Sprintf("dataset: fetch %s", locator), err)
		}
	}
	log.Printf("dataset: cached %s at %s", locator, path)
	return path, nil
}

func httpFetch(ctx context.Context, locator string, w io.Writer) error {
	req, err := http.NewRequest("GET", locator, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		// Bad statuses are not retried.
		return errors.E(errors.Fatal, fmt.Sprintf("status %s", resp.Status))
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// FileFetch copies the object named by locator into w. Open errors
// are not retried: the remote file implementations retry transient
// faults internally, and an open error on a local path or an
// unregistered scheme will not heal on its own.
func fileFetch(ctx context.Context, locator string, w io.Writer) error {
	f, err := file.Open(ctx, locator)
	if err != nil {
		return errors.E(errors.Fatal, err)
	}
	_, err = io.Copy(w, f.Reader(ctx))
	if cerr := f.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Read reads the two-dimensional dataset at l.path from the HDF5 file
// at path.
func (l *loader) read(path string) (*Dataset, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("dataset: open %s", path), err)
	}
	defer f.Close()
	name := strings.Trim(l.path, "/")
	dset, err := f.OpenDataset(name)
	if err != nil {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("dataset: %s: no dataset %s", path, name), err)
	}
	defer dset.Close()
	space := dset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("dataset: %s: %s", path, name), err)
	}
	if len(dims) != 2 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("dataset: %s: %s has %d dimensions, want 2", path, name, len(dims)))
	}
	d := New(int(dims[0]), int(dims[1]))
	if d.Rows > 0 && d.Cols > 0 {
		if err := dset.Read(&d.Data); err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("dataset: %s: read %s", path, name), err)
		}
	}
	return d, nil
}
