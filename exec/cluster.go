// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/limiter"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bigmachine"
	"github.com/grailbio/peakbench"
	"github.com/grailbio/peakbench/dataset"
	"golang.org/x/sync/errgroup"
)

func init() {
	gob.Register(&worker{})
}

// A ClusterOption configures a cluster strategy.
type ClusterOption func(*cluster)

// Machines sets the number of machines leased from the cluster for
// each run. The default is 1. Machines panics if n < 1.
func Machines(n int) ClusterOption {
	if n < 1 {
		panic("exec.Machines: n < 1")
	}
	return func(c *cluster) { c.machines = n }
}

// Timeout bounds the wall-clock duration of a whole cluster run,
// covering machine start, scatter, and gather. On expiry the run
// fails with kind errors.Timeout and outstanding calls are canceled
// best-effort.
func Timeout(d time.Duration) ClusterOption {
	return func(c *cluster) { c.timeout = d }
}

type cluster struct {
	detector string
	b        *bigmachine.B
	machines int
	timeout  time.Duration
}

// Cluster returns a strategy that runs detection tasks on a
// bigmachine cluster, together with a shutdown function that must be
// called when the strategy is no longer needed. Cluster starts the
// bigmachine immediately and must therefore be called near the
// beginning of a program's main, before other work: when the process
// is launched as a cluster worker, the call serves detection tasks
// and does not return.
//
// Each run proceeds through connect, scatter, submit, and gather
// phases: machines are leased from the cluster and booted with the
// worker service, the dataset is transferred once into each worker's
// memory, one detection task is submitted per row, and results are
// gathered in row order. Machine leases are released on every exit
// path, including failures, and releasing them never masks the run's
// own result or error.
func Cluster(detector string, system bigmachine.System, opts ...ClusterOption) (Strategy, func()) {
	c := &cluster{
		detector: detector,
		b:        bigmachine.Start(system),
		machines: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, c.b.Shutdown
}

func (c *cluster) Name() string { return "cluster" }

func (c *cluster) Run(ctx context.Context, ds *dataset.Dataset, params peakbench.Params) (Results, error) {
	if _, err := peakbench.Lookup(c.detector); err != nil {
		return Results{}, err
	}
	if err := params.Validate(); err != nil {
		return Results{}, err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	machines, err := c.startMachines(ctx)
	if err != nil {
		return Results{}, runError(ctx, err)
	}
	defer func() {
		for _, m := range machines {
			m.Cancel()
		}
	}()

	// Scatter the dataset into each worker's memory, amortizing the
	// transfer across all of the machine's row tasks. Workers verify
	// the dataset's checksum on receipt.
	req := scatterRequest{Data: ds, Checksum: ds.Checksum()}
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range machines {
		m := m
		g.Go(func() error {
			return m.RetryCall(gctx, "Worker.Scatter", req, nil)
		})
	}
	if err := g.Wait(); err != nil {
		return Results{}, runError(ctx, errors.E("exec.Cluster: scatter", err))
	}

	// Parallelism is the number of execution slots reported by the
	// leased machines.
	var procs int
	for _, m := range machines {
		procs += m.Maxprocs
	}
	if procs < len(machines) {
		procs = len(machines)
	}

	// Submit one detection task per row, round-robin across machines,
	// bounding the number of outstanding calls by the cluster's slots.
	// The gather blocks until all tasks complete or one fails.
	peaks := make([][]int, ds.NumRow())
	lim := limiter.New()
	lim.Release(procs)
	g, gctx = errgroup.WithContext(ctx)
	for i := 0; i < ds.NumRow(); i++ {
		i, m := i, machines[i%len(machines)]
		g.Go(func() error {
			if err := lim.Acquire(gctx, 1); err != nil {
				return err
			}
			defer lim.Release(1)
			var reply []int
			if err := m.RetryCall(gctx, "Worker.Detect", detectRequest{Row: i, Params: params}, &reply); err != nil {
				return peakbench.Detection(i, err)
			}
			peaks[i] = normPeaks(reply)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Results{}, runError(ctx, err)
	}
	return Results{Peaks: peaks, Parallelism: procs}, nil
}

// StartMachines leases the configured number of machines from the
// cluster, installing the worker service on each, and waits for them
// to boot. Machines that fail to boot are canceled and skipped; if no
// machine boots, startMachines fails with kind errors.Unavailable.
func (c *cluster) startMachines(ctx context.Context) ([]*bigmachine.Machine, error) {
	services := bigmachine.Services{"Worker": &worker{Detector: c.detector}}
	machines, err := c.b.Start(ctx, c.machines, services)
	if err != nil {
		return nil, errors.E(errors.Unavailable, "exec.Cluster: failed to start machines", err)
	}
	started := make([]*bigmachine.Machine, 0, len(machines))
	for _, m := range machines {
		select {
		case <-m.Wait(bigmachine.Running):
		case <-ctx.Done():
			for _, m := range machines {
				m.Cancel()
			}
			return nil, ctx.Err()
		}
		if err := m.Err(); err != nil {
			log.Error.Printf("machine %s failed to start: %v", m.Addr, err)
			m.Cancel()
			continue
		}
		log.Printf("machine %v is ready", m.Addr)
		started = append(started, m)
	}
	if len(started) == 0 {
		return nil, errors.E(errors.Unavailable, "exec.Cluster: no machines started")
	}
	return started, nil
}

// RunError converts context expiry into a timeout error; other errors
// pass through so that the original failure is surfaced.
func runError(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.E(errors.Timeout, "exec.Cluster: run timed out", err)
	}
	return err
}

// A worker is the bigmachine service installed on each cluster
// machine. The dataset is scattered into the worker's memory once per
// run and shared read-only by all of the machine's detection tasks.
type worker struct {
	// Detector names the registered detector used for Detect calls.
	// It is serialized with the service when the worker is installed
	// on a machine; the named detector must be registered in the
	// worker process as well as the driver.
	Detector string

	b      *bigmachine.B
	detect peakbench.Detector

	mu   sync.Mutex
	data *dataset.Dataset
}

func (w *worker) Init(b *bigmachine.B) error {
	w.b = b
	detect, err := peakbench.Lookup(w.Detector)
	if err != nil {
		return errors.E(errors.Fatal, err)
	}
	w.detect = detect
	return nil
}

type scatterRequest struct {
	Data     *dataset.Dataset
	Checksum uint64
}

// Scatter stores the dataset in worker memory after verifying its
// checksum. Later scatters replace the dataset wholesale, so a worker
// reused across runs never serves a stale dataset.
func (w *worker) Scatter(ctx context.Context, req scatterRequest, _ *struct{}) error {
	if req.Data == nil {
		return errors.E(errors.Fatal, "worker.Scatter: nil dataset")
	}
	if got, want := req.Data.Checksum(), req.Checksum; got != want {
		return errors.E(errors.Integrity, fmt.Sprintf("worker.Scatter: dataset checksum %x, want %x", got, want))
	}
	w.mu.Lock()
	w.data = req.Data
	w.mu.Unlock()
	return nil
}

type detectRequest struct {
	Row    int
	Params peakbench.Params
}

// Detect runs the worker's detector on a single row of the scattered
// dataset. Detector failures are marked fatal so that callers do not
// retry them: the detector is deterministic, so a retry would fail
// identically.
func (w *worker) Detect(ctx context.Context, req detectRequest, reply *[]int) error {
	w.mu.Lock()
	data := w.data
	w.mu.Unlock()
	if data == nil {
		return errors.E(errors.Fatal, "worker.Detect: no dataset scattered")
	}
	if req.Row < 0 || req.Row >= data.NumRow() {
		return errors.E(errors.Fatal, fmt.Sprintf("worker.Detect: row %d out of range [0,%d)", req.Row, data.NumRow()))
	}
	peaks, err := w.detect(data.Row(req.Row), req.Params)
	if err != nil {
		return errors.E(errors.Fatal, err)
	}
	*reply = normPeaks(peaks)
	return nil
}
