package scanner

import (
	"context"
	"fmt"
	"sync"

	"github.com/jamesainslie/scout/pkg/scout/types"
)

// result is one finished analysis tagged with its discovery sequence.
type result struct {
	seq int
	rec *types.FileRecord
}

// pipeline is the analysis pipeline of a single scan. Files are admitted in
// discovery order, analysed concurrently, and re-sequenced by a collector
// goroutine that cuts batches.
type pipeline struct {
	s *Scanner

	// emitCtx carries ctx values but not its cancellation, so completed
	// records are still handed over after a stop.
	emitCtx context.Context

	next    int
	wg      sync.WaitGroup
	results chan result
	done    chan struct{}
}

func newPipeline(ctx context.Context, s *Scanner) *pipeline {
	r := &pipeline{
		s:       s,
		results: make(chan result),
		done:    make(chan struct{}),
		emitCtx: context.WithoutCancel(ctx),
	}
	go r.collect()
	return r
}

// dispatch admits path through the gate and analyses it in the background.
func (r *pipeline) dispatch(ctx context.Context, path string) error {
	if err := r.s.gate.AcquireWorker(ctx); err != nil {
		return fmt.Errorf("admitting %s: %w", path, err)
	}

	seq := r.next
	r.next++

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		rec, err := r.s.analyze(path)
		var size int64
		if rec != nil {
			size = rec.Size
		}
		r.s.recordResult(path, rec, err)

		// The slot is held until the collector takes the result, so a slow
		// batch callback throttles admission.
		r.results <- result{seq: seq, rec: rec}
		r.s.gate.ReleaseWorker(size, err)
	}()
	return nil
}

// collect restores discovery order and emits full batches.
func (r *pipeline) collect() {
	defer close(r.done)

	size := r.s.opts.BatchSize
	pending := make(map[int]*types.FileRecord)
	batch := make([]types.FileRecord, 0, size)
	next := 0

	for res := range r.results {
		pending[res.seq] = res.rec
		for {
			rec, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if rec == nil {
				continue
			}
			batch = append(batch, *rec)
			if len(batch) >= size {
				r.emit(batch)
				batch = make([]types.FileRecord, 0, size)
			}
		}
	}

	if len(batch) > 0 {
		r.emit(batch)
	}
}

func (r *pipeline) emit(batch []types.FileRecord) {
	if r.s.opts.OnBatch == nil {
		return
	}

	if err := r.callOnBatch(batch); err != nil {
		r.s.log.Error("batch callback failed", "size", len(batch), "error", err)
	}
}

func (r *pipeline) callOnBatch(batch []types.FileRecord) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in batch callback: %v", p)
		}
	}()
	return r.s.opts.OnBatch(r.emitCtx, batch)
}

// finish waits for admitted analyses and the trailing batch.
func (r *pipeline) finish() {
	r.wg.Wait()
	close(r.results)
	<-r.done
}
