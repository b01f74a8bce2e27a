package pipeline

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/cheggaaa/pb.v1"

	"github.com/Smeilz/dataset/pkg/dataset"
	"github.com/Smeilz/dataset/pkg/utils/errcollection"
)

type runConfig struct {
	batchSize int
	shuffle   bool
	seed      int64
	epochs    int
	dropLast  bool
	bar       bool
	prefetch  int
}

// RunOption adjusts how Run, Gen and Next iterate the dataset.
type RunOption func(*runConfig)

// Shuffle reshuffles sample order before every epoch.
func Shuffle(on bool) RunOption {
	return func(c *runConfig) {
		c.shuffle = on
	}
}

// ShuffleSeed fixes the shuffle seed for a reproducible batch order.
// Implies Shuffle(true).
func ShuffleSeed(seed int64) RunOption {
	return func(c *runConfig) {
		c.shuffle = true
		c.seed = seed
	}
}

// Epochs sets how many passes over the dataset the run makes, one by
// default.
func Epochs(n int) RunOption {
	return func(c *runConfig) {
		c.epochs = n
	}
}

// DropLast drops the final short batch of every epoch.
func DropLast(on bool) RunOption {
	return func(c *runConfig) {
		c.dropLast = on
	}
}

// Bar displays a progress bar over the total batch count.
func Bar(on bool) RunOption {
	return func(c *runConfig) {
		c.bar = on
	}
}

// Prefetch prepares up to n batches ahead of the consumer. Zero keeps
// batch processing synchronous.
func Prefetch(n int) RunOption {
	return func(c *runConfig) {
		c.prefetch = n
	}
}

type batchResult struct {
	batch *dataset.Batch
	err   error
}

type batchJob struct {
	indices []int
	result  chan batchResult
}

// BatchIterator streams the processed batches of one run in dataset order,
// regardless of prefetch completion order. Exhaustion is reported as
// dataset.ErrEndOfIteration.
type BatchIterator struct {
	p     *Pipeline
	steps []step
	total int
	bar   *pb.ProgressBar

	// it drives the synchronous path; ordered the prefetched one.
	it      *dataset.Iterator
	ordered chan chan batchResult
	workers sync.WaitGroup

	errs   errcollection.ErrorCollection
	errsMu sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once

	mu   sync.Mutex
	done bool
}

// Gen starts a run and returns its batch stream. The caller owns the
// iterator: drain it or Stop it, otherwise the pipeline stays marked as
// running.
func (p *Pipeline) Gen(batchSize int, opts ...RunOption) (*BatchIterator, error) {
	config := runConfig{batchSize: batchSize, epochs: 1}
	for _, opt := range opts {
		opt(&config)
	}
	if config.prefetch < 0 {
		return nil, errors.Errorf("negative prefetch %d", config.prefetch)
	}

	p.mu.Lock()
	if p.err != nil {
		err := p.err
		p.mu.Unlock()
		return nil, err
	}
	if p.ds == nil {
		p.mu.Unlock()
		return nil, ErrNotBound
	}
	if p.running {
		p.mu.Unlock()
		return nil, errors.New("pipeline is already running")
	}
	steps := append([]step(nil), p.steps...)
	ds := p.ds
	p.running = true
	p.primed = true
	p.mu.Unlock()

	it, err := dataset.NewIterator(ds.Index(), dataset.IteratorConfig{
		BatchSize: config.batchSize,
		Shuffle:   config.shuffle,
		Seed:      config.seed,
		Epochs:    config.epochs,
		DropLast:  config.dropLast,
	})
	if err != nil {
		p.endRun()
		return nil, err
	}
	if err := p.runOnceSteps(steps); err != nil {
		p.endRun()
		return nil, err
	}

	bi := &BatchIterator{
		p:     p,
		steps: steps,
		total: it.TotalBatches(),
		stop:  make(chan struct{}),
	}
	if config.bar {
		bi.bar = pb.StartNew(bi.total)
	}
	if config.prefetch > 0 {
		bi.startPrefetch(it, config.prefetch)
	} else {
		bi.it = it
	}
	logrus.Debugf("pipeline run started: %d batches, prefetch %d", bi.total, config.prefetch)
	return bi, nil
}

// Run executes the pipeline over the whole dataset and blocks until it
// completes or a step fails.
func (p *Pipeline) Run(batchSize int, opts ...RunOption) error {
	iterator, err := p.Gen(batchSize, opts...)
	if err != nil {
		return err
	}
	defer iterator.Stop()
	for {
		_, err := iterator.Next()
		if errors.Cause(err) == dataset.ErrEndOfIteration {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Next returns the next processed batch of a stateful cursor, creating the
// cursor on first use; options apply at creation only. Once exhausted it
// keeps returning dataset.ErrEndOfIteration until ResetIter.
func (p *Pipeline) Next(batchSize int, opts ...RunOption) (*dataset.Batch, error) {
	p.mu.Lock()
	cursor := p.cursor
	p.mu.Unlock()
	if cursor == nil {
		iterator, err := p.Gen(batchSize, opts...)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.cursor = iterator
		p.mu.Unlock()
		cursor = iterator
	}
	return cursor.Next()
}

// ResetIter drops the cursor created by Next so iteration starts over.
func (p *Pipeline) ResetIter() {
	p.mu.Lock()
	cursor := p.cursor
	p.cursor = nil
	p.mu.Unlock()
	if cursor != nil {
		cursor.Stop()
	}
}

func (p *Pipeline) endRun() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// TotalBatches reports how many batches the run will deliver.
func (bi *BatchIterator) TotalBatches() int {
	return bi.total
}

// Next returns the next processed batch, dataset.ErrEndOfIteration once
// the run completed or was stopped.
func (bi *BatchIterator) Next() (*dataset.Batch, error) {
	bi.mu.Lock()
	if bi.done {
		bi.mu.Unlock()
		return nil, dataset.ErrEndOfIteration
	}
	bi.mu.Unlock()

	if bi.ordered != nil {
		return bi.nextPrefetched()
	}
	return bi.nextSync()
}

// Stop terminates the run early, unblocking prefetch workers. Safe to call
// multiple times and after exhaustion.
func (bi *BatchIterator) Stop() {
	bi.stopOnce.Do(func() {
		close(bi.stop)
	})
	bi.finish()
}

func (bi *BatchIterator) nextSync() (*dataset.Batch, error) {
	indices, err := bi.it.Next()
	if err != nil {
		bi.finish()
		return nil, err
	}
	batch, err := bi.p.processBatch(indices, bi.steps)
	if err != nil {
		bi.finish()
		return nil, err
	}
	bi.advanceBar()
	return batch, nil
}

func (bi *BatchIterator) nextPrefetched() (*dataset.Batch, error) {
	select {
	case result, ok := <-bi.ordered:
		if !ok {
			bi.workers.Wait()
			bi.finish()
			if err := bi.collectedErr(); err != nil {
				return nil, err
			}
			return nil, dataset.ErrEndOfIteration
		}
		select {
		case res := <-result:
			if res.err != nil {
				bi.Stop()
				bi.workers.Wait()
				return nil, bi.collectedErr()
			}
			bi.advanceBar()
			return res.batch, nil
		case <-bi.stop:
			bi.finish()
			return nil, dataset.ErrEndOfIteration
		}
	case <-bi.stop:
		bi.finish()
		return nil, dataset.ErrEndOfIteration
	}
}

func (bi *BatchIterator) startPrefetch(it *dataset.Iterator, prefetch int) {
	bi.ordered = make(chan chan batchResult, prefetch+1)
	jobs := make(chan batchJob)

	workers := prefetch + 1
	bi.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go bi.worker(jobs)
	}
	go bi.produce(it, jobs)
}

// produce walks the index iterator in order and enqueues one result
// channel per batch before handing the job to a worker, which pins
// delivery to dataset order.
func (bi *BatchIterator) produce(it *dataset.Iterator, jobs chan<- batchJob) {
	defer close(bi.ordered)
	defer close(jobs)
	for {
		indices, err := it.Next()
		if err != nil {
			if errors.Cause(err) == dataset.ErrEndOfIteration {
				return
			}
			bi.addErr(err)
			result := make(chan batchResult, 1)
			result <- batchResult{err: err}
			select {
			case bi.ordered <- result:
			case <-bi.stop:
			}
			return
		}
		result := make(chan batchResult, 1)
		select {
		case bi.ordered <- result:
		case <-bi.stop:
			return
		}
		select {
		case jobs <- batchJob{indices: indices, result: result}:
		case <-bi.stop:
			return
		}
	}
}

func (bi *BatchIterator) worker(jobs <-chan batchJob) {
	defer bi.workers.Done()
	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			batch, err := bi.p.processBatch(job.indices, bi.steps)
			if err != nil {
				bi.addErr(err)
			}
			job.result <- batchResult{batch: batch, err: err}
		case <-bi.stop:
			return
		}
	}
}

func (bi *BatchIterator) addErr(err error) {
	bi.errsMu.Lock()
	bi.errs.Add(err)
	bi.errsMu.Unlock()
}

func (bi *BatchIterator) collectedErr() error {
	bi.errsMu.Lock()
	defer bi.errsMu.Unlock()
	return bi.errs.GetErrIfAny()
}

func (bi *BatchIterator) advanceBar() {
	if bi.bar != nil {
		bi.bar.Add(1)
	}
}

func (bi *BatchIterator) finish() {
	bi.mu.Lock()
	if bi.done {
		bi.mu.Unlock()
		return
	}
	bi.done = true
	bi.mu.Unlock()

	if bi.bar != nil {
		bi.bar.Finish()
	}
	bi.p.endRun()
}
