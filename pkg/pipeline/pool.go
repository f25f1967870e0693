// Package pipeline runs batch OCR: a worker pool extracts text from each
// queued file, writes <stem>.txt and <stem>_metadata.txt and optionally adds
// the text to the document store.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

var (
	defaultNumWorkers   uint = 4
	defaultJobQueueSize uint = 256
)

// Sink receives extracted documents. *store.Store satisfies it.
type Sink interface {
	Add(ctx context.Context, text, filePath string, confidence float64) (int, error)
}

// Job is one file to process.
type Job struct {
	Path string
}

// Status is the outcome class of a Job.
type Status string

const (
	StatusDone   Status = "done"
	StatusEmpty  Status = "empty"
	StatusFailed Status = "failed"
)

// Result reports one processed Job.
type Result struct {
	Path       string
	Status     Status
	Confidence float64
	Outputs    Outputs

	// Position is the store position, or -1 when not indexed.
	Position int

	Err error
}

// Summary counts Results by status.
type Summary struct {
	Done   int `json:"done"`
	Empty  int `json:"empty"`
	Failed int `json:"failed"`
}

// Total is the number of processed jobs.
func (s Summary) Total() int {
	return s.Done + s.Empty + s.Failed
}

// Config is the configuration for the worker pool.
type Config struct {
	// Processor extracts text from files.
	Processor *Processor

	// OutputDir receives the text and metadata files.
	OutputDir string

	// Language is recorded in the metadata files.
	Language string

	// Sink optionally indexes extracted text.
	Sink Sink

	// NumWorkers is the number of workers in the pool (defaults to 4).
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// OnResult is called from the worker goroutine after every job.
	OnResult func(Result)

	Logger *slog.Logger
}

// Pool processes files with a fixed set of workers.
type Pool struct {
	config *Config
	ctx    context.Context
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu      sync.Mutex
	summary Summary
}

// NewPool creates a Pool and starts its workers. Jobs run under ctx.
func NewPool(ctx context.Context, c *Config) (*Pool, error) {
	if c.Processor == nil {
		return nil, fmt.Errorf("pipeline requires a processor")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := &Pool{
		config: c,
		ctx:    ctx,
		queue:  make(chan Job, c.QueueSize),
		logger: logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a job without blocking. It returns false and drops the job
// when the queue is full.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "path", job.Path)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped", "path", job.Path)
		return false
	}
}

// Submit queues a job, waiting for room until ctx is done.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued jobs to drain.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// Summary returns the counts so far.
func (p *Pool) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		res := p.processJob(job)

		p.mu.Lock()
		switch res.Status {
		case StatusDone:
			p.summary.Done++
		case StatusEmpty:
			p.summary.Empty++
		default:
			p.summary.Failed++
		}
		p.mu.Unlock()

		if p.config.OnResult != nil {
			p.config.OnResult(res)
		}
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob extracts, writes and indexes one file. Failures are logged and
// reported in the Result; they never stop the pool.
func (p *Pool) processJob(job Job) Result {
	res := Result{Path: job.Path, Position: -1}
	if err := p.ctx.Err(); err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}

	p.logger.Info("processing file", "path", job.Path)

	out, err := p.config.Processor.ExtractFile(p.ctx, job.Path)
	if err != nil {
		p.logger.Error("extraction failed", "path", job.Path, "error", err)
		res.Status, res.Err = StatusFailed, err
		return res
	}
	res.Confidence = out.Confidence

	if out.Empty() {
		p.logger.Warn("no text extracted", "path", job.Path)
		res.Status = StatusEmpty
		return res
	}

	if p.config.OutputDir != "" {
		paths, err := WriteOutputs(p.config.OutputDir, job.Path, p.config.Processor.Engine(), p.config.Language, out)
		if err != nil {
			p.logger.Error("writing outputs failed", "path", job.Path, "error", err)
			res.Status, res.Err = StatusFailed, err
			return res
		}
		res.Outputs = paths
		p.logger.Info("text saved",
			"path", paths.TextFile,
			"confidence", fmt.Sprintf("%.2f%%", out.Confidence),
		)
	}

	if p.config.Sink != nil {
		pos, err := p.config.Sink.Add(p.ctx, out.Text, job.Path, out.Confidence)
		if err != nil {
			p.logger.Error("indexing failed", "path", job.Path, "error", err)
			res.Status, res.Err = StatusFailed, err
			return res
		}
		res.Position = pos
	}

	res.Status = StatusDone
	return res
}

// Run processes paths with a new pool and returns the summary once every
// file is done.
func Run(ctx context.Context, c *Config, paths []string) (Summary, error) {
	p, err := NewPool(ctx, c)
	if err != nil {
		return Summary{}, err
	}

	for _, path := range paths {
		if err := p.Submit(ctx, Job{Path: path}); err != nil {
			p.Close()
			return p.Summary(), err
		}
	}

	p.Close()
	return p.Summary(), nil
}
