package ocr

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"notaria/internal/logger"
)

// Config controls the pool size, recognition defaults and cache behaviour.
type Config struct {
	PoolSize      int
	Defaults      Options
	CacheTTL      time.Duration
	CacheSweep    time.Duration
	SlowThreshold time.Duration
	LowConfidence float64
}

// DefaultConfig returns three Spanish workers with a one hour cache.
func DefaultConfig() Config {
	return Config{
		PoolSize: 3,
		Defaults: Options{
			Language:    "spa",
			DPI:         300,
			PageSegMode: 6,
		},
		CacheTTL:      time.Hour,
		CacheSweep:    10 * time.Minute,
		SlowThreshold: 5 * time.Second,
		LowConfidence: 0.8,
	}
}

type worker struct {
	id      int
	backend Backend
}

// Engine is a fixed-size pool of OCR workers fronted by a result cache.
type Engine struct {
	cfg     Config
	factory BackendFactory
	log     zerolog.Logger
	cache   *ResultCache
	flights singleflight.Group

	mu          sync.Mutex
	initialized bool
	terminated  bool
	workers     []*worker
	idle        chan *worker
	done        chan struct{}

	busy     atomic.Int32
	peakBusy atomic.Int32
}

// NewEngine creates an engine; workers are started by Initialize or the first Recognize.
func NewEngine(cfg Config, factory BackendFactory) *Engine {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.CacheSweep <= 0 {
		cfg.CacheSweep = 10 * time.Minute
	}
	return &Engine{
		cfg:     cfg,
		factory: factory,
		log:     logger.WithComponent("ocr"),
		cache:   NewResultCache(cfg.CacheTTL, cfg.CacheSweep),
		done:    make(chan struct{}),
	}
}

// Initialize creates PoolSize workers in parallel. Calling it again is a no-op.
// If any worker fails to start, the ones already created are closed.
func (e *Engine) Initialize(ctx context.Context) error {
	const op = "Initialize"

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminated {
		return WrapRecognitionError(op, "", ErrEngineTerminated, "")
	}
	if e.initialized {
		return nil
	}
	if e.cfg.PoolSize <= 0 {
		return WrapRecognitionError(op, "", ErrInvalidPoolSize, "")
	}

	workers := make([]*worker, e.cfg.PoolSize)
	g, gctx := errgroup.WithContext(ctx)
	for i := range workers {
		g.Go(func() error {
			b, err := e.factory(gctx, e.cfg.Defaults)
			if err != nil {
				return err
			}
			workers[i] = &worker{id: i, backend: b}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, w := range workers {
			if w != nil {
				w.backend.Close()
			}
		}
		return WrapRecognitionError(op, "", err, "failed to start workers")
	}

	e.workers = workers
	e.idle = make(chan *worker, len(workers))
	for _, w := range workers {
		e.idle <- w
	}
	e.initialized = true

	e.log.Info().Int("pool_size", len(workers)).Msg("OCR engine initialized")
	return nil
}

// acquire blocks until a worker is idle, the engine terminates or ctx ends.
func (e *Engine) acquire(ctx context.Context) (*worker, error) {
	select {
	case w := <-e.idle:
		select {
		case <-e.done:
			e.idle <- w
			return nil, ErrEngineTerminated
		default:
		}
		n := e.busy.Add(1)
		for {
			peak := e.peakBusy.Load()
			if n <= peak || e.peakBusy.CompareAndSwap(peak, n) {
				break
			}
		}
		return w, nil
	case <-e.done:
		return nil, ErrEngineTerminated
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) release(w *worker) {
	e.busy.Add(-1)
	e.idle <- w
}

// Recognize returns the OCR result for the image at path. Cache hits never
// touch a worker. Options left zero take the engine defaults.
func (e *Engine) Recognize(ctx context.Context, path string, opts Options) (*Result, error) {
	const op = "Recognize"

	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, WrapRecognitionError(op, path, ErrInvalidImage, err.Error())
	}

	merged := opts.merge(e.cfg.Defaults)
	key := CacheKey(path, info, merged)
	if r, ok := e.cache.Get(key); ok {
		e.log.Debug().Str("path", path).Msg("OCR cache hit")
		return r, nil
	}

	v, err, _ := e.flights.Do(key, func() (any, error) {
		return e.recognize(ctx, path, merged, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (e *Engine) recognize(ctx context.Context, path string, opts Options, key string) (*Result, error) {
	const op = "Recognize"

	w, err := e.acquire(ctx)
	if err != nil {
		return nil, WrapRecognitionError(op, path, err, "")
	}
	defer e.release(w)

	start := time.Now()
	res, err := w.backend.Recognize(ctx, path, opts)
	elapsed := time.Since(start)
	if err != nil {
		e.log.Error().Err(err).Int("worker", w.id).Str("path", path).Msg("OCR recognition failed")
		return nil, WrapRecognitionError(op, path, err, "")
	}

	if e.cfg.SlowThreshold > 0 && elapsed > e.cfg.SlowThreshold {
		e.log.Warn().Dur("elapsed", elapsed).Str("path", path).Msg("slow OCR recognition")
	}
	if res.Confidence < e.cfg.LowConfidence {
		e.log.Warn().Float64("confidence", res.Confidence).Str("path", path).Msg("low OCR confidence")
	}

	e.cache.Set(key, res)
	return res, nil
}

// BatchItem is the outcome of one path in RecognizeMultiple.
type BatchItem struct {
	Path   string
	Result *Result
	Err    error
}

// RecognizeMultiple recognizes paths with at most min(concurrency, PoolSize)
// in flight. Results keep the input order; one failure does not stop the rest.
func (e *Engine) RecognizeMultiple(ctx context.Context, paths []string, opts Options, concurrency int) []BatchItem {
	limit := min(max(concurrency, 1), max(e.cfg.PoolSize, 1))

	items := make([]BatchItem, len(paths))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, p := range paths {
		g.Go(func() error {
			r, err := e.Recognize(ctx, p, opts)
			items[i] = BatchItem{Path: p, Result: r, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// Terminate waits for every busy worker to be released, closes all backends
// and clears the cache. It is a no-op if the engine never started.
func (e *Engine) Terminate(ctx context.Context) error {
	e.mu.Lock()
	if !e.initialized || e.terminated {
		e.terminated = true
		e.mu.Unlock()
		return nil
	}
	e.terminated = true
	close(e.done)
	e.mu.Unlock()

	// Draining every worker from idle is the same as waiting for busy == 0.
	for range e.workers {
		select {
		case <-e.idle:
		case <-ctx.Done():
			return WrapRecognitionError("Terminate", "", ctx.Err(), "workers still busy")
		}
	}

	var errs []error
	for _, w := range e.workers {
		if err := w.backend.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.cache.Flush()
	e.log.Info().Int32("peak_busy", e.peakBusy.Load()).Msg("OCR engine terminated")

	return errors.Join(errs...)
}

// Health is a side-effect free snapshot of the pool and cache.
type Health struct {
	PoolSize    int   `json:"poolSize"`
	Available   int   `json:"available"`
	Busy        int   `json:"busy"`
	PeakBusy    int   `json:"peakBusy"`
	Initialized bool  `json:"initialized"`
	Terminated  bool  `json:"terminated"`
	CacheHits   int64 `json:"cacheHits"`
	CacheMisses int64 `json:"cacheMisses"`
	CacheKeys   int   `json:"cacheKeys"`
}

// Health reports pool and cache counters.
func (e *Engine) Health() Health {
	e.mu.Lock()
	initialized, terminated := e.initialized, e.terminated
	available := 0
	if initialized && !terminated {
		available = len(e.idle)
	}
	e.mu.Unlock()

	stats := e.cache.Stats()
	return Health{
		PoolSize:    e.cfg.PoolSize,
		Available:   available,
		Busy:        int(e.busy.Load()),
		PeakBusy:    int(e.peakBusy.Load()),
		Initialized: initialized,
		Terminated:  terminated,
		CacheHits:   stats.Hits,
		CacheMisses: stats.Misses,
		CacheKeys:   stats.Keys,
	}
}
