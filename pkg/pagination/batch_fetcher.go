package pagination

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/catproxy/pkg/catapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	batchQueryTimes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catproxy_batch_query_times",
		Help:    "Number of upstream pages requested per batch",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	})

	batchImagesReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catproxy_batch_images_returned",
		Help:    "Number of images returned per batch after truncation",
		Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
	})

	batchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catproxy_batch_failures_total",
		Help: "Total batches discarded because an upstream page failed",
	})
)

// Config holds batch fetcher configuration
type Config struct {
	// PageTimeout bounds each page fetch. Zero means no timeout:
	// a page that never settles stalls the whole batch.
	PageTimeout time.Duration
}

// DefaultConfig returns the default configuration (no per-page timeout)
func DefaultConfig() Config {
	return Config{}
}

// PageFetcher is the interface the upstream client must implement for single-page fetching
type PageFetcher interface {
	// FetchPage fetches one page of pageSize images; pageNum is 1-based dispatch order
	FetchPage(ctx context.Context, pageNum, pageSize int) ([]catapi.Image, error)
}

// PageResult represents the result of fetching a single page
type PageResult struct {
	PageNumber int
	Images     []catapi.Image
	Error      error
}

// BatchFetcher fans out page requests and assembles one ordered batch
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if config.PageTimeout < 0 {
		config.PageTimeout = 0
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchLimit parses a raw limit query value and fetches that many images.
// ErrMissingLimit and ErrInvalidLimit are returned before any upstream call.
func (bf *BatchFetcher) FetchLimit(ctx context.Context, rawLimit string) ([]catapi.Image, error) {
	limit, err := ParseLimit(rawLimit)
	if err != nil {
		return nil, err
	}
	return bf.Fetch(ctx, limit)
}

// Fetch requests QueryTimes(limit) pages concurrently, waits for all of them,
// and returns the first limit images in dispatch order.
// If any page fails the whole batch fails with a *PageError.
func (bf *BatchFetcher) Fetch(ctx context.Context, limit int) ([]catapi.Image, error) {
	start := time.Now()
	queryTimes := QueryTimes(limit)
	batchQueryTimes.Observe(float64(queryTimes))

	log.Debug().
		Int("limit", limit).
		Int("query_times", queryTimes).
		Msg("Starting parallel page fetch")

	// One slot per dispatched page; each goroutine writes only its own index.
	results := make([]PageResult, queryTimes)

	var wg sync.WaitGroup
	for i := 0; i < queryTimes; i++ {
		wg.Add(1)
		go bf.fetchPage(ctx, i+1, &results[i], &wg)
	}
	wg.Wait()

	images := make([]catapi.Image, 0, queryTimes*PageSize)
	for _, result := range results {
		if result.Error != nil {
			batchFailuresTotal.Inc()
			log.Warn().
				Err(result.Error).
				Int("page", result.PageNumber).
				Int("query_times", queryTimes).
				Msg("Page fetch failed - discarding batch")
			return nil, &PageError{Page: result.PageNumber, Err: result.Error}
		}
		images = append(images, result.Images...)
	}

	images = truncate(images, limit)
	batchImagesReturned.Observe(float64(len(images)))

	log.Info().
		Int("limit", limit).
		Int("pages", queryTimes).
		Int("images", len(images)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return images, nil
}

// fetchPage fetches one page into its result slot
func (bf *BatchFetcher) fetchPage(ctx context.Context, pageNum int, result *PageResult, wg *sync.WaitGroup) {
	defer wg.Done()

	pageCtx := ctx
	if bf.config.PageTimeout > 0 {
		var cancel context.CancelFunc
		pageCtx, cancel = context.WithTimeout(ctx, bf.config.PageTimeout)
		defer cancel()
	}

	images, err := bf.fetcher.FetchPage(pageCtx, pageNum, PageSize)
	*result = PageResult{
		PageNumber: pageNum,
		Images:     images,
		Error:      err,
	}
}

func truncate(images []catapi.Image, limit int) []catapi.Image {
	if limit <= 0 {
		return images[:0]
	}
	if len(images) > limit {
		return images[:limit]
	}
	return images
}
