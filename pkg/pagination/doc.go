// Package pagination fetches a batch of cat images by fanning out page
// requests to the upstream search API.
//
// A batch for a given limit issues QueryTimes(limit) page requests of
// PageSize images each, all at once, and waits for every one of them.
// Pages are concatenated in dispatch order, not completion order, and the
// result is truncated to limit. A single failed page fails the batch.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(catClient, pagination.DefaultConfig())
//	images, err := fetcher.FetchLimit(ctx, r.URL.Query().Get("limit"))
//	switch {
//	case errors.Is(err, pagination.ErrMissingLimit):
//		// caller omitted limit
//	case errors.Is(err, pagination.ErrInvalidLimit):
//		// limit is not an integer
//	case err != nil:
//		// an upstream page failed
//	}
package pagination
