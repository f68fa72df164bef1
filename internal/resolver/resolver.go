package resolver

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"rate_server/internal/domain"
	"rate_server/internal/infra"
)

// Store is the persistent rate cache the resolver reads and writes. It is
// the sole source of "already cached" truth; the resolver keeps no
// in-memory cache of its own.
type Store interface {
	LookupMany(ctx context.Context, date time.Time, symbols []string) (map[string]domain.RateQuote, error)
	InsertMany(ctx context.Context, quotes []domain.RateQuote) error
}

// Provider is the external quote source, consulted only on cache miss.
type Provider interface {
	Fetch(ctx context.Context, date time.Time, symbol string) (domain.RateQuote, error)
}

// Resolver implements the cache-aside pipeline: partition a request into
// hits and misses against the store, fetch misses concurrently from the
// provider, write the fetched values back, and return the merged answer.
type Resolver struct {
	store    Store
	provider Provider
	logger   *slog.Logger
}

// New creates a Resolver.
func New(store Store, provider Provider, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, provider: provider, logger: logger}
}

// Resolve answers a GET request. Backend failures degrade the response
// instead of failing it: a store lookup error is treated as all-misses, a
// failed provider fetch drops that one symbol, and a write-back error still
// lets the already-fetched values through. The result is hits in store
// lookup order (the store orders by symbol) followed by fetched quotes in
// first-seen request order; it is empty, not an error, when nothing could
// be resolved.
func (r *Resolver) Resolve(ctx context.Context, date time.Time, symbols []string) ([]domain.RateQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		infra.ResolveDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	unique := dedupe(symbols)

	cached, err := r.store.LookupMany(ctx, date, unique)
	if err != nil {
		// Degrade to all-misses so the provider path is still attempted.
		r.logger.Warn("store lookup failed, treating all symbols as misses",
			slog.String("date", date.Format(domain.DateLayout)),
			slog.Any("error", err))
		cached = nil
	}

	misses := make([]string, 0, len(unique))
	for _, sym := range unique {
		if _, ok := cached[sym]; !ok {
			misses = append(misses, sym)
		}
	}

	infra.CacheHitsTotal.Add(float64(len(cached)))
	infra.CacheMissesTotal.Add(float64(len(misses)))

	fetched := r.fetchAll(ctx, date, misses)

	if len(fetched) > 0 {
		// One batch, before replying, so a repeat request is a cache hit.
		if err := r.store.InsertMany(ctx, fetched); err != nil {
			// Degraded success: the answer is already in hand.
			r.logger.Warn("write-back failed, replying from fetched values",
				slog.Int("quotes", len(fetched)),
				slog.Any("error", err))
		}
	}

	result := make([]domain.RateQuote, 0, len(cached)+len(fetched))
	for _, sym := range sortedKeys(cached) {
		result = append(result, cached[sym])
	}
	result = append(result, fetched...)
	return result, nil
}

// fetchAll queries the provider for every missed symbol concurrently and
// joins all fetches before returning. One symbol's failure never cancels
// the others; failed symbols are simply dropped. Results come back in miss
// order.
func (r *Resolver) fetchAll(ctx context.Context, date time.Time, misses []string) []domain.RateQuote {
	if len(misses) == 0 {
		return nil
	}

	results := make([]*domain.RateQuote, len(misses))

	var wg sync.WaitGroup
	for i, sym := range misses {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()

			q, err := r.provider.Fetch(ctx, date, sym)
			if err != nil {
				infra.ProviderErrorsTotal.Inc()
				r.logger.Warn("provider fetch failed",
					slog.String("symbol", sym),
					slog.Any("error", err))
				return
			}
			results[i] = &q
		}(i, sym)
	}
	wg.Wait()

	fetched := make([]domain.RateQuote, 0, len(misses))
	for _, q := range results {
		if q != nil {
			fetched = append(fetched, *q)
		}
	}
	return fetched
}

// dedupe drops repeated symbols, keeping first-seen order.
func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// sortedKeys returns map keys in ascending symbol order, matching the
// ORDER BY the store applies to lookups.
func sortedKeys(m map[string]domain.RateQuote) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
