// Package exchangerate implements ports.ExchangeRateProvider with an
// in-memory (from, to, utcDay) cache and triangulation. Cache entries expire
// by TTL only; the cache has no size bound and no LRU eviction.
package exchangerate

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LerianStudio/midaz-ledger-core/internal/domain/errs"
	"github.com/LerianStudio/midaz-ledger-core/internal/ports"
)

const defaultTTL = 5 * time.Minute

type cacheKey struct {
	from  string
	to    string
	utcDay string
}

type cacheEntry struct {
	rate      decimal.Decimal
	expiresAt time.Time
}

// Fetcher retrieves a live rate from whatever upstream source is configured;
// its HTTP transport is outside this module's scope (spec §5).
type Fetcher interface {
	Fetch(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Provider is a ports.ExchangeRateProvider backed by an in-memory
// (from, to, utcDay) cache with a default 5-minute TTL, triangulating
// through baseCurrency and inverting when only the reverse pair is known.
type Provider struct {
	mu            sync.Mutex
	cache         map[cacheKey]cacheEntry
	fetcher       Fetcher
	baseCurrency  string
	ttl           time.Duration
}

// New builds a Provider. baseCurrency is the triangulation hub (spec §5);
// ttl defaults to 5 minutes when zero.
func New(fetcher Fetcher, baseCurrency string, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Provider{
		cache:        make(map[cacheKey]cacheEntry),
		fetcher:      fetcher,
		baseCurrency: baseCurrency,
		ttl:          ttl,
	}
}

var _ ports.ExchangeRateProvider = (*Provider)(nil)

func (p *Provider) Rate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	if rate, ok := p.lookup(from, to, asOf); ok {
		return rate, nil
	}

	if rate, ok := p.lookup(to, from, asOf); ok {
		return decimal.NewFromInt(1).Div(rate), nil
	}

	if from != p.baseCurrency && to != p.baseCurrency {
		fromBase, err := p.Rate(ctx, from, p.baseCurrency, asOf)
		if err != nil {
			return decimal.Zero, err
		}
		baseToTo, err := p.Rate(ctx, p.baseCurrency, to, asOf)
		if err != nil {
			return decimal.Zero, err
		}
		return fromBase.Mul(baseToTo), nil
	}

	rate, err := p.fetcher.Fetch(ctx, from, to)
	if err != nil {
		return decimal.Zero, errs.Transport("failed to fetch exchange rate", err)
	}

	p.store(from, to, asOf, rate)

	return rate, nil
}

func (p *Provider) lookup(from, to string, asOf time.Time) (decimal.Decimal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := cacheKey{from: from, to: to, utcDay: utcDay(asOf)}
	entry, ok := p.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return decimal.Zero, false
	}
	return entry.rate, true
}

func (p *Provider) store(from, to string, asOf time.Time, rate decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := cacheKey{from: from, to: to, utcDay: utcDay(asOf)}
	p.cache[key] = cacheEntry{rate: rate, expiresAt: time.Now().Add(p.ttl)}
}

func utcDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// StaticProvider is a fixed-rate ports.ExchangeRateProvider for unit tests:
// no cache, no triangulation, just a lookup table keyed "FROM/TO".
type StaticProvider struct {
	Rates map[string]decimal.Decimal
}

var _ ports.ExchangeRateProvider = (*StaticProvider)(nil)

func (s *StaticProvider) Rate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if rate, ok := s.Rates[from+"/"+to]; ok {
		return rate, nil
	}
	if rate, ok := s.Rates[to+"/"+from]; ok {
		return decimal.NewFromInt(1).Div(rate), nil
	}
	return decimal.Zero, errs.Transport("no static rate configured for "+from+"/"+to, nil)
}
