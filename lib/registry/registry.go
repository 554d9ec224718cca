// Package registry defines the provider contract shared by all external
// business-registry integrations, the record/match data model, and the
// cross-cutting caching applied to search and fetch-by-id operations.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"registry-backend/lib/cache"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/registry")

// ErrNotSupported marks a provider capability gap. Not every registry
// implements the full contract; callers must not assume otherwise.
var ErrNotSupported = errors.New("operation not supported by this registry provider")

// Provider is the uniform capability set of an external registry.
type Provider interface {
	Search(ctx context.Context, text string) ([]Match, error)
	FetchByID(ctx context.Context, id string) (*Record, error)
	HQForTaxID(ctx context.Context, taxID string) (*Record, error)
	LinkedPersons(ctx context.Context, taxID string) ([]Person, error)
	Branches(ctx context.Context, taxID string) ([]*Record, error)
}

// Notifier surfaces short, user-facing notices on failure paths. Stack
// traces go to the log, not to the user.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, message string) {
	slog.WarnContext(ctx, "user notice", "message", message)
}

var branchLegalForms = []string{"30001", "30002", "30003", "30004"}

// IsBranch reports whether a company record describes a branch or
// representative office rather than a headquarters, by its ОКОПФ prefix.
// A record without an ОКОПФ field at all is always treated as HQ.
func IsBranch(r *Record) bool {
	if r == nil {
		return false
	}
	code := r.Text(KeyLegalForm)
	if code == "" {
		return false
	}
	for _, prefix := range branchLegalForms {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}

const (
	DefaultSearchCacheSize = 50
	DefaultSearchCacheTTL  = 10 * time.Minute
	DefaultRecordCacheSize = 50
	DefaultRecordCacheTTL  = 2 * time.Hour
)

const noticeSearchTooShort = "Укажите как минимум три символа для поиска организации!"

type CachingOptions struct {
	Notifier Notifier
	// zero values fall back to the defaults above
	SearchCacheSize int
	SearchCacheTTL  time.Duration
	RecordCacheSize int
	RecordCacheTTL  time.Duration
}

// Caching is the cross-cutting layer every provider embeds around its raw
// search and fetch-by-id operations: a short-lived search cache keyed by
// exact query text, a longer-lived record cache keyed by provider-internal
// id, and the minimum-length guard on search text. Caches are strictly
// per-instance state, never shared between providers.
type Caching struct {
	notifier Notifier

	mu          sync.Mutex
	searchCache *cache.Cache[string, []Match]
	recordCache *cache.Cache[string, *Record]
}

func NewCaching(opts CachingOptions) *Caching {
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}
	if opts.SearchCacheSize == 0 {
		opts.SearchCacheSize = DefaultSearchCacheSize
	}
	if opts.SearchCacheTTL == 0 {
		opts.SearchCacheTTL = DefaultSearchCacheTTL
	}
	if opts.RecordCacheSize == 0 {
		opts.RecordCacheSize = DefaultRecordCacheSize
	}
	if opts.RecordCacheTTL == 0 {
		opts.RecordCacheTTL = DefaultRecordCacheTTL
	}
	return &Caching{
		notifier:    opts.Notifier,
		searchCache: cache.New[string, []Match](opts.SearchCacheSize, opts.SearchCacheTTL),
		recordCache: cache.New[string, *Record](opts.RecordCacheSize, opts.RecordCacheTTL),
	}
}

func (c *Caching) Notify(ctx context.Context, message string) {
	c.notifier.Notify(ctx, message)
}

// Search serves text from the search cache, or validates it and delegates to
// fetch. Text under three runes fails fast with a user notice and no network
// call. Empty result sets are not cached.
func (c *Caching) Search(
	ctx context.Context,
	text string,
	fetch func(ctx context.Context, text string) ([]Match, error),
) ([]Match, error) {
	ctx, span := tracer.Start(ctx, "caching:Search")
	defer span.End()

	c.mu.Lock()
	cached, ok := c.searchCache.Get(text)
	c.mu.Unlock()
	if ok {
		span.SetStatus(codes.Ok, "CACHE HIT")
		return cached, nil
	}

	if utf8.RuneCountInString(text) < 3 {
		c.notifier.Notify(ctx, noticeSearchTooShort)
		return []Match{}, nil
	}

	matches, err := fetch(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}
	if len(matches) > 0 {
		c.mu.Lock()
		c.searchCache.Set(text, matches)
		c.mu.Unlock()
	}
	return matches, nil
}

// FetchByID serves id from the record cache or delegates to fetch.
func (c *Caching) FetchByID(
	ctx context.Context,
	id string,
	fetch func(ctx context.Context, id string) (*Record, error),
) (*Record, error) {
	ctx, span := tracer.Start(ctx, "caching:FetchByID")
	defer span.End()

	c.mu.Lock()
	cached, ok := c.recordCache.Get(id)
	c.mu.Unlock()
	if ok {
		span.SetStatus(codes.Ok, "CACHE HIT")
		return cached, nil
	}

	record, err := fetch(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}
	if record != nil {
		c.mu.Lock()
		c.recordCache.Set(id, record)
		c.mu.Unlock()
	}
	return record, nil
}
