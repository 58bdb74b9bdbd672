package source

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/apperrors"
	"github.com/spigell/jobradar/internal/cache"
	"github.com/spigell/jobradar/internal/httpclient"
	"github.com/spigell/jobradar/internal/logger"
)

// Call is one cacheable provider request.
type Call struct {
	Provider string
	Criteria Criteria
	Page     int
	Request  httpclient.Request
	// Decode checks a body before it is returned or cached. A cached body it
	// rejects is evicted and fetched again; a fresh body it rejects is never
	// cached.
	Decode func(body []byte) error
}

func (c Call) decode(body []byte) error {
	if c.Decode == nil {
		return nil
	}
	return c.Decode(body)
}

// Fetcher resolves calls from the shared cache and falls back to the
// retrying client, storing successful and decodable bodies for TTL.
type Fetcher struct {
	cache  cache.Store
	client *httpclient.Client
	ttl    time.Duration
	logger *zap.Logger
	tracer trace.Tracer
}

func NewFetcher(store cache.Store, client *httpclient.Client, ttl time.Duration, log *zap.Logger) *Fetcher {
	if ttl <= 0 {
		ttl = cache.ListingTTL
	}
	return &Fetcher{
		cache:  store,
		client: client,
		ttl:    ttl,
		logger: logger.OrNop(log),
		tracer: otel.Tracer("github.com/spigell/jobradar/internal/source"),
	}
}

// Fetch returns the response body for the call. Cache backend failures are
// logged and treated as misses.
func (f *Fetcher) Fetch(ctx context.Context, call Call) ([]byte, error) {
	key := call.Criteria.Fingerprint(call.Provider, call.Page)
	log := logger.WithFields(f.logger, logger.SourceFields(call.Provider, key)...)

	ctx, span := f.tracer.Start(ctx, "source.fetch", trace.WithAttributes(
		attribute.String("provider", call.Provider),
		attribute.Int("page", call.Page),
	))
	defer span.End()

	if f.cache != nil {
		body, ok, err := f.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("cache lookup failed", zap.Error(err))
		case ok:
			decodeErr := call.decode(body)
			if decodeErr == nil {
				span.SetAttributes(attribute.Bool("cache_hit", true))
				log.Debug("cache hit", zap.Int("page", call.Page))
				return body, nil
			}
			log.Warn("cached response is unreadable, fetching again", zap.Error(decodeErr))
			if err := f.cache.Delete(ctx, key); err != nil {
				log.Warn("cache delete failed", zap.Error(err))
			}
		}
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	resp, err := f.client.Do(ctx, call.Request)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var de *apperrors.DomainError
		if errors.As(err, &de) {
			return nil, de.WithProvider(call.Provider).WithFingerprint(key)
		}
		return nil, err
	}

	if err := call.decode(resp.Body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var de *apperrors.DomainError
		if errors.As(err, &de) {
			return nil, de.WithProvider(call.Provider).WithFingerprint(key)
		}
		return nil, apperrors.Fatal("decode response", err).WithProvider(call.Provider).WithFingerprint(key)
	}

	if f.cache != nil {
		if err := f.cache.Put(ctx, key, resp.Body, f.ttl); err != nil {
			log.Warn("cache store failed", zap.Error(err))
		}
	}

	return resp.Body, nil
}
