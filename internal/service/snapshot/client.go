// Package snapshot reads pre-computed store comparison options published by
// the scraper backend as static JSON documents.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"PriceHunter/internal/domain/models"
	domrepo "PriceHunter/internal/domain/repository"
	"PriceHunter/pkg/cache"
	pkghttp "PriceHunter/pkg/http"
	"PriceHunter/pkg/logger"
	"PriceHunter/pkg/util"
)

// Client implements OptionsSource over HTTP with a read-through cache. A
// missing snapshot document is a normal condition (the scraper has simply
// not published options for that query yet) and yields an empty slice.
type Client struct {
	http    *pkghttp.Client
	cache   cache.Service
	baseURL string
	ttl     time.Duration
	logger  *logger.Logger
}

// New creates a snapshot client. cacheSvc may be nil to disable caching.
func New(baseURL string, timeout, ttl time.Duration, cacheSvc cache.Service, lgr *logger.Logger) domrepo.OptionsSource {
	return &Client{
		http:    pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		cache:   cacheSvc,
		baseURL: baseURL,
		ttl:     ttl,
		logger:  lgr,
	}
}

// FetchStoreOptions returns up to limit comparison options for a query,
// optionally filtered to one store.
func (c *Client) FetchStoreOptions(ctx context.Context, query string, store models.Store, limit int) ([]models.StoreOption, error) {
	slug := util.Slugify(query)
	if slug == "" {
		return []models.StoreOption{}, nil
	}

	all, err := c.load(ctx, slug)
	if err != nil {
		return nil, err
	}

	out := make([]models.StoreOption, 0, limit)
	for _, opt := range all {
		if store != "" && opt.Store != store {
			continue
		}
		out = append(out, opt)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (c *Client) load(ctx context.Context, slug string) ([]models.StoreOption, error) {
	key := cache.GenerateKey("snapshot:options", slug)

	if c.cache != nil {
		var cached []models.StoreOption
		if err := c.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn("snapshot cache read failed",
				logger.String("slug", slug),
				logger.Error(err))
		}
	}

	opts, err := c.fetch(ctx, slug)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, opts, c.ttl); err != nil {
			c.logger.Warn("snapshot cache write failed",
				logger.String("slug", slug),
				logger.Error(err))
		}
	}
	return opts, nil
}

func (c *Client) fetch(ctx context.Context, slug string) ([]models.StoreOption, error) {
	url := fmt.Sprintf("%s/store-options/%s.json", c.baseURL, slug)

	resp, err := c.http.SendRequest(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    url,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return []models.StoreOption{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("snapshot status %d: %s", resp.StatusCode, body)
	}

	var opts []models.StoreOption
	if err := json.NewDecoder(resp.Body).Decode(&opts); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if opts == nil {
		opts = []models.StoreOption{}
	}
	return opts, nil
}
