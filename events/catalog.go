package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"taquilla/apiclient"
	"taquilla/models"
	"taquilla/mq"
	"taquilla/rdx"
	"taquilla/session"
)

const catalogKey = "catalog:events"

// Catalog serves the remote event list, caching the unfiltered list for ttl.
// Concurrent misses share one remote call.
type Catalog struct {
	api     *apiclient.Client
	cache   rdx.Cache
	ttl     time.Duration
	group   singleflight.Group
	emitter mq.Emitter
}

type CatalogOption func(*Catalog)

// WithEmitter announces changes made through Changed to other listeners.
func WithEmitter(e mq.Emitter) CatalogOption {
	return func(c *Catalog) { c.emitter = e }
}

func NewCatalog(api *apiclient.Client, cache rdx.Cache, ttl time.Duration, opts ...CatalogOption) *Catalog {
	c := &Catalog{api: api, cache: cache, ttl: ttl}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns the remote list for text. Only the empty query is cached.
func (c *Catalog) Events(ctx context.Context, text string) ([]models.SearchEvent, error) {
	text = strings.TrimSpace(text)
	if text != "" {
		return c.api.SearchEvents(ctx, text)
	}

	if list, ok := c.cached(ctx); ok {
		return list, nil
	}

	ch := c.group.DoChan(catalogKey, func() (any, error) {
		// the shared list is public: never fetch it with one caller's token
		fetchCtx := session.WithToken(context.WithoutCancel(ctx), "")
		list, err := c.api.SearchEvents(fetchCtx, "")
		if err != nil {
			return nil, err
		}
		c.store(fetchCtx, list)
		return list, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.SearchEvent), nil
	}
}

// Invalidate drops the cached list after an event is created, edited or removed.
func (c *Catalog) Invalidate(ctx context.Context) {
	if err := c.cache.Del(ctx, catalogKey); err != nil {
		slog.Warn("catalog invalidate", "error", err)
	}
}

// Changed invalidates the cache and broadcasts the change.
func (c *Catalog) Changed(ctx context.Context, change mq.CatalogChange) {
	c.Invalidate(ctx)
	if c.emitter == nil {
		return
	}
	if err := c.emitter.Emit(context.WithoutCancel(ctx), change); err != nil {
		slog.Warn("catalog change emit", "event", change.EventID, "error", err)
	}
}

func (c *Catalog) cached(ctx context.Context) ([]models.SearchEvent, bool) {
	raw, err := c.cache.Get(ctx, catalogKey)
	if err != nil {
		if !errors.Is(err, rdx.ErrMiss) {
			slog.Warn("catalog cache read", "error", err)
		}
		return nil, false
	}
	var list []models.SearchEvent
	if err := json.Unmarshal(raw, &list); err != nil {
		slog.Warn("catalog cache decode", "error", err)
		return nil, false
	}
	return list, true
}

func (c *Catalog) store(ctx context.Context, list []models.SearchEvent) {
	raw, err := json.Marshal(list)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, catalogKey, raw, c.ttl); err != nil {
		slog.Warn("catalog cache write", "error", err)
	}
}
