// Package mq broadcasts catalog changes between gateway instances so open
// live search channels can refresh.
package mq

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const CatalogChannel = "catalog-events"

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

type CatalogChange struct {
	EventID string `json:"eventId"`
	Action  string `json:"action"`
}

type Emitter interface {
	Emit(ctx context.Context, change CatalogChange) error
	// Listen calls fn for every change until ctx is done.
	Listen(ctx context.Context, fn func(CatalogChange)) error
}

type RedisEmitter struct {
	conn redis.UniversalClient
}

func NewRedisEmitter(conn redis.UniversalClient) *RedisEmitter {
	return &RedisEmitter{conn: conn}
}

func (e *RedisEmitter) Emit(ctx context.Context, change CatalogChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return e.conn.Publish(ctx, CatalogChannel, data).Err()
}

func (e *RedisEmitter) Listen(ctx context.Context, fn func(CatalogChange)) error {
	sub := e.conn.Subscribe(ctx, CatalogChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var change CatalogChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				slog.Warn("catalog change decode", "error", err)
				continue
			}
			fn(change)
		}
	}
}

// LocalEmitter delivers changes to listeners in the same process.
type LocalEmitter struct {
	mu        sync.Mutex
	next      int
	listeners map[int]func(CatalogChange)
}

func NewLocalEmitter() *LocalEmitter {
	return &LocalEmitter{listeners: make(map[int]func(CatalogChange))}
}

func (e *LocalEmitter) Emit(_ context.Context, change CatalogChange) error {
	e.mu.Lock()
	fns := make([]func(CatalogChange), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		go fn(change)
	}
	return nil
}

func (e *LocalEmitter) Listen(ctx context.Context, fn func(CatalogChange)) error {
	e.mu.Lock()
	id := e.next
	e.next++
	e.listeners[id] = fn
	e.mu.Unlock()

	<-ctx.Done()

	e.mu.Lock()
	delete(e.listeners, id)
	e.mu.Unlock()
	return nil
}
