// Package live serves the storefront's search-as-you-type channel over a
// websocket. Each message is a browse query string; a newer query cancels the
// one still running and only the latest result is ever sent back.
package live

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"taquilla/events"
	"taquilla/favorites"
	"taquilla/middleware"
	"taquilla/models"
	"taquilla/mq"
	"taquilla/search"
	"taquilla/utils"
)

const (
	maxMessageSize = 4 << 10
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
)

type Handler struct {
	catalog   *events.Catalog
	favorites favorites.Store
	upgrader  websocket.Upgrader

	mu    sync.Mutex
	conns map[*conn]struct{}
}

// NewHandler accepts upgrades from the listed origins. An empty list or "*"
// accepts any origin.
func NewHandler(catalog *events.Catalog, favs favorites.Store, origins []string) *Handler {
	h := &Handler{catalog: catalog, favorites: favs, conns: make(map[*conn]struct{})}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(origins) == 0 || slices.Contains(origins, "*") {
				return true
			}
			return slices.Contains(origins, origin)
		},
	}
	return h
}

type response struct {
	Generation uint64                           `json:"generation"`
	Query      string                           `json:"query"`
	Result     *search.Page[models.SearchEvent] `json:"result,omitempty"`
	Error      string                           `json:"error,omitempty"`
	Code       string                           `json:"code,omitempty"`
	Refresh    bool                             `json:"refresh,omitempty"`
}

type conn struct {
	ws    *websocket.Conn
	ctx   context.Context
	mu    sync.Mutex
	sup   search.Supersede
	owner string

	qmu  sync.Mutex
	last *string
}

func (c *conn) remember(raw string) {
	c.qmu.Lock()
	c.last = &raw
	c.qmu.Unlock()
}

func (c *conn) lastQuery() (string, bool) {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if c.last == nil {
		return "", false
	}
	return *c.last, true
}

// writeCurrent writes v only while gen is the latest search. The check
// shares the write lock so a superseded result cannot slip in behind a
// newer one.
func (c *conn) writeCurrent(gen uint64, v any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sup.Current(gen) {
		return false, nil
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return true, c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Search handles GET /ws/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &conn{ws: ws, ctx: ctx, owner: middleware.Owner(r.Context())}
	defer c.sup.Stop()
	h.track(c)
	defer h.untrack(c)

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.keepAlive(ctx, c)

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("live search read", "error", err)
			}
			return
		}
		raw := strings.TrimPrefix(strings.TrimSpace(string(msg)), "?")
		c.remember(raw)
		h.start(c, raw, false)
	}
}

func (h *Handler) start(c *conn, raw string, refresh bool) {
	runCtx, gen := c.sup.Begin(c.ctx)
	go h.run(runCtx, c, gen, raw, refresh)
}

// Follow re-runs the latest query of every open channel whenever the
// catalog changes. It blocks until ctx is done.
func (h *Handler) Follow(ctx context.Context, e mq.Emitter) error {
	return e.Listen(ctx, h.refresh)
}

func (h *Handler) refresh(change mq.CatalogChange) {
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	slog.Debug("catalog changed; refreshing live searches", "event", change.EventID, "action", change.Action, "channels", len(conns))
	for _, c := range conns {
		if raw, ok := c.lastQuery(); ok {
			h.start(c, raw, true)
		}
	}
}

func (h *Handler) track(c *conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Handler) untrack(c *conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// Shutdown sends a going-away frame to every open channel and closes it.
// http.Server.Shutdown does not reach hijacked connections.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for c := range h.conns {
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = c.ws.Close()
	}
}

func (h *Handler) keepAlive(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func (h *Handler) run(ctx context.Context, c *conn, gen uint64, raw string, refresh bool) {
	defer c.sup.Finish(gen)

	values, err := url.ParseQuery(raw)
	var q search.Query
	if err == nil {
		q, err = search.ParseQuery(values)
	}
	if err != nil {
		h.send(c, gen, response{Generation: gen, Query: raw, Error: "Filtro inválido", Code: utils.CodeInvalidFilter})
		return
	}

	list, err := h.catalog.Events(ctx, values.Get("q"))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("live search", "error", err)
		h.send(c, gen, response{Generation: gen, Query: raw, Error: "No pudimos completar la búsqueda", Code: utils.CodeUpstream})
		return
	}

	var saved search.IDSet
	if q.Filters.SavedOnly && h.favorites != nil && c.owner != "" {
		ids, err := h.favorites.List(ctx, c.owner)
		if err != nil {
			slog.Warn("live search favorites", "error", err)
		}
		saved = search.NewIDSet(ids...)
	}

	page := search.Run(list, q, saved)
	h.send(c, gen, response{Generation: gen, Query: raw, Result: &page, Refresh: refresh})
}

// send drops results that a newer query has superseded.
func (h *Handler) send(c *conn, gen uint64, res response) {
	if _, err := c.writeCurrent(gen, res); err != nil {
		slog.Debug("live search write", "error", err)
	}
}
