package banners

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/julienschmidt/httprouter"

	"taquilla/apiclient"
	"taquilla/events"
	"taquilla/rdx"
	"taquilla/session"
	"taquilla/utils"
)

const (
	DefaultWidth = 480
	MinWidth     = 64
	MaxWidth     = 1280
	cacheTTL     = time.Hour
)

var ErrInvalidWidth = errors.New("invalid width")

// ParseWidth reads w, clamping it into [MinWidth, MaxWidth].
func ParseWidth(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultWidth, nil
	}
	w, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWidth, raw)
	}
	return min(max(w, MinWidth), MaxWidth), nil
}

// Thumbnail scales src to width (never upscaling) and encodes it as JPEG.
func Thumbnail(src []byte, width int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(82)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

type Handler struct {
	api     *apiclient.Client
	catalog *events.Catalog
	cache   rdx.Cache
}

func NewHandler(api *apiclient.Client, catalog *events.Catalog, cache rdx.Cache) *Handler {
	return &Handler{api: api, catalog: catalog, cache: cache}
}

// Serve handles GET /api/banners/:eventid
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("eventid")
	if !utils.ValidUUID(id) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidID, "Identificador inválido")
		return
	}
	width, err := ParseWidth(r.URL.Query().Get("w"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidFilter, err.Error())
		return
	}

	key := fmt.Sprintf("banner:%s:%d", id, width)
	if cached, err := h.cache.Get(r.Context(), key); err == nil {
		writeJPEG(w, cached)
		return
	}

	bannerURL, err := h.bannerURL(r, id)
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}
	if bannerURL == "" {
		utils.RespondWithError(w, http.StatusNotFound, utils.CodeNotFound, "El evento no tiene imagen")
		return
	}

	// Banner hosts are third parties; never send them the session token.
	raw, _, err := h.api.FetchBytes(session.WithToken(r.Context(), ""), bannerURL)
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}
	thumb, err := Thumbnail(raw, width)
	if err != nil {
		slog.Warn("banner thumbnail", "event", id, "error", err)
		utils.RespondWithError(w, http.StatusBadGateway, utils.CodeUpstream, "Imagen no disponible")
		return
	}
	if err := h.cache.Set(r.Context(), key, thumb, cacheTTL); err != nil {
		slog.Warn("banner cache write", "error", err)
	}
	writeJPEG(w, thumb)
}

func (h *Handler) bannerURL(r *http.Request, id string) (string, error) {
	if list, err := h.catalog.Events(r.Context(), ""); err == nil {
		for _, ev := range list {
			if ev.ID == id {
				return ev.BannerURL, nil
			}
		}
	}
	ev, err := h.api.GetEvent(r.Context(), id)
	if err != nil {
		return "", err
	}
	return ev.BannerURL, nil
}

func writeJPEG(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
