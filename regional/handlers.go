package regional

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"taquilla/middleware"
	"taquilla/models"
	"taquilla/utils"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// FormatterFor loads the caller's config, falling back to defaults when the
// store is unavailable.
func (h *Handler) FormatterFor(ctx context.Context) *Formatter {
	cfg, err := h.store.Get(ctx, middleware.Owner(ctx))
	if err != nil {
		slog.Warn("regional config unavailable", "error", err)
		cfg = models.DefaultRegionalConfig()
	}
	return NewFormatter(cfg)
}

// GET /api/regional
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	cfg, err := h.store.Get(r.Context(), middleware.Owner(r.Context()))
	if err != nil {
		slog.Error("load regional config", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, utils.CodeInternal, "No pudimos cargar tu configuración")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, cfg)
}

// PUT /api/regional
func (h *Handler) Put(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var cfg models.RegionalConfig
	if err := utils.DecodeJSON(r, &cfg); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidBody, "Solicitud inválida")
		return
	}
	if err := Validate(&cfg); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidBody, err.Error())
		return
	}
	owner := middleware.Owner(r.Context())
	if owner == "" {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidBody, "Falta la cookie de visitante")
		return
	}
	if err := h.store.Put(r.Context(), owner, cfg); err != nil {
		slog.Error("save regional config", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, utils.CodeInternal, "No pudimos guardar tu configuración")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, cfg)
}
