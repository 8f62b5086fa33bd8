package favorites

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"taquilla/middleware"
	"taquilla/utils"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type listResponse struct {
	IDs []string `json:"ids"`
}

// GET /api/favorites
func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ids, err := h.store.List(r.Context(), middleware.Owner(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, listResponse{IDs: ids})
}

// PUT /api/favorites/:eventid
func (h *Handler) Add(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("eventid")
	if !utils.ValidUUID(id) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidID, "Identificador inválido")
		return
	}
	if err := h.store.Add(r.Context(), middleware.Owner(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/favorites/:eventid
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("eventid")
	if !utils.ValidUUID(id) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidID, "Identificador inválido")
		return
	}
	if err := h.store.Remove(r.Context(), middleware.Owner(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNoOwner) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidBody, "Falta la cookie de visitante")
		return
	}
	slog.Error("favorites store", "path", r.URL.Path, "error", err)
	utils.RespondWithError(w, http.StatusInternalServerError, utils.CodeInternal, "No pudimos guardar tus favoritos")
}
