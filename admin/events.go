package admin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"taquilla/models"
	"taquilla/mq"
	"taquilla/search"
	"taquilla/utils"
)

var (
	ErrNameRequired  = errors.New("name is required")
	ErrInvalidDate   = errors.New("date is not a valid ISO date")
	ErrInvalidStatus = errors.New("status is not valid")
	ErrNegativePrice = errors.New("ticket prices must not be negative")
	ErrInvalidMinAge = errors.New("minAge must be between 0 and 99")
)

func validateEvent(in *models.EventInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)
	if in.Name == "" {
		return ErrNameRequired
	}
	if _, ok := search.ParseEventDate(in.Date); !ok {
		return ErrInvalidDate
	}
	switch in.Status {
	case "", models.StatusActive, models.StatusInactive, models.StatusSoldOut:
	default:
		return ErrInvalidStatus
	}
	if in.MinAge != nil && (*in.MinAge < 0 || *in.MinAge > 99) {
		return ErrInvalidMinAge
	}
	for _, tt := range in.TicketTypes {
		if tt.Price < 0 {
			return ErrNegativePrice
		}
	}
	return nil
}

func (h *Handler) decodeEvent(w http.ResponseWriter, r *http.Request) (models.EventInput, bool) {
	var in models.EventInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidBody, "Solicitud inválida")
		return in, false
	}
	if err := validateEvent(&in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidBody, err.Error())
		return in, false
	}
	return in, true
}

// CreateEvent handles POST /api/backoffice/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	in, ok := h.decodeEvent(w, r)
	if !ok {
		return
	}
	ev, err := h.api.CreateEvent(r.Context(), in)
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}
	h.catalog.Changed(r.Context(), mq.CatalogChange{EventID: ev.ID, Action: mq.ActionCreated})
	utils.RespondWithJSON(w, http.StatusCreated, ev)
}

// UpdateEvent handles PUT /api/backoffice/events/:eventid
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("eventid")
	if !utils.ValidUUID(id) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidID, "Identificador inválido")
		return
	}
	in, ok := h.decodeEvent(w, r)
	if !ok {
		return
	}
	ev, err := h.api.UpdateEvent(r.Context(), id, in)
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}
	h.catalog.Changed(r.Context(), mq.CatalogChange{EventID: id, Action: mq.ActionUpdated})
	utils.RespondWithJSON(w, http.StatusOK, ev)
}

// DeleteEvent handles DELETE /api/backoffice/events/:eventid
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("eventid")
	if !utils.ValidUUID(id) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidID, "Identificador inválido")
		return
	}
	if err := h.api.DeleteEvent(r.Context(), id); err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}
	h.catalog.Changed(r.Context(), mq.CatalogChange{EventID: id, Action: mq.ActionDeleted})
	w.WriteHeader(http.StatusNoContent)
}
