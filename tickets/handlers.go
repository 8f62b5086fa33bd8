package tickets

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"taquilla/apiclient"
	"taquilla/models"
	"taquilla/utils"
)

type Handler struct {
	api    *apiclient.Client
	signer *Signer
	now    func() time.Time
}

func NewHandler(api *apiclient.Client, signer *Signer) *Handler {
	return &Handler{api: api, signer: signer, now: time.Now}
}

type scanRequest struct {
	Payload string `json:"payload"`
}

// Check is the read-only admission status of a sale.
type Check struct {
	Sale       models.Sale `json:"sale"`
	Admissible bool        `json:"admissible"`
	Message    string      `json:"message,omitempty"`
}

func check(sale models.Sale) Check {
	c := Check{Sale: sale}
	switch sale.Status {
	case models.SalePaid:
		c.Admissible = true
	case models.SaleValidated:
		c.Message = "La entrada ya fue usada"
	case models.SalePending:
		c.Message = "El pago aún no se confirma"
	default:
		c.Message = "La venta no es válida"
	}
	return c
}

// Scan handles POST /api/backoffice/tickets/scan
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req scanRequest
	if err := utils.DecodeJSON(r, &req); err != nil || req.Payload == "" {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidBody, "Solicitud inválida")
		return
	}

	saleID, eventID, err := h.signer.VerifyQRPayload(req.Payload, h.now())
	if err != nil {
		code := "invalid_qr"
		if errors.Is(err, ErrExpiredQR) {
			code = "expired_qr"
		}
		slog.Info("ticket scan rejected", "reason", err)
		utils.RespondWithError(w, http.StatusUnprocessableEntity, code, "Código QR no válido")
		return
	}

	sale, err := h.api.GetSale(r.Context(), saleID)
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}
	if sale.EventID != eventID {
		slog.Warn("ticket scan event mismatch", "sale", saleID, "qrEvent", eventID, "saleEvent", sale.EventID)
		utils.RespondWithError(w, http.StatusConflict, "event_mismatch", "La entrada es de otro evento")
		return
	}
	if c := check(sale); !c.Admissible {
		utils.RespondWithJSON(w, http.StatusConflict, c)
		return
	}

	res, err := h.api.ValidateSale(r.Context(), saleID)
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, res)
}

// CheckSale handles GET /api/backoffice/tickets/:saleid/validate
func (h *Handler) CheckSale(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sale, ok := h.loadSale(w, r, ps)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, check(sale))
}

// ValidateSale handles POST /api/backoffice/tickets/:saleid/validate for
// manual admission without a QR code.
func (h *Handler) ValidateSale(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("saleid")
	if !utils.ValidUUID(id) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidID, "Identificador inválido")
		return
	}
	res, err := h.api.ValidateSale(r.Context(), id)
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, res)
}

// Print handles GET /api/backoffice/tickets/:saleid/print. The QR on the
// PDF is a printed code, valid for PrintedValidity rather than the scan drift.
func (h *Handler) Print(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sale, ok := h.loadSale(w, r, ps)
	if !ok {
		return
	}
	if sale.Status != models.SalePaid && sale.Status != models.SaleValidated {
		utils.RespondWithError(w, http.StatusConflict, "sale_not_paid", "La venta no está pagada")
		return
	}

	now := h.now()
	pdf, err := PrintSale(sale, h.signer.GeneratePrintedPayload(sale.ID, sale.EventID, now), now)
	if err != nil {
		slog.Error("print ticket", "sale", sale.ID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, utils.CodeInternal, "No pudimos generar la entrada")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=ticket-"+sale.ID+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) loadSale(w http.ResponseWriter, r *http.Request, ps httprouter.Params) (models.Sale, bool) {
	id := ps.ByName("saleid")
	if !utils.ValidUUID(id) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidID, "Identificador inválido")
		return models.Sale{}, false
	}
	sale, err := h.api.GetSale(r.Context(), id)
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return models.Sale{}, false
	}
	return sale, true
}
