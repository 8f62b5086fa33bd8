package checkout

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"taquilla/apiclient"
	"taquilla/models"
	"taquilla/utils"
)

const maxBody = 64 << 10

type Handler struct {
	api      *apiclient.Client
	payments PaymentSimulator
	schema   *jsonschema.Schema
	now      func() time.Time
}

func NewHandler(api *apiclient.Client, payments PaymentSimulator) (*Handler, error) {
	schema, err := compileSessionSchema()
	if err != nil {
		return nil, err
	}
	return &Handler{api: api, payments: payments, schema: schema, now: time.Now}, nil
}

// CreateSession handles POST /api/checkout/sessions. Retries are safe because
// the remote API deduplicates on the idempotency key.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil || len(raw) > maxBody {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidBody, "Solicitud inválida")
		return
	}
	if err := validate(h.schema, raw); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidBody, err.Error())
		return
	}

	var in models.CheckoutRequest
	if err := utils.DecodeJSON(requestWithBody(r, raw), &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidBody, "Solicitud inválida")
		return
	}
	in.Buyer.Email = strings.ToLower(strings.TrimSpace(in.Buyer.Email))

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = uuid.NewString()
	}

	sess, err := h.api.CreateCheckoutSession(r.Context(), in, key)
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}
	w.Header().Set("Idempotency-Key", key)
	utils.RespondWithJSON(w, http.StatusCreated, sess)
}

// GetSession handles GET /api/checkout/sessions/:sessionid
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("sessionid")
	if !utils.ValidUUID(id) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidID, "Identificador inválido")
		return
	}
	sess, err := h.api.GetCheckoutSession(r.Context(), id)
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, sess)
}

// Pay handles POST /api/checkout/sessions/:sessionid/pay
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("sessionid")
	if !utils.ValidUUID(id) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidID, "Identificador inválido")
		return
	}
	sess, err := h.api.GetCheckoutSession(r.Context(), id)
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}

	if !sess.ExpiresAt.IsZero() && !h.now().Before(sess.ExpiresAt) {
		sess.Status = models.CheckoutExpired
	}
	if sess.Status != models.CheckoutOpen {
		utils.RespondWithJSON(w, http.StatusConflict, utils.ErrorResponse{
			Error: "La sesión de compra ya no admite pagos",
			Code:  "session_" + strings.ToLower(string(sess.Status)),
		})
		return
	}

	res, err := h.payments.Pay(r.Context(), sess)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		slog.Error("payment simulation", "session", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, utils.CodeInternal, "No pudimos procesar el pago")
		return
	}
	slog.Info("checkout payment", "session", id, "status", res.Status, "reference", res.Reference)
	utils.RespondWithJSON(w, http.StatusOK, res)
}

func requestWithBody(r *http.Request, raw []byte) *http.Request {
	clone := r.Clone(r.Context())
	clone.Body = io.NopCloser(strings.NewReader(string(raw)))
	return clone
}
