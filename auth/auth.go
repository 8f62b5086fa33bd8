package auth

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"taquilla/apiclient"
	"taquilla/middleware"
	"taquilla/models"
	"taquilla/session"
	"taquilla/utils"
)

type Handler struct {
	api    *apiclient.Client
	auth   *middleware.Auth
	sealer *session.Sealer
}

func NewHandler(api *apiclient.Client, auth *middleware.Auth, sealer *session.Sealer) *Handler {
	return &Handler{api: api, auth: auth, sealer: sealer}
}

type meResponse struct {
	UserID   string   `json:"userId"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// Login handles POST /api/auth/login. The remote token goes into the sealed
// cookie and is never returned to the browser.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var creds models.Credentials
	if err := utils.DecodeJSON(r, &creds); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidBody, "Solicitud inválida")
		return
	}
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidBody, "Correo y contraseña son obligatorios")
		return
	}

	resp, err := h.api.Login(r.Context(), creds)
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}

	claims, err := h.auth.ValidateJWT(resp.Token)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadGateway, utils.CodeUpstream, "No pudimos iniciar sesión")
		return
	}
	if err := h.sealer.SetCookie(w, resp.Token); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, utils.CodeInternal, "No pudimos iniciar sesión")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, meResponse{UserID: claims.UserID, Username: claims.Username, Roles: claims.Role})
}

// Logout handles POST /api/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	h.sealer.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me; it expects Authenticate in front of it.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	c := middleware.ClaimsFromContext(r.Context())
	if c == nil {
		utils.RespondWithError(w, http.StatusUnauthorized, utils.CodeUnauthenticated, "Inicia sesión para continuar")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, meResponse{UserID: c.UserID, Username: c.Username, Roles: c.Role})
}
