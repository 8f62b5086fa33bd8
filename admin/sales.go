package admin

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"taquilla/apiclient"
	"taquilla/events"
	"taquilla/middleware"
	"taquilla/models"
	"taquilla/search"
	"taquilla/utils"
)

type Handler struct {
	api     *apiclient.Client
	catalog *events.Catalog
}

func NewHandler(api *apiclient.Client, catalog *events.Catalog) *Handler {
	return &Handler{api: api, catalog: catalog}
}

// Summary totals a sales listing before pagination.
type Summary struct {
	Sales   int                `json:"sales"`
	Tickets int                `json:"tickets"`
	Revenue map[string]float64 `json:"revenue"`
}

type salesResponse struct {
	search.Page[models.Sale]
	Summary Summary `json:"summary"`
}

func summarize(sales []models.Sale) Summary {
	s := Summary{Revenue: map[string]float64{}}
	for _, sale := range sales {
		if sale.Status == models.SaleCancelled {
			continue
		}
		s.Sales++
		s.Tickets += sale.Quantity
		s.Revenue[sale.Currency] += sale.Total
	}
	return s
}

func validSaleStatus(s models.SaleStatus) bool {
	switch s {
	case "", models.SalePaid, models.SalePending, models.SaleCancelled, models.SaleValidated:
		return true
	}
	return false
}

// ListSales handles GET /api/backoffice/sales. Sellers only see their own sales.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	qs := r.URL.Query()
	q := apiclient.SalesQuery{
		EventID: strings.TrimSpace(qs.Get("eventId")),
		Status:  models.SaleStatus(strings.ToUpper(strings.TrimSpace(qs.Get("status")))),
	}
	if q.EventID != "" && !utils.ValidUUID(q.EventID) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidID, "Identificador inválido")
		return
	}
	if !validSaleStatus(q.Status) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidFilter, "Estado inválido")
		return
	}
	if c := middleware.ClaimsFromContext(r.Context()); c != nil && !c.HasRole(models.RoleAdmin) {
		q.VendorID = c.UserID
	} else {
		q.VendorID = strings.TrimSpace(qs.Get("vendorId"))
	}

	sales, err := h.api.ListSales(r.Context(), q)
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}

	slices.SortStableFunc(sales, func(a, b models.Sale) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	page, _ := strconv.Atoi(qs.Get("page"))
	size, _ := strconv.Atoi(qs.Get("pageSize"))
	if size > search.MaxPageSize {
		size = search.MaxPageSize
	}
	utils.RespondWithJSON(w, http.StatusOK, salesResponse{
		Page:    search.Paginate(sales, page, size),
		Summary: summarize(sales),
	})
}

// GetSale handles GET /api/backoffice/sales/:saleid
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("saleid")
	if !utils.ValidUUID(id) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidID, "Identificador inválido")
		return
	}
	sale, err := h.api.GetSale(r.Context(), id)
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, sale)
}

// ListVendors handles GET /api/backoffice/admin/vendors
func (h *Handler) ListVendors(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	vendors, err := h.api.ListVendors(r.Context())
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}
	if vendors == nil {
		vendors = []models.Vendor{}
	}
	slices.SortFunc(vendors, func(a, b models.Vendor) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	utils.RespondWithJSON(w, http.StatusOK, vendors)
}
