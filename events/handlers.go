package events

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/julienschmidt/httprouter"

	"taquilla/apiclient"
	"taquilla/favorites"
	"taquilla/middleware"
	"taquilla/models"
	"taquilla/regional"
	"taquilla/search"
	"taquilla/utils"
)

type Handler struct {
	catalog   *Catalog
	api       *apiclient.Client
	favorites favorites.Store
	regional  *regional.Handler
	staticDir string
}

func NewHandler(catalog *Catalog, api *apiclient.Client, favs favorites.Store, reg *regional.Handler, staticDir string) *Handler {
	return &Handler{catalog: catalog, api: api, favorites: favs, regional: reg, staticDir: staticDir}
}

// Item is a SearchEvent decorated for the storefront.
type Item struct {
	models.SearchEvent
	Category       string `json:"category"`
	FormattedPrice string `json:"formattedPrice"`
	FormattedDate  string `json:"formattedDate"`
	Saved          bool   `json:"saved"`
}

func decorate(page search.Page[models.SearchEvent], f *regional.Formatter, saved search.IDSet) search.Page[Item] {
	items := make([]Item, len(page.Items))
	for i, ev := range page.Items {
		items[i] = Item{
			SearchEvent:    ev,
			Category:       search.DeriveCategory(ev.Name),
			FormattedPrice: f.Price(ev.Price, ev.Currency),
			FormattedDate:  f.Date(ev.Date, search.ParseEventDate),
			Saved:          saved.Has(ev.ID),
		}
	}
	return search.Page[Item]{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
}

// List handles GET /api/events
func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q, err := search.ParseQuery(r.URL.Query())
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidFilter, err.Error())
		return
	}

	list, err := h.catalog.Events(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}

	saved := h.savedIDs(r)
	page := search.Run(list, q, saved)
	utils.RespondWithJSON(w, http.StatusOK, decorate(page, h.regional.FormatterFor(r.Context()), saved))
}

// Facets handles GET /api/events/facets
func (h *Handler) Facets(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.catalog.Events(r.Context(), "")
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}
	visible := search.ApplyFilters(list, search.Filters{}, nil)
	utils.RespondWithJSON(w, http.StatusOK, search.BuildFacets(visible))
}

// Detail handles GET /api/events/event/:eventid
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("eventid")
	if !utils.ValidUUID(id) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidID, "Identificador inválido")
		return
	}
	ev, err := h.api.GetEvent(r.Context(), id)
	if err != nil {
		utils.WriteAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, ev)
}

// Page handles GET /eventos/:eventid. Bad ids go back to the home page; good
// ones get the storefront shell.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !utils.ValidUUID(ps.ByName("eventid")) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	index := filepath.Join(h.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("storefront shell", "error", err)
		}
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, index)
}

// savedIDs never fails the request; a broken store only hides saved marks.
func (h *Handler) savedIDs(r *http.Request) search.IDSet {
	owner := middleware.Owner(r.Context())
	if owner == "" || h.favorites == nil {
		return nil
	}
	ids, err := h.favorites.List(r.Context(), owner)
	if err != nil {
		slog.Warn("favorites unavailable", "error", err)
		return nil
	}
	return search.NewIDSet(ids...)
}
