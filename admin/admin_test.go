package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taquilla/apiclient"
	"taquilla/events"
	"taquilla/middleware"
	"taquilla/models"
	"taquilla/mq"
	"taquilla/rdx"
)

const eventID = "0b5e7c4e-3c1f-4a8e-9a57-0d0f7e2f6a11"

type fakeAPI struct {
	mu      sync.Mutex
	queries []url.Values
	methods []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.queries = append(f.queries, r.URL.Query())
	f.methods = append(f.methods, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	switch {
	case r.URL.Path == "/sales":
		_ = json.NewEncoder(w).Encode([]models.Sale{
			{ID: "a", Quantity: 2, Total: 100, Currency: "COP", Status: models.SalePaid, CreatedAt: base},
			{ID: "b", Quantity: 1, Total: 50, Currency: "COP", Status: models.SaleCancelled, CreatedAt: base.Add(time.Hour)},
			{ID: "c", Quantity: 3, Total: 30, Currency: "USD", Status: models.SaleValidated, CreatedAt: base.Add(2 * time.Hour)},
		})
	case r.URL.Path == "/vendors":
		_ = json.NewEncoder(w).Encode([]models.Vendor{{ID: "2", Name: "zeta"}, {ID: "1", Name: "Alfa"}})
	case r.URL.Path == "/events" && r.Method == http.MethodPost:
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.EventDetail{SearchEvent: models.SearchEvent{ID: eventID}})
	case r.URL.Path == "/events/"+eventID && r.Method == http.MethodPut:
		_ = json.NewEncoder(w).Encode(models.EventDetail{SearchEvent: models.SearchEvent{ID: eventID}})
	case r.URL.Path == "/events/"+eventID && r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/events/search":
		_ = json.NewEncoder(w).Encode([]models.SearchEvent{})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeAPI) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.methods {
		if m == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) lastQuery() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func setup(t *testing.T) (*httprouter.Router, *fakeAPI, *events.Catalog) {
	t.Helper()
	fake := &fakeAPI{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	api := apiclient.New(srv.URL)
	catalog := events.NewCatalog(api, rdx.NewMemoryCache(), time.Hour)
	h := NewHandler(api, catalog)

	router := httprouter.New()
	router.GET("/api/backoffice/sales", h.ListSales)
	router.GET("/api/backoffice/sales/:saleid", h.GetSale)
	router.GET("/api/backoffice/admin/vendors", h.ListVendors)
	router.POST("/api/backoffice/events", h.CreateEvent)
	router.PUT("/api/backoffice/events/:eventid", h.UpdateEvent)
	router.DELETE("/api/backoffice/events/:eventid", h.DeleteEvent)
	return router, fake, catalog
}

func request(router http.Handler, method, path, body string, claims *middleware.Claims) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if claims != nil {
		r = r.WithContext(middleware.WithClaims(r.Context(), claims))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	return rec
}

func TestListSalesForSeller(t *testing.T) {
	router, fake, _ := setup(t)
	seller := &middleware.Claims{UserID: "v-9", Role: []string{"SELLER"}}

	rec := request(router, http.MethodGet, "/api/backoffice/sales?status=paid&pageSize=2&vendorId=other", "", seller)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v-9", fake.lastQuery().Get("vendorId"))
	assert.Equal(t, "PAID", fake.lastQuery().Get("status"))

	var body struct {
		Items      []models.Sale `json:"items"`
		Total      int           `json:"total"`
		TotalPages int           `json:"totalPages"`
		Summary    Summary       `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 3, body.Total)
	assert.Equal(t, 2, body.TotalPages)
	require.Len(t, body.Items, 2)
	assert.Equal(t, "c", body.Items[0].ID)
	assert.Equal(t, 2, body.Summary.Sales)
	assert.Equal(t, 5, body.Summary.Tickets)
	assert.Equal(t, 100.0, body.Summary.Revenue["COP"])
}

func TestListSalesForAdminKeepsVendorFilter(t *testing.T) {
	router, fake, _ := setup(t)
	admin := &middleware.Claims{UserID: "root", Role: []string{"ADMIN"}}
	rec := request(router, http.MethodGet, "/api/backoffice/sales?vendorId=v-1", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v-1", fake.lastQuery().Get("vendorId"))
}

func TestListSalesValidation(t *testing.T) {
	router, _, _ := setup(t)
	assert.Equal(t, http.StatusBadRequest, request(router, http.MethodGet, "/api/backoffice/sales?eventId=x", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, request(router, http.MethodGet, "/api/backoffice/sales?status=LOST", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, request(router, http.MethodGet, "/api/backoffice/sales/nope", "", nil).Code)
}

func TestVendorsSorted(t *testing.T) {
	router, _, _ := setup(t)
	rec := request(router, http.MethodGet, "/api/backoffice/admin/vendors", "", nil)
	var vendors []models.Vendor
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&vendors))
	require.Len(t, vendors, 2)
	assert.Equal(t, "Alfa", vendors[0].Name)
}

func TestEventWritesInvalidateCatalog(t *testing.T) {
	router, fake, catalog := setup(t)
	_, err := catalog.Events(t.Context(), "")
	require.NoError(t, err)
	_, err = catalog.Events(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.count("GET /events/search"))

	rec := request(router, http.MethodPost, "/api/backoffice/events", `{"name":"Concierto","date":"2025-09-01T20:00:00Z","location":"Cali, Colombia"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	_, err = catalog.Events(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.count("GET /events/search"))

	assert.Equal(t, http.StatusNoContent, request(router, http.MethodDelete, "/api/backoffice/events/"+eventID, "", nil).Code)
}

type recordingEmitter struct {
	mu      sync.Mutex
	changes []mq.CatalogChange
}

func (e *recordingEmitter) Emit(_ context.Context, c mq.CatalogChange) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changes = append(e.changes, c)
	return nil
}

func (e *recordingEmitter) Listen(ctx context.Context, _ func(mq.CatalogChange)) error {
	<-ctx.Done()
	return nil
}

func TestEventWritesAnnounceChanges(t *testing.T) {
	srv := httptest.NewServer(&fakeAPI{})
	t.Cleanup(srv.Close)
	api := apiclient.New(srv.URL)
	emitter := &recordingEmitter{}
	h := NewHandler(api, events.NewCatalog(api, rdx.NewMemoryCache(), time.Hour, events.WithEmitter(emitter)))

	router := httprouter.New()
	router.PUT("/api/backoffice/events/:eventid", h.UpdateEvent)
	router.DELETE("/api/backoffice/events/:eventid", h.DeleteEvent)

	rec := request(router, http.MethodPut, "/api/backoffice/events/"+eventID, `{"name":"Concierto","date":"2025-09-01"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusNoContent, request(router, http.MethodDelete, "/api/backoffice/events/"+eventID, "", nil).Code)

	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	assert.Equal(t, []mq.CatalogChange{
		{EventID: eventID, Action: mq.ActionUpdated},
		{EventID: eventID, Action: mq.ActionDeleted},
	}, emitter.changes)
}

func TestEventValidation(t *testing.T) {
	router, fake, _ := setup(t)
	bodies := map[string]string{
		"no name":        `{"date":"2025-09-01"}`,
		"bad date":       `{"name":"x","date":"mañana"}`,
		"bad status":     `{"name":"x","date":"2025-09-01","status":"GONE"}`,
		"negative price": `{"name":"x","date":"2025-09-01","ticketTypes":[{"id":"g","name":"General","price":-1}]}`,
	}
	for name, body := range bodies {
		rec := request(router, http.MethodPost, "/api/backoffice/events", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
	assert.Zero(t, fake.count("POST /events"))
	assert.Equal(t, http.StatusBadRequest, request(router, http.MethodPut, "/api/backoffice/events/x", `{}`, nil).Code)
}
