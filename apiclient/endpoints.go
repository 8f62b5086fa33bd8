package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"taquilla/models"
)

// Plain writes are never retried. Reads and idempotency-keyed writes use the
// client's read budget.
const writeRetries = 0

func call[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var out T
	res, err := c.Do(ctx, req)
	if err != nil {
		return out, err
	}
	if err := res.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) SearchEvents(ctx context.Context, query string) ([]models.SearchEvent, error) {
	target := "/events/search"
	if query != "" {
		target += "?" + url.Values{"q": {query}}.Encode()
	}
	events, err := call[[]models.SearchEvent](ctx, c, Request{URL: target, Retries: c.readRetries})
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.SearchEvent{}
	}
	return events, nil
}

func (c *Client) GetEvent(ctx context.Context, id string) (models.EventDetail, error) {
	return call[models.EventDetail](ctx, c, Request{URL: "/events/" + url.PathEscape(id), Retries: c.readRetries})
}

func (c *Client) CreateEvent(ctx context.Context, in models.EventInput) (models.EventDetail, error) {
	return call[models.EventDetail](ctx, c, Request{Method: http.MethodPost, URL: "/events", Body: in, Retries: writeRetries})
}

func (c *Client) UpdateEvent(ctx context.Context, id string, in models.EventInput) (models.EventDetail, error) {
	return call[models.EventDetail](ctx, c, Request{Method: http.MethodPut, URL: "/events/" + url.PathEscape(id), Body: in, Retries: writeRetries})
}

func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	_, err := c.Do(ctx, Request{Method: http.MethodDelete, URL: "/events/" + url.PathEscape(id)})
	return err
}

func (c *Client) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	return call[[]models.Vendor](ctx, c, Request{URL: "/vendors", Retries: c.readRetries})
}

// SalesQuery narrows a sales listing. Empty fields are not sent.
type SalesQuery struct {
	EventID  string
	VendorID string
	Status   models.SaleStatus
}

func (q SalesQuery) values() url.Values {
	v := url.Values{}
	if q.EventID != "" {
		v.Set("eventId", q.EventID)
	}
	if q.VendorID != "" {
		v.Set("vendorId", q.VendorID)
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	return v
}

func (c *Client) ListSales(ctx context.Context, q SalesQuery) ([]models.Sale, error) {
	target := "/sales"
	if v := q.values(); len(v) > 0 {
		target += "?" + v.Encode()
	}
	return call[[]models.Sale](ctx, c, Request{URL: target, Retries: c.readRetries})
}

func (c *Client) GetSale(ctx context.Context, id string) (models.Sale, error) {
	return call[models.Sale](ctx, c, Request{URL: "/sales/" + url.PathEscape(id), Retries: c.readRetries})
}

func (c *Client) ValidateSale(ctx context.Context, id string) (models.SaleValidation, error) {
	return call[models.SaleValidation](ctx, c, Request{
		Method: http.MethodPost,
		URL:    "/sales/" + url.PathEscape(id) + "/validate",
	})
}

// CreateCheckoutSession reserves tickets. The idempotency key makes the POST
// safe to retry.
func (c *Client) CreateCheckoutSession(ctx context.Context, in models.CheckoutRequest, idempotencyKey string) (models.CheckoutSession, error) {
	headers := http.Header{}
	headers.Set("Idempotency-Key", idempotencyKey)
	return call[models.CheckoutSession](ctx, c, Request{
		Method:  http.MethodPost,
		URL:     "/checkout/sessions",
		Body:    in,
		Headers: headers,
		Retries: c.readRetries,
	})
}

func (c *Client) GetCheckoutSession(ctx context.Context, id string) (models.CheckoutSession, error) {
	return call[models.CheckoutSession](ctx, c, Request{URL: "/checkout/sessions/" + url.PathEscape(id), Retries: c.readRetries})
}

func (c *Client) Login(ctx context.Context, creds models.Credentials) (models.LoginResponse, error) {
	return call[models.LoginResponse](ctx, c, Request{Method: http.MethodPost, URL: "/auth/login", Body: creds})
}

// FetchBytes downloads a non-JSON resource such as a banner image.
func (c *Client) FetchBytes(ctx context.Context, target string) ([]byte, string, error) {
	headers := http.Header{}
	headers.Set("Accept", "image/*, */*")
	res, err := c.Do(ctx, Request{URL: target, Headers: headers, Retries: c.readRetries})
	if err != nil {
		return nil, "", err
	}
	if res.JSON != nil {
		return []byte(res.JSON), "application/json", nil
	}
	return []byte(res.Text), http.DetectContentType([]byte(res.Text)), nil
}
