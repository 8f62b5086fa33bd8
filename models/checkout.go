package models

import "time"

type CheckoutStatus string

const (
	CheckoutOpen    CheckoutStatus = "OPEN"
	CheckoutPaid    CheckoutStatus = "PAID"
	CheckoutPending CheckoutStatus = "PENDING"
	CheckoutFailed  CheckoutStatus = "FAILED"
	CheckoutExpired CheckoutStatus = "EXPIRED"
)

type CheckoutItem struct {
	TicketTypeID string `json:"ticketTypeId"`
	Quantity     int    `json:"quantity"`
}

type Buyer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document,omitempty"`
}

type CheckoutRequest struct {
	EventID string         `json:"eventId"`
	Items   []CheckoutItem `json:"items"`
	Buyer   Buyer          `json:"buyer"`
}

type CheckoutSession struct {
	ID        string         `json:"id"`
	EventID   string         `json:"eventId"`
	Items     []CheckoutItem `json:"items"`
	Buyer     Buyer          `json:"buyer"`
	Total     float64        `json:"total"`
	Currency  string         `json:"currency"`
	Status    CheckoutStatus `json:"status"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

type PaymentResult struct {
	SessionID string         `json:"sessionId"`
	Status    CheckoutStatus `json:"status"`
	Reference string         `json:"reference"`
	Message   string         `json:"message,omitempty"`
}
