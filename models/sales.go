package models

import "time"

type SaleStatus string

const (
	SalePaid      SaleStatus = "PAID"
	SalePending   SaleStatus = "PENDING"
	SaleCancelled SaleStatus = "CANCELLED"
	SaleValidated SaleStatus = "VALIDATED"
)

type Sale struct {
	ID          string     `json:"id"`
	EventID     string     `json:"eventId"`
	EventName   string     `json:"eventName"`
	BuyerName   string     `json:"buyerName"`
	BuyerEmail  string     `json:"buyerEmail"`
	Quantity    int        `json:"quantity"`
	Total       float64    `json:"total"`
	Currency    string     `json:"currency"`
	Status      SaleStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	ValidatedAt *time.Time `json:"validatedAt,omitempty"`
}

// SaleValidation is the remote answer to a ticket validation attempt.
type SaleValidation struct {
	Sale    Sale   `json:"sale"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

type Vendor struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Active bool   `json:"active"`
}
