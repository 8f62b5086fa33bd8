package models

import "time"

type EventStatus string

const (
	StatusActive   EventStatus = "ACTIVE"
	StatusInactive EventStatus = "INACTIVE"
	StatusSoldOut  EventStatus = "SOLD_OUT"
)

// SearchEvent is one row of the remote search listing.
type SearchEvent struct {
	ID         string      `json:"id" bson:"id"`
	Name       string      `json:"name" bson:"name"`
	Date       string      `json:"date" bson:"date"`
	Location   string      `json:"location" bson:"location"`
	BannerURL  string      `json:"bannerUrl" bson:"bannerUrl"`
	Price      float64     `json:"price" bson:"price"`
	Currency   string      `json:"currency" bson:"currency"`
	Status     EventStatus `json:"status" bson:"status"`
	MinAge     *int        `json:"minAge,omitempty" bson:"minAge,omitempty"`
	VendorID   string      `json:"vendorId,omitempty" bson:"vendorId,omitempty"`
	VendorName string      `json:"vendorName,omitempty" bson:"vendorName,omitempty"`
}

// EventDetail is what the remote API returns for a single event.
type EventDetail struct {
	SearchEvent
	Description string       `json:"description"`
	Venue       string       `json:"venue"`
	TicketTypes []TicketType `json:"ticketTypes"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type TicketType struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	Available int     `json:"available"`
}

// EventInput is the backoffice payload for creating or editing an event.
type EventInput struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Date        string       `json:"date"`
	Location    string       `json:"location"`
	Venue       string       `json:"venue"`
	BannerURL   string       `json:"bannerUrl"`
	MinAge      *int         `json:"minAge,omitempty"`
	Status      EventStatus  `json:"status,omitempty"`
	TicketTypes []TicketType `json:"ticketTypes,omitempty"`
}

// Location is the parsed form of a "City, Country" string.
type Location struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// Facets feed the filter controls of the storefront.
type Facets struct {
	Countries       []string            `json:"countries"`
	Cities          []string            `json:"cities"`
	Categories      []string            `json:"categories"`
	CitiesByCountry map[string][]string `json:"citiesByCountry"`
}
