// Package hotelstore defines the port for resolving tenant configuration
// and hotel content. Backed by Directus; consumed read-through, never owned.
package hotelstore

import "context"

// ChatwootCredentials are the per-hotel platform credentials.
type ChatwootCredentials struct {
	BaseURL     string `json:"base_url"`
	AccessToken string `json:"access_token"`
	AccountID   int    `json:"account_id"`
	InboxID     int    `json:"inbox_id,omitempty"`
}

// HotelContext is the cached tenant configuration referenced by hotel_id.
type HotelContext struct {
	HotelID      string               `json:"hotel_id"`
	Name         string               `json:"name"`
	ContactEmail string               `json:"contact_email,omitempty"`
	ContactPhone string               `json:"contact_phone,omitempty"`
	Chatwoot     *ChatwootCredentials `json:"chatwoot,omitempty"`
}

// Store resolves tenant identifiers to cached configuration and content.
type Store interface {
	// GetHotelContext resolves a hotel's tenant context.
	GetHotelContext(ctx context.Context, hotelID string) (*HotelContext, error)

	// GetHotelInfo returns general property information text.
	GetHotelInfo(ctx context.Context, hotelID string) (string, error)

	// GetActivities returns the hotel's activity catalogue text.
	GetActivities(ctx context.Context, hotelID string) (string, error)

	// GetFacilities returns the hotel's facility list text.
	GetFacilities(ctx context.Context, hotelID string) (string, error)
}
