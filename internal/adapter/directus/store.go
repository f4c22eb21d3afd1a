// Package directus implements the hotel context store port against the
// Directus content API, with a read-through cache and singleflight-deduped
// fetches.
package directus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mkiradani/daotomata-hotel-agent/internal/domain"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/cache"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/hotelstore"
)

// Store resolves hotel configuration and content from Directus.
type Store struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cache      cache.Cache
	cacheTTL   time.Duration
	group      singleflight.Group
}

// New creates a Directus-backed hotel store. cache may be nil to disable
// caching (tests).
func New(baseURL, token string, c cache.Cache, cacheTTL time.Duration) *Store {
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

// hotelRecord mirrors the Directus hotels collection fields we consume.
type hotelRecord struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ContactEmail      string `json:"contact_email"`
	ContactPhone      string `json:"contact_phone"`
	ChatwootBaseURL   string `json:"chatwoot_base_url"`
	ChatwootAPIToken  string `json:"chatwoot_api_token"`
	ChatwootAccountID int    `json:"chatwoot_account_id"`
	ChatwootInboxID   int    `json:"chatwoot_inbox_id"`
}

// GetHotelContext resolves a hotel's tenant context. Concurrent requests for
// the same hotel share one upstream fetch.
func (s *Store) GetHotelContext(ctx context.Context, hotelID string) (*hotelstore.HotelContext, error) {
	key := "hotel:" + hotelID

	if s.cache != nil {
		if data, ok, _ := s.cache.Get(ctx, key); ok {
			var hc hotelstore.HotelContext
			if err := json.Unmarshal(data, &hc); err == nil {
				return &hc, nil
			}
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		rec, err := s.fetchHotel(ctx, hotelID)
		if err != nil {
			return nil, err
		}

		hc := &hotelstore.HotelContext{
			HotelID:      rec.ID,
			Name:         rec.Name,
			ContactEmail: rec.ContactEmail,
			ContactPhone: rec.ContactPhone,
		}
		if rec.ChatwootBaseURL != "" && rec.ChatwootAPIToken != "" && rec.ChatwootAccountID != 0 {
			hc.Chatwoot = &hotelstore.ChatwootCredentials{
				BaseURL:     rec.ChatwootBaseURL,
				AccessToken: rec.ChatwootAPIToken,
				AccountID:   rec.ChatwootAccountID,
				InboxID:     rec.ChatwootInboxID,
			}
		}

		if s.cache != nil {
			if data, err := json.Marshal(hc); err == nil {
				_ = s.cache.Set(ctx, key, data, s.cacheTTL)
			}
		}
		return hc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*hotelstore.HotelContext), nil
}

// GetHotelInfo returns general property information text.
func (s *Store) GetHotelInfo(ctx context.Context, hotelID string) (string, error) {
	return s.fetchText(ctx, hotelID, "info", "/items/hotels/"+url.PathEscape(hotelID)+"?fields=description")
}

// GetActivities returns the hotel's activity catalogue text.
func (s *Store) GetActivities(ctx context.Context, hotelID string) (string, error) {
	return s.fetchText(ctx, hotelID, "activities", "/items/activities?filter[hotel_id][_eq]="+url.QueryEscape(hotelID))
}

// GetFacilities returns the hotel's facility list text.
func (s *Store) GetFacilities(ctx context.Context, hotelID string) (string, error) {
	return s.fetchText(ctx, hotelID, "facilities", "/items/facilities?filter[hotel_id][_eq]="+url.QueryEscape(hotelID))
}

// fetchText retrieves a content endpoint and caches the raw JSON payload as
// prompt context.
func (s *Store) fetchText(ctx context.Context, hotelID, kind, path string) (string, error) {
	key := "content:" + kind + ":" + hotelID

	if s.cache != nil {
		if data, ok, _ := s.cache.Get(ctx, key); ok {
			return string(data), nil
		}
	}

	data, err := s.doRequest(ctx, path)
	if err != nil {
		return "", fmt.Errorf("fetch %s for hotel %s: %w", kind, hotelID, err)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, data, s.cacheTTL)
	}
	return string(data), nil
}

func (s *Store) fetchHotel(ctx context.Context, hotelID string) (*hotelRecord, error) {
	data, err := s.doRequest(ctx, "/items/hotels/"+url.PathEscape(hotelID))
	if err != nil {
		return nil, err
	}

	var result struct {
		Data hotelRecord `json:"data"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal hotel %s: %w", hotelID, err)
	}
	if result.Data.ID == "" {
		return nil, fmt.Errorf("hotel %s: %w", hotelID, domain.ErrNotFound)
	}
	return &result.Data, nil
}

func (s *Store) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("directus API error %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}
