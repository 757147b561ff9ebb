// Package geo supplies the device position reported to the backend when a
// connection opens.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.aimuz.me/prakriti/internal/types"
)

// ErrDenied is returned when no position may or can be reported.
var ErrDenied = errors.New("geo: location unavailable")

// DefaultLookupURL is a free IP geolocation endpoint returning
// {"latitude": .., "longitude": ..}.
const DefaultLookupURL = "https://ipapi.co/json/"

// Locator yields the current position.
type Locator interface {
	Locate(ctx context.Context) (types.Position, error)
}

// Static always reports a configured position.
type Static types.Position

func (s Static) Locate(context.Context) (types.Position, error) {
	return types.Position(s), nil
}

// Disabled never reports a position.
type Disabled struct{}

func (Disabled) Locate(context.Context) (types.Position, error) {
	return types.Position{}, ErrDenied
}

// IPLocator approximates the position from the public IP address.
type IPLocator struct {
	url  string
	http *http.Client
}

// NewIPLocator creates an IPLocator. An empty url selects DefaultLookupURL.
func NewIPLocator(url string) *IPLocator {
	if url == "" {
		url = DefaultLookupURL
	}
	return &IPLocator{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// lookupResponse accepts both the ipapi.co and ip-api.com field names.
type lookupResponse struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Error     bool     `json:"error"`
	Reason    string   `json:"reason"`
}

func (l *IPLocator) Locate(ctx context.Context) (types.Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return types.Position{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.http.Do(req)
	if err != nil {
		return types.Position{}, fmt.Errorf("%w: %v", ErrDenied, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return types.Position{}, fmt.Errorf("%w: read response: %v", ErrDenied, err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.Position{}, fmt.Errorf("%w: lookup status %d", ErrDenied, resp.StatusCode)
	}

	var r lookupResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return types.Position{}, fmt.Errorf("%w: decode response: %v", ErrDenied, err)
	}
	if r.Error {
		return types.Position{}, fmt.Errorf("%w: %s", ErrDenied, r.Reason)
	}

	switch {
	case r.Latitude != nil && r.Longitude != nil:
		return types.Position{Latitude: *r.Latitude, Longitude: *r.Longitude}, nil
	case r.Lat != nil && r.Lon != nil:
		return types.Position{Latitude: *r.Lat, Longitude: *r.Lon}, nil
	}
	return types.Position{}, fmt.Errorf("%w: no coordinates in response", ErrDenied)
}
