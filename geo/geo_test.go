package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.aimuz.me/prakriti/internal/types"
)

func TestStaticAndDisabled(t *testing.T) {
	pos, err := Static{Latitude: 18.52, Longitude: 73.85}.Locate(context.Background())
	if err != nil || pos != (types.Position{Latitude: 18.52, Longitude: 73.85}) {
		t.Errorf("Static.Locate() = %v, %v", pos, err)
	}

	if _, err := (Disabled{}).Locate(context.Background()); !errors.Is(err, ErrDenied) {
		t.Errorf("Disabled.Locate() error = %v, want ErrDenied", err)
	}
}

func TestIPLocator(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    types.Position
		wantErr bool
	}{
		{"ipapi.co", http.StatusOK, `{"ip":"1.2.3.4","latitude":28.61,"longitude":77.21}`, types.Position{Latitude: 28.61, Longitude: 77.21}, false},
		{"ip-api.com", http.StatusOK, `{"status":"success","lat":12.97,"lon":77.59}`, types.Position{Latitude: 12.97, Longitude: 77.59}, false},
		{"equator", http.StatusOK, `{"latitude":0,"longitude":0}`, types.Position{}, false},
		{"error flag", http.StatusOK, `{"error":true,"reason":"RateLimited"}`, types.Position{}, true},
		{"no coordinates", http.StatusOK, `{"ip":"1.2.3.4"}`, types.Position{}, true},
		{"bad status", http.StatusTooManyRequests, `{}`, types.Position{}, true},
		{"bad json", http.StatusOK, `not json`, types.Position{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewIPLocator(srv.URL).Locate(context.Background())
			if tt.wantErr {
				if !errors.Is(err, ErrDenied) {
					t.Errorf("error = %v, want ErrDenied", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Locate: %v", err)
			}
			if got != tt.want {
				t.Errorf("Locate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIPLocator_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewIPLocator(url).Locate(context.Background()); !errors.Is(err, ErrDenied) {
		t.Errorf("error = %v, want ErrDenied", err)
	}
}
