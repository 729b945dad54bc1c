package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type assertError string

func (e assertError) Error() string { return string(e) }

func TestResolveCountry(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(r *http.Request)
		lookup CountryLookup
		want   string
	}{
		{
			name: "explicit country header",
			setup: func(r *http.Request) {
				r.Header.Set("X-Country-Code", "sg")
			},
			want: "SG",
		},
		{
			name: "cloudflare header",
			setup: func(r *http.Request) {
				r.Header.Set("CF-IPCountry", "JP")
			},
			want: "JP",
		},
		{
			name: "header wins over lookup",
			setup: func(r *http.Request) {
				r.Header.Set("X-IP-Country", "DE")
			},
			lookup: func(ip string) (string, error) { return "US", nil },
			want:   "DE",
		},
		{
			name:   "geoip lookup",
			lookup: func(ip string) (string, error) { return "us", nil },
			want:   "US",
		},
		{
			name:   "lookup failure yields empty",
			lookup: func(ip string) (string, error) { return "", assertError("db offline") },
			want:   "",
		},
		{
			name: "no signal",
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "198.51.100.10:1234"
			if tc.setup != nil {
				tc.setup(req)
			}
			if got := ResolveCountry(req, tc.lookup); got != tc.want {
				t.Fatalf("ResolveCountry() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGeoMiddlewareStoresCountry(t *testing.T) {
	var got string
	h := Geo(func(ip string) (string, error) { return "ID", nil })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = CountryFromContext(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.10:1234"
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != "ID" {
		t.Fatalf("country in context = %q, want ID", got)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.10:1234"
	if got := ClientIP(req); got != "198.51.100.10" {
		t.Fatalf("ClientIP() = %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 198.51.100.2")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("ClientIP() with forwarded header = %q", got)
	}
}
