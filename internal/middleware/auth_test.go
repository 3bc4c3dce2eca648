package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing", "", ""},
		{"bearer token", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer with padding", "Bearer   abc  ", "abc"},
		{"wrong scheme", "Basic dXNlcjpwYXNz", ""},
		{"bare token", "abc.def.ghi", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := extractBearerToken(r); got != tt.want {
				t.Errorf("extractBearerToken = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	if got := getClientIP(r); got != "10.0.0.1:1234" {
		t.Errorf("RemoteAddr fallback = %q", got)
	}

	r.Header.Set("X-Real-IP", "203.0.113.7")
	if got := getClientIP(r); got != "203.0.113.7" {
		t.Errorf("X-Real-IP = %q", got)
	}

	r.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	if got := getClientIP(r); got != "198.51.100.4" {
		t.Errorf("X-Forwarded-For = %q", got)
	}
}
