package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeOrigins(t *testing.T) {
	got, allowAll := normalizeOrigins([]string{"https://Chat.Example.com:8443/", "", "ftp//bad", "*"})

	if !allowAll {
		t.Error("expected wildcard to allow all origins")
	}
	if len(got) != 1 || got[0] != "https://chat.example.com:8443" {
		t.Errorf("normalized = %v", got)
	}

	if got, allowAll := normalizeOrigins(nil); got != nil || allowAll {
		t.Errorf("empty input = %v, %v", got, allowAll)
	}
}

func TestCheckOrigin(t *testing.T) {
	SetConfig(&Config{AllowedOrigins: []string{"http://localhost:3000"}})
	t.Cleanup(func() { SetConfig(nil) })

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"allowed", "http://localhost:3000", true},
		{"case insensitive", "HTTP://LOCALHOST:3000", true},
		{"other port", "http://localhost:3001", false},
		{"other host", "http://evil.example", false},
		{"missing", "", false},
		{"garbage", "::::", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := checkOrigin(req); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestCheckOriginWildcard(t *testing.T) {
	SetConfig(&Config{AllowedOrigins: []string{"*"}})
	t.Cleanup(func() { SetConfig(nil) })

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://anything.example")
	if !checkOrigin(req) {
		t.Error("wildcard should allow any well-formed origin")
	}

	req.Header.Del("Origin")
	if checkOrigin(req) {
		t.Error("a missing origin is rejected even with a wildcard")
	}
}
