package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveCookieSettings(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		domain  string
		want    CookieSettings
	}{
		{"localhost http", "http://localhost:3443", "", CookieSettings{Secure: false}},
		{"https host", "https://kitchen.example.com", "", CookieSettings{Secure: true}},
		{"explicit domain", "https://app.example.com", ".example.com", CookieSettings{Secure: true, Domain: ".example.com"}},
		{"empty url", "", "", CookieSettings{Secure: true}},
		{"invalid url", "://bad", "", CookieSettings{Secure: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveCookieSettings(tt.baseURL, tt.domain))
		})
	}
}
