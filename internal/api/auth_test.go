package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	keys := AuthConfig{Keys: []string{"first-api-key-12345678", "second-api-key-1234567"}}
	tests := []struct {
		name       string
		cfg        AuthConfig
		path       string
		header     string
		wantStatus int
	}{
		{"disabled", AuthConfig{}, "/formats", "", http.StatusOK},
		{"public root", keys, "/", "", http.StatusOK},
		{"public health", keys, "/health", "", http.StatusOK},
		{"missing key", keys, "/formats", "", http.StatusUnauthorized},
		{"wrong key", keys, "/formats", "wrong-api-key-12345678", http.StatusUnauthorized},
		{"first key", keys, "/formats", "first-api-key-12345678", http.StatusOK},
		{"second key", keys, "/formats", "second-api-key-1234567", http.StatusOK},
		{"query key on ws", keys, "/ws?api_key=first-api-key-12345678", "", http.StatusOK},
		{"query key elsewhere", keys, "/formats?api_key=first-api-key-12345678", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthMiddleware(tt.cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestValidateAuthConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AuthConfig
		wantErr bool
	}{
		{"disabled", AuthConfig{}, false},
		{"valid", AuthConfig{Keys: []string{"0123456789abcdef"}}, false},
		{"short", AuthConfig{Keys: []string{"0123456789abcdef", "short"}}, true},
	}
	for _, tt := range tests {
		if err := ValidateAuthConfig(tt.cfg); (err != nil) != tt.wantErr {
			t.Errorf("%s: ValidateAuthConfig() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
