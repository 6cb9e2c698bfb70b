package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ops_gateway/internal/auth"
)

func TestAPIKeyMiddleware_Success(t *testing.T) {
	store := auth.NewInMemoryAPIKeyStore()
	middleware := APIKeyMiddleware(store)

	// Create a test handler that the middleware will wrap
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record, ok := GetAPIKeyRecord(r.Context())
		if !ok {
			t.Error("API key record not found in context")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if record.ID != "demo-key-id" {
			t.Errorf("Unexpected API key ID: %s", record.ID)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	})

	handler := middleware(nextHandler)

	t.Run("with X-API-Key header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/test", nil)
		req.Header.Set("X-API-Key", "demo-key")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})

	t.Run("with Bearer token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/test", nil)
		req.Header.Set("Authorization", "Bearer demo-key")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})
}

func TestAPIKeyMiddleware_Failures(t *testing.T) {
	store := auth.NewInMemoryAPIKeyStore()
	middleware := APIKeyMiddleware(store)

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called on auth failure")
	})

	handler := middleware(nextHandler)

	t.Run("missing API key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/test", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", w.Code)
		}
	})

	t.Run("invalid API key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/test", nil)
		req.Header.Set("X-API-Key", "wrong-key")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", w.Code)
		}
	})

	t.Run("revoked API key", func(t *testing.T) {
		revokedStore := auth.NewInMemoryAPIKeyStore()
		revokedStore.Add("revoked-key", &auth.APIKeyRecord{
			ID:      "revoked-key-id",
			Name:    "Revoked Key",
			Revoked: true,
		})

		handler := APIKeyMiddleware(revokedStore)(nextHandler)

		req := httptest.NewRequest("GET", "/api/test", nil)
		req.Header.Set("X-API-Key", "revoked-key")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", w.Code)
		}
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	var seenID string
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := RequestIDMiddleware()(nextHandler)

	t.Run("generates an ID when none supplied", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/test", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if seenID == "" {
			t.Error("Expected a generated request ID in context")
		}
		if w.Header().Get("X-Request-ID") != seenID {
			t.Errorf("Response header %q does not match context ID %q", w.Header().Get("X-Request-ID"), seenID)
		}
	})

	t.Run("honors caller-supplied ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/test", nil)
		req.Header.Set("X-Request-ID", "caller-id-42")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if seenID != "caller-id-42" {
			t.Errorf("Expected caller-supplied ID, got %q", seenID)
		}
	})
}

type fixedLimiter struct {
	allow bool
}

func (l *fixedLimiter) Allow(ctx context.Context, apiKeyID string, limit int) (bool, error) {
	return l.allow, nil
}

func TestRateLimitMiddleware(t *testing.T) {
	record := &auth.APIKeyRecord{ID: "key-1", RateLimitPerMinute: 10}

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	withRecord := func(req *http.Request) *http.Request {
		ctx := context.WithValue(req.Context(), APIKeyRecordKey, record)
		return req.WithContext(ctx)
	}

	t.Run("allows under limit", func(t *testing.T) {
		handler := RateLimitMiddleware(&fixedLimiter{allow: true})(nextHandler)
		req := withRecord(httptest.NewRequest("POST", "/v1/generate", nil))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})

	t.Run("rejects over limit", func(t *testing.T) {
		handler := RateLimitMiddleware(&fixedLimiter{allow: false})(nextHandler)
		req := withRecord(httptest.NewRequest("POST", "/v1/generate", nil))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusTooManyRequests {
			t.Errorf("Expected status 429, got %d", w.Code)
		}
	})

	t.Run("rejects without key record", func(t *testing.T) {
		handler := RateLimitMiddleware(&fixedLimiter{allow: true})(nextHandler)
		req := httptest.NewRequest("POST", "/v1/generate", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", w.Code)
		}
	})
}
