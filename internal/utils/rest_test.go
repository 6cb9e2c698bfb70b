package utils

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestRespondWithJSON(t *testing.T) {
	rr := httptest.NewRecorder()

	payload := map[string]any{"status": "ok", "count": 3}
	if err := RespondWithJSON(rr, 200, payload); err != nil {
		t.Fatalf("RespondWithJSON() error = %v", err)
	}

	if rr.Code != 200 {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var decoded map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	if decoded["status"] != "ok" {
		t.Errorf("status field = %v, want ok", decoded["status"])
	}
}

func TestRespondWithError(t *testing.T) {
	rr := httptest.NewRecorder()

	RespondWithError(rr, 400, "bad input")

	if rr.Code != 400 {
		t.Errorf("status = %d, want 400", rr.Code)
	}

	var resp ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	if resp.Error.Message != "bad input" {
		t.Errorf("error message = %q, want %q", resp.Error.Message, "bad input")
	}
	if resp.Error.Code != 400 {
		t.Errorf("error code = %d, want 400", resp.Error.Code)
	}
}
