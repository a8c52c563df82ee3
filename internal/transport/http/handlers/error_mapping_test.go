package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

var errMappingSentinel = errors.New("entry not found")

func newMappingContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("trace_id", "trace-123")
	return c, rec
}

func TestRespondWithMappedErrorMatchesSentinel(t *testing.T) {
	c, rec := newMappingContext(t)

	wrapped := fmt.Errorf("lookup: %w", errMappingSentinel)
	RespondWithMappedError(c, wrapped, []ErrorCase{
		{Err: errMappingSentinel, Status: http.StatusNotFound, Message: "entry not found"},
	}, http.StatusInternalServerError, "internal error")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "entry not found" {
		t.Fatalf("unexpected message %q", body.Error)
	}
	if body.TraceID != "trace-123" {
		t.Fatalf("expected trace id passthrough, got %q", body.TraceID)
	}
}

func TestRespondWithMappedErrorFallsBack(t *testing.T) {
	c, rec := newMappingContext(t)

	RespondWithMappedError(c, errors.New("pgx: connection refused"), []ErrorCase{
		{Err: errMappingSentinel, Status: http.StatusNotFound, Message: "entry not found"},
	}, http.StatusInternalServerError, "internal error")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	// Infrastructure error text stays out of the response body.
	if body.Error != "internal error" {
		t.Fatalf("unexpected message %q", body.Error)
	}
}
