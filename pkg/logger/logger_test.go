package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDispatch_AddsOnlyKnownIDs(t *testing.T) {
	var buf bytes.Buffer
	l := WithDispatch(NewWithWriter("production", &buf), "camp-1", "lead-1", "")
	l.Error("dispatch failed")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "camp-1", rec["campaign_id"])
	assert.Equal(t, "lead-1", rec["lead_id"])
	_, hasCall := rec["call_id"]
	assert.False(t, hasCall)
}

func TestFrom_FallsBackToDefault(t *testing.T) {
	assert.NotNil(t, From(context.Background()))
}

func TestMiddleware_PropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	r := gin.New()
	r.Use(Middleware(NewWithWriter("dev", &buf)))
	r.GET("/x", func(c *gin.Context) {
		assert.Same(t, FromGin(c), From(c.Request.Context()))
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "rid-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "rid-1", w.Header().Get("X-Request-Id"))
	assert.Contains(t, buf.String(), `"request_id":"rid-1"`)
}
