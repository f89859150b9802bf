package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fichesante/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchBody struct {
	IDs     []string `json:"ids"`
	Variant string   `json:"variant"`
}

func batchRouter(limit int64) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), BodyLimit(limit))
	router.POST("/batches", func(c *gin.Context) {
		var req batchBody
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(req.IDs)})
	})
	router.GET("/documents", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func batchPayload(n int) string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = "gonarthrose"
	}
	data, _ := json.Marshal(batchBody{IDs: ids, Variant: "1page"})
	return string(data)
}

func TestBodyLimit(t *testing.T) {
	t.Run("accepts a batch within the limit", func(t *testing.T) {
		body := batchPayload(3)
		req := httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		batchRouter(1<<10).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"count":3}`, w.Body.String())
	})

	t.Run("refuses a declared length above the limit", func(t *testing.T) {
		body := batchPayload(100)
		req := httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		batchRouter(1<<10).ServeHTTP(w, req)

		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeRequestTooLarge, resp.Error.Code)
		assert.Equal(t, "request body exceeds 1 KiB", resp.Error.Message)
		assert.Equal(t, w.Header().Get(RequestIDHeader), resp.Error.RequestID)
	})

	t.Run("cuts a chunked body at the limit", func(t *testing.T) {
		body := batchPayload(100)
		// io.MultiReader hides the length so the request is sent chunked
		req := httptest.NewRequest(http.MethodPost, "/batches", io.MultiReader(strings.NewReader(body)))
		req.Header.Set("Content-Type", "application/json")
		req.ContentLength = -1
		w := httptest.NewRecorder()
		batchRouter(100).ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "request body exceeds 100 bytes")
	})

	t.Run("ignores requests without a body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		w := httptest.NewRecorder()
		batchRouter(10).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "64 KiB", formatBytes(64<<10))
	assert.Equal(t, "2 MiB", formatBytes(2<<20))
	assert.Equal(t, "1500 bytes", formatBytes(1500))
}
