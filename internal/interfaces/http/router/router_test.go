package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func echo(body string) gin.HandlerFunc {
	return func(c *gin.Context) { c.String(http.StatusOK, body) }
}

func TestRouter(t *testing.T) {
	t.Run("defaults to v1", func(t *testing.T) {
		r := NewRouter(gin.New())
		assert.Equal(t, "/api/v1", r.BasePath())
		assert.Empty(t, r.registrars)
	})

	t.Run("custom version", func(t *testing.T) {
		assert.Equal(t, "/api/v2", NewRouter(gin.New(), WithAPIVersion("v2")).BasePath())
	})

	t.Run("setup mounts every registrar", func(t *testing.T) {
		engine := gin.New()
		docs := NewDomainGroup("documents", "/documents").GET("", echo("documents"))
		archives := NewDomainGroup("archives", "/archives")
		archives.GET("/*path", func(c *gin.Context) { c.String(http.StatusOK, c.Param("path")) })

		NewRouter(engine).Register(docs).Register(archives).Setup()

		w := serve(engine, http.MethodGet, "/api/v1/documents")
		assert.Equal(t, "documents", w.Body.String())
		w = serve(engine, http.MethodGet, "/api/v1/archives/2024/03/lot.zip")
		assert.Equal(t, "/2024/03/lot.zip", w.Body.String())
		w = serve(engine, http.MethodGet, "/documents")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDomainGroup_Methods(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("documents", "/documents")
	g.GET("/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) }).
		DELETE("/:id/:variant/error", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	batches := NewDomainGroup("batches", "").POST("/batches", echo("zip"))

	NewRouter(engine).Register(g).Register(batches).Setup()

	for _, tc := range []struct {
		method, path string
		code         int
		body         string
	}{
		{http.MethodGet, "/api/v1/documents/gonarthrose", http.StatusOK, "gonarthrose"},
		{http.MethodDelete, "/api/v1/documents/gonarthrose/1page/error", http.StatusNoContent, ""},
		{http.MethodPost, "/api/v1/batches", http.StatusOK, "zip"},
		{http.MethodPost, "/api/v1/documents/gonarthrose", http.StatusNotFound, ""},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := serve(engine, tc.method, tc.path)
			assert.Equal(t, tc.code, w.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, w.Body.String())
			}
		})
	}
}

func TestDomainGroup_Middleware(t *testing.T) {
	engine := gin.New()
	api := engine.Group("/api/v1")

	writes := NewDomainGroup("batches", "").Use(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusTooManyRequests)
	})
	writes.POST("/batches", echo("zip"))
	reads := NewDomainGroup("system", "").GET("/health", echo("ok"))

	writes.RegisterRoutes(api)
	reads.RegisterRoutes(api)

	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodPost, "/api/v1/batches").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/health").Code)
}

func TestDomainGroup_Subgroups(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("documents", "/documents")
	variants := g.Group("variants", "/:id/:variant").Use(func(c *gin.Context) {
		c.Header("X-Variant", c.Param("variant"))
		c.Next()
	})
	variants.GET("/preview", echo("preview")).GET("/status", echo("status"))

	g.RegisterRoutes(engine.Group("/api/v1"))

	w := serve(engine, http.MethodGet, "/api/v1/documents/gonarthrose/1page/preview")
	assert.Equal(t, "preview", w.Body.String())
	assert.Equal(t, "1page", w.Header().Get("X-Variant"))

	w = serve(engine, http.MethodGet, "/api/v1/documents/lombalgie/4pages/status")
	assert.Equal(t, "status", w.Body.String())
	assert.Equal(t, "4pages", w.Header().Get("X-Variant"))
}

func TestDomainGroup_Routes(t *testing.T) {
	noop := func(c *gin.Context) {}
	g := NewDomainGroup("documents", "/documents")
	g.GET("", noop).GET("/:id", noop)
	g.Group("errors", "/:id/:variant").
		GET("/error", noop).
		DELETE("/error", noop)

	assert.Equal(t, "documents", g.Name())
	assert.Equal(t, "/documents", g.Prefix())
	assert.Equal(t, []RouteInfo{
		{Method: "GET", Path: "/documents"},
		{Method: "GET", Path: "/documents/:id"},
		{Method: "GET", Path: "/documents/:id/:variant/error"},
		{Method: "DELETE", Path: "/documents/:id/:variant/error"},
	}, g.Routes())
}
