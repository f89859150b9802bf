package handler

import (
	"runtime"
	"time"

	"github.com/fichesante/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// DocumentCounter reports how many documents can be generated
type DocumentCounter interface {
	Count() int
}

// SystemHandler handles health and system endpoints
type SystemHandler struct {
	BaseHandler
	service   string
	version   string
	documents DocumentCounter
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(service, version string, documents DocumentCounter) *SystemHandler {
	return &SystemHandler{
		service:   service,
		version:   version,
		documents: documents,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health godoc
//
//	@Summary	Liveness and loaded document count
//	@Tags		system
//	@Produce	json
//	@Router		/health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := dto.HealthResponse{
		Status:  "healthy",
		Service: h.service,
		Version: h.version,
	}
	if h.documents != nil {
		resp.Documents = h.documents.Count()
	}
	h.Success(c, resp)
}

// GetSystemInfo godoc
//
//	@Summary	Version and uptime
//	@Tags		system
//	@Produce	json
//	@Router		/system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.service,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}
