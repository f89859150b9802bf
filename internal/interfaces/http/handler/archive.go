package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/fichesante/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ArchiveStore reads published batch archives back and removes them
type ArchiveStore interface {
	Open(ctx context.Context, relPath string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, relPath string) error
}

// ArchiveHandler serves archives stored by the file system publisher
type ArchiveHandler struct {
	BaseHandler
	archives ArchiveStore
	logger   *zap.Logger
}

// NewArchiveHandler creates a new ArchiveHandler
func NewArchiveHandler(archives ArchiveStore, logger *zap.Logger) *ArchiveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveHandler{archives: archives, logger: logger}
}

// Download godoc
//
//	@Summary	Download a published batch archive
//	@Tags		batches
//	@Produce	application/zip
//	@Param		path	path	string	true	"Archive path"
//	@Router		/archives/{path} [get]
func (h *ArchiveHandler) Download(c *gin.Context) {
	rel := strings.TrimPrefix(c.Param("path"), "/")

	rc, size, err := h.archives.Open(c.Request.Context(), rel)
	if err != nil {
		logger.FromContext(c.Request.Context(), h.logger).Debug("archive not served",
			zap.String("path", rel), zap.Error(err))
		h.HandleError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, size, "application/zip", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", path.Base(rel)),
	})
}

// Delete godoc
//
//	@Summary	Delete a published batch archive
//	@Tags		batches
//	@Param		path	path	string	true	"Archive path"
//	@Success	204
//	@Router		/archives/{path} [delete]
func (h *ArchiveHandler) Delete(c *gin.Context) {
	rel := strings.TrimPrefix(c.Param("path"), "/")

	if err := h.archives.Delete(c.Request.Context(), rel); err != nil {
		logger.FromContext(c.Request.Context(), h.logger).Debug("archive not deleted",
			zap.String("path", rel), zap.Error(err))
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
