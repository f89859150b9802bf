package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf16"

	docapp "github.com/fichesante/backend/internal/application/document"
	"github.com/fichesante/backend/internal/domain/document"
	"github.com/fichesante/backend/internal/infrastructure/logger"
	"github.com/fichesante/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response headers of the document API
const (
	HeaderBatchFailures = "X-Batch-Failures"
	HeaderArchiveURL    = "X-Archive-URL"
)

// previewCSP lets the printable page run its inline print script and styles, nothing else
const previewCSP = "default-src 'none'; style-src 'unsafe-inline'; script-src 'unsafe-inline'; img-src data:; frame-ancestors 'self'; base-uri 'none'; form-action 'none'"

// popupHint is shown when the printable version cannot be opened automatically
const popupHint = "Le PDF n'a pas pu être généré. Autorisez les fenêtres pop-up pour imprimer la version HTML."

// DocumentHandler handles document API endpoints
type DocumentHandler struct {
	BaseHandler
	service  *docapp.DocumentService
	basePath string
	logger   *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler.
// basePath is the mount point of the document routes, used to build fallback links.
func NewDocumentHandler(service *docapp.DocumentService, basePath string, logger *zap.Logger) *DocumentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentHandler{
		service:  service,
		basePath: strings.TrimSuffix(basePath, "/"),
		logger:   logger,
	}
}

// =============================================================================
// Document Query Endpoints
// =============================================================================

// ListDocuments godoc
//
//	@Summary	List documents
//	@Tags		documents
//	@Produce	json
//	@Router		/documents [get]
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	docs := h.service.ListDocuments()
	h.SuccessList(c, docs, len(docs))
}

// GetDocument godoc
//
//	@Summary	Get a document and the state of its variants
//	@Tags		documents
//	@Produce	json
//	@Param		id	path	string	true	"Document ID"
//	@Router		/documents/{id} [get]
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	var uri dto.DocumentURI
	if !h.BindURI(c, &uri) {
		return
	}
	doc, err := h.service.GetDocument(uri.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Download godoc
//
//	@Summary	Download the PDF of a document variant
//	@Tags		documents
//	@Produce	application/pdf
//	@Param		id		path	string	true	"Document ID"
//	@Param		file	path	string	true	"1page.pdf or 4pages.pdf"
//	@Success	200
//	@Success	304
//	@Failure	404	{object}	dto.Response
//	@Failure	502	{object}	dto.Response
//	@Router		/documents/{id}/{file} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	var uri dto.DocumentURI
	if !h.BindURI(c, &uri) {
		return
	}
	file := c.Param("variant")
	raw, ok := strings.CutSuffix(file, ".pdf")
	if !ok {
		h.NotFound(c, fmt.Sprintf("unknown document file %q", file))
		return
	}
	variant, err := document.ParseVariant(raw)
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidVariant, err.Error())
		return
	}

	resp, err := h.service.Download(c.Request.Context(), uri.ID, variant)
	if err != nil {
		h.handleGenerationError(c, uri.ID, variant, err)
		return
	}

	etag := strconv.Quote(resp.Artifact.Fingerprint())
	c.Header("ETag", etag)
	c.Header("Cache-Control", "private, max-age=0, must-revalidate")
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resp.FileName))
	c.Data(http.StatusOK, resp.ContentType, resp.Artifact.Bytes())
}

// Preview godoc
//
//	@Summary	Printable HTML of a document variant
//	@Tags		documents
//	@Produce	html
//	@Param		id		path	string	true	"Document ID"
//	@Param		variant	path	string	true	"1page or 4pages"
//	@Param		print	query	bool	false	"Open the print dialog on load"
//	@Router		/documents/{id}/{variant}/preview [get]
func (h *DocumentHandler) Preview(c *gin.Context) {
	var uri dto.VariantURI
	if !h.BindURI(c, &uri) {
		return
	}
	var query dto.PreviewQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "print must be a boolean")
		return
	}
	if !h.service.HasArtifact(uri.ID) {
		h.NotFound(c, fmt.Sprintf("content record %q not found", uri.ID))
		return
	}

	html := h.service.PreviewHTML(c.Request.Context(), uri.ID, document.Variant(uri.Variant), query.Print)
	c.Header("Content-Security-Policy", previewCSP)
	c.Header("X-Frame-Options", "SAMEORIGIN")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// State godoc
//
//	@Summary	Generation state of a document variant
//	@Tags		documents
//	@Produce	json
//	@Router		/documents/{id}/{variant}/status [get]
func (h *DocumentHandler) State(c *gin.Context) {
	var uri dto.VariantURI
	if !h.BindURI(c, &uri) {
		return
	}
	if !h.service.HasArtifact(uri.ID) {
		h.NotFound(c, fmt.Sprintf("content record %q not found", uri.ID))
		return
	}
	state := h.service.State(uri.ID, document.Variant(uri.Variant))
	h.Success(c, dto.StateResponse{ID: uri.ID, Variant: uri.Variant, State: state.String()})
}

// =============================================================================
// Error Endpoints
// =============================================================================

// LastError godoc
//
//	@Summary	Diagnostic of the last failed generation
//	@Tags		documents
//	@Produce	json
//	@Router		/documents/{id}/{variant}/error [get]
func (h *DocumentHandler) LastError(c *gin.Context) {
	var uri dto.VariantURI
	if !h.BindURI(c, &uri) {
		return
	}
	last, ok := h.service.LastError(uri.ID, document.Variant(uri.Variant))
	if !ok {
		h.NotFound(c, "no generation error recorded")
		return
	}
	h.Success(c, docapp.ToErrorResponse(last))
}

// DismissError godoc
//
//	@Summary	Clear the last failed generation
//	@Tags		documents
//	@Router		/documents/{id}/{variant}/error [delete]
func (h *DocumentHandler) DismissError(c *gin.Context) {
	var uri dto.VariantURI
	if !h.BindURI(c, &uri) {
		return
	}
	if !h.service.DismissError(uri.ID, document.Variant(uri.Variant)) {
		h.NotFound(c, "no generation error recorded")
		return
	}
	h.NoContent(c)
}

// =============================================================================
// Batch and Preload Endpoints
// =============================================================================

// PackageBatch godoc
//
//	@Summary		Package many documents into one zip archive
//	@Description	Failed positions are listed as JSON in the X-Batch-Failures header
//	@Tags			batches
//	@Accept			json
//	@Produce		application/zip
//	@Param			request	body	dto.BatchRequest	true	"Batch request"
//	@Router			/batches [post]
func (h *DocumentHandler) PackageBatch(c *gin.Context) {
	var req dto.BatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.PackageZip(c.Request.Context(), docapp.PackageZipRequest{
		IDs:      req.IDs,
		Variant:  req.Variant,
		Category: req.Category,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	failures := batchFailureHeader(res.Job)
	if len(failures) > 0 {
		encoded, err := json.Marshal(failures)
		if err != nil {
			logger.FromContext(c.Request.Context(), h.logger).Error("failed to encode batch failures", zap.Error(err))
		} else {
			c.Header(HeaderBatchFailures, asciiJSON(encoded))
		}
	}
	if res.Published != nil {
		c.Header(HeaderArchiveURL, res.Published.URL)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.ArchiveName))
	c.Data(http.StatusOK, "application/zip", res.Archive)
}

// Preload godoc
//
//	@Summary	Warm the artifact cache in the background
//	@Tags		batches
//	@Accept		json
//	@Produce	json
//	@Param		request	body	dto.PreloadRequest	true	"Preload request"
//	@Success	202	{object}	dto.Response
//	@Router		/preload [post]
func (h *DocumentHandler) Preload(c *gin.Context) {
	var req dto.PreloadRequest
	if !h.BindJSON(c, &req) {
		return
	}
	handle, err := h.service.Preload(docapp.PreloadRequest{
		IDs:      req.IDs,
		Variants: req.Variants,
		DelayMS:  req.DelayMS,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, dto.PreloadResponse{Steps: handle.Steps()})
}

// =============================================================================
// Helpers
// =============================================================================

// handleGenerationError answers 502 with the diagnostic and the printable
// fallback links, or defers to HandleError for anything else
func (h *DocumentHandler) handleGenerationError(c *gin.Context, id string, v document.Variant, err error) {
	var genErr *document.GenerationError
	if !errors.As(err, &genErr) {
		h.HandleError(c, err)
		return
	}
	logger.FromContext(c.Request.Context(), h.logger).Warn("serving generation failure",
		zap.String("id", id),
		zap.String("variant", v.String()),
		zap.String("name", genErr.Name))

	preview := fmt.Sprintf("%s/%s/%s/preview", h.basePath, id, v)
	c.JSON(http.StatusBadGateway, dto.NewGenerationErrorResponse(
		genErr.Error(),
		getRequestID(c),
		genErr.Diagnostic(),
		&dto.FallbackLinks{
			Preview: preview,
			Print:   preview + "?print=1",
			Hint:    popupHint,
		},
	))
}

func batchFailureHeader(job *document.BatchJob) []dto.BatchFailureHeader {
	failures := docapp.ToBatchFailures(job)
	out := make([]dto.BatchFailureHeader, 0, len(failures))
	for _, f := range failures {
		out = append(out, dto.BatchFailureHeader{
			Position: f.Position,
			Slug:     f.Diagnostic.Slug,
			Name:     f.Diagnostic.Name,
			Message:  f.Diagnostic.Message,
		})
	}
	return out
}

// asciiJSON escapes every non-ASCII rune of an encoded JSON document so the
// result is a valid header value. The escapes only ever land inside strings.
func asciiJSON(encoded []byte) string {
	var b strings.Builder
	b.Grow(len(encoded))
	for _, r := range string(encoded) {
		switch {
		case r < 0x80:
			b.WriteRune(r)
		case r > 0xFFFF:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%04x\u%04x`, r1, r2)
		default:
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}
	return b.String()
}
