package dto

import "time"

// Response represents a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Details   []ValidationDetail `json:"details,omitempty"`
	// Diagnostic carries the generation diagnostic of a failed document
	Diagnostic any `json:"diagnostic,omitempty"`
	// Fallback lists URLs of the printable HTML when the PDF could not be produced
	Fallback *FallbackLinks `json:"fallback,omitempty"`
}

// ValidationDetail describes one rejected request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FallbackLinks points a client at the printable HTML of a document
type FallbackLinks struct {
	Preview string `json:"preview"`
	Print   string `json:"print"`
	Hint    string `json:"hint"`
}

// Meta represents list metadata
type Meta struct {
	Total int `json:"total"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewListResponse creates a success response carrying the item count
func NewListResponse(data any, total int) Response {
	return Response{
		Success: true,
		Data:    data,
		Meta:    &Meta{Total: total},
	}
}

// NewErrorResponse creates an error response, normalizing domain error codes
func NewErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      NormalizeErrorCode(code),
			Message:   message,
			Timestamp: time.Now().UTC(),
		},
	}
}

// NewErrorResponseWithRequestID creates an error response tagged with the request ID
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	resp := NewErrorResponse(code, message)
	resp.Error.RequestID = requestID
	return resp
}

// NewValidationErrorResponse creates a 400 response listing the rejected fields
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	resp := NewErrorResponseWithRequestID(ErrCodeValidation, message, requestID)
	resp.Error.Details = details
	return resp
}

// NewGenerationErrorResponse creates the response of a failed document generation
func NewGenerationErrorResponse(message, requestID string, diagnostic any, fallback *FallbackLinks) Response {
	resp := NewErrorResponseWithRequestID(ErrCodeGenerationFailed, message, requestID)
	resp.Error.Diagnostic = diagnostic
	resp.Error.Fallback = fallback
	return resp
}

// =============================================================================
// Request DTOs
// =============================================================================

// DocumentURI binds the document path parameters
type DocumentURI struct {
	ID string `uri:"id" binding:"required,slug"`
}

// VariantURI binds the document and variant path parameters
type VariantURI struct {
	ID      string `uri:"id" binding:"required,slug"`
	Variant string `uri:"variant" binding:"required,variant"`
}

// PreviewQuery binds the preview query string
type PreviewQuery struct {
	Print bool `form:"print"`
}

// BatchRequest is the body of POST /batches
type BatchRequest struct {
	IDs      []string `json:"ids" binding:"required,min=1,dive,slug"`
	Variant  string   `json:"variant" binding:"required,variant"`
	Category string   `json:"category" binding:"omitempty,max=64,slug"`
}

// PreloadRequest is the body of POST /preload
type PreloadRequest struct {
	IDs      []string `json:"ids" binding:"required,min=1,dive,slug"`
	Variants []string `json:"variants" binding:"omitempty,dive,variant"`
	DelayMS  int      `json:"delay_ms" binding:"min=0,max=60000"`
}

// =============================================================================
// Response DTOs
// =============================================================================

// StateResponse reports the generation state of one variant
type StateResponse struct {
	ID      string `json:"id"`
	Variant string `json:"variant"`
	State   string `json:"state"`
}

// BatchFailureHeader is one entry of the X-Batch-Failures header
type BatchFailureHeader struct {
	Position int    `json:"position"`
	Slug     string `json:"slug"`
	Name     string `json:"name,omitempty"`
	Message  string `json:"message"`
}

// PreloadResponse acknowledges a scheduled preload
type PreloadResponse struct {
	Steps int `json:"steps"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Documents int    `json:"documents"`
}
