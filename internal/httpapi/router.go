// Package httpapi serves the upload-credential endpoint and document status polling.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Lllllllleong/documentindexflow/internal/models"
	"github.com/Lllllllleong/documentindexflow/internal/services"
	"github.com/gin-gonic/gin"
)

// Uploads is what the router needs from the upload coordinator.
type Uploads interface {
	IssueUpload(ctx context.Context, req services.UploadRequest) (*services.UploadGrant, error)
	Status(ctx context.Context, documentID string) (*models.DocumentRecord, error)
}

// RouterConfig decides how callers are identified for rate limiting.
type RouterConfig struct {
	// ClientIDHeader is honoured only when set; it must name a header that a fronting
	// gateway overwrites on every request.
	ClientIDHeader string
	// TrustedProxies may set X-Forwarded-For. When empty the remote address is used.
	TrustedProxies []string
}

type Handler struct {
	uploads        Uploads
	clientIDHeader string
}

func NewHandler(uploads Uploads, clientIDHeader string) *Handler {
	return &Handler{uploads: uploads, clientIDHeader: clientIDHeader}
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(uploads Uploads, cfg RouterConfig) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(gin.Recovery())
	router.Use(ErrorMiddleware())

	h := NewHandler(uploads, cfg.ClientIDHeader)
	router.POST("/uploads", h.CreateUpload)
	router.GET("/documents/:id", h.GetDocument)
	return router, nil
}

// ErrorMiddleware renders the last error a handler attached as an ErrorResponse.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		appErr := toAppError(c.Errors.Last().Err)
		if appErr.Status >= http.StatusInternalServerError {
			slog.Error("Request failed.", "path", c.FullPath(), "error", appErr.Error())
		}
		c.JSON(appErr.Status, models.ErrorResponse{
			Error:   http.StatusText(appErr.Status),
			Message: appErr.Message,
			Code:    appErr.Code,
		})
	}
}

func (h *Handler) CreateUpload(c *gin.Context) {
	var body models.UploadURLRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(WrapError(err, CodeValidation, "Request body must be JSON with a filename", http.StatusBadRequest))
		return
	}

	grant, err := h.uploads.IssueUpload(c.Request.Context(), services.UploadRequest{
		Filename:    body.Filename,
		ContentType: body.ContentType,
		ClientID:    h.clientID(c),
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, models.UploadURLResponse{
		UploadURL:  grant.UploadURL,
		DocumentID: grant.DocumentID,
		ObjectKey:  grant.ObjectKey,
		ExpiresIn:  int(grant.ExpiresIn.Seconds()),
	})
}

func (h *Handler) GetDocument(c *gin.Context) {
	rec, err := h.uploads.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.DocumentStatusResponse{
		DocumentID:      rec.DocumentID,
		Filename:        rec.Filename,
		Status:          rec.Status,
		ExtractionJobID: rec.ExtractionJobID,
		ErrorMessage:    rec.ErrorMessage,
		ChunkCount:      rec.ChunkCount,
		UpdatedAt:       rec.UpdatedAt,
	})
}

// clientID is the rate-limit identity of the caller.
func (h *Handler) clientID(c *gin.Context) string {
	if h.clientIDHeader != "" {
		if id := strings.TrimSpace(c.GetHeader(h.clientIDHeader)); id != "" {
			return id
		}
	}
	return c.ClientIP()
}
