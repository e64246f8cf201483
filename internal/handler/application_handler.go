package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edumarket/tutorhub-api/internal/dto"
	"github.com/edumarket/tutorhub-api/internal/models"
	appErrors "github.com/edumarket/tutorhub-api/pkg/errors"
	"github.com/edumarket/tutorhub-api/pkg/response"
)

type applicationService interface {
	Submit(ctx context.Context, req dto.SubmitApplicationRequest) (*dto.SubmitApplicationResponse, error)
	ListPending(ctx context.Context) ([]dto.PendingApplicationResponse, error)
	Approve(ctx context.Context, id string) (*dto.ResolveApplicationResponse, error)
	Reject(ctx context.Context, id string) (*dto.ResolveApplicationResponse, error)
	FetchDocument(ctx context.Context, appID string, kind models.DocumentKind, position int) (*models.ApplicationDocument, io.ReadCloser, error)
	OpenSigned(token string) (io.ReadCloser, error)
	Export(ctx context.Context, filter models.ApplicationFilter, format string) (filename, contentType string, payload []byte, err error)
}

// ApplicationHandler wires the tutor application lifecycle to HTTP routes.
type ApplicationHandler struct {
	applications applicationService
}

// NewApplicationHandler constructs a new ApplicationHandler.
func NewApplicationHandler(applications applicationService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications}
}

// Submit godoc
// @Summary Submit a tutor application
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body dto.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Router /applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	var req dto.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}
	resp, err := h.applications.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// ListPending godoc
// @Summary List pending applications with document links
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /applications/pending [get]
func (h *ApplicationHandler) ListPending(c *gin.Context) {
	pending, err := h.applications.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil)
}

// Approve godoc
// @Summary Approve a pending application
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/approve [patch]
func (h *ApplicationHandler) Approve(c *gin.Context) {
	resp, err := h.applications.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Reject godoc
// @Summary Reject a pending application
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/reject [patch]
func (h *ApplicationHandler) Reject(c *gin.Context) {
	resp, err := h.applications.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Document godoc
// @Summary Stream one application document
// @Tags Applications
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Param docType path string true "Document kind (resume,id_proof,certification)"
// @Param index path int false "Certification index"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /applications/{id}/documents/{docType} [get]
func (h *ApplicationHandler) Document(c *gin.Context) {
	kind, ok := documentKind(c.Param("docType"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown document type"))
		return
	}

	position := 0
	if raw := c.Param("index"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid document index"))
			return
		}
		position = parsed
	}

	doc, rc, err := h.applications.FetchDocument(c.Request.Context(), c.Param("id"), kind, position)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	contentType := doc.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}

// documentKind maps a docType path token to its document kind. Legacy
// clients use camel-case and plural spellings; both are accepted.
func documentKind(token string) (models.DocumentKind, bool) {
	switch token {
	case "resume":
		return models.DocumentResume, true
	case "id_proof", "idProof":
		return models.DocumentIDProof, true
	case "certification", "certifications":
		return models.DocumentCertification, true
	default:
		return "", false
	}
}

// Download streams the document behind a signed token. The token is
// the only credential; the route itself is public.
func (h *ApplicationHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing token"))
		return
	}
	rc, err := h.applications.OpenSigned(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}

// Export godoc
// @Summary Export applications as CSV or PDF
// @Tags Applications
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "Export format (csv,pdf)"
// @Param status query string false "Filter by status"
// @Success 200 {file} binary
// @Router /applications/export [get]
func (h *ApplicationHandler) Export(c *gin.Context) {
	filter := models.ApplicationFilter{
		Status: models.ApplicationStatus(c.Query("status")),
		Search: c.Query("search"),
	}
	filename, contentType, payload, err := h.applications.Export(c.Request.Context(), filter, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, payload)
}
