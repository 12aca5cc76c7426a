package handler

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/unchk/agrt-api/internal/models"
	"github.com/unchk/agrt-api/internal/service"
	appErrors "github.com/unchk/agrt-api/pkg/errors"
	"github.com/unchk/agrt-api/pkg/response"
)

type applicationService interface {
	Create(ctx context.Context, candidateID string, req service.CreateApplicationRequest) (*models.Application, error)
	Get(ctx context.Context, id, actorID string, actorRole models.UserRole) (*models.Application, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, *models.Pagination, error)
	Transition(ctx context.Context, id, actorID string, req service.TransitionRequest) (*models.Application, error)
	Update(ctx context.Context, id, actorID string, actorRole models.UserRole, req service.UpdateApplicationRequest) (*models.Application, error)
	AddDocument(ctx context.Context, applicationID, actorID string, actorRole models.UserRole, upload service.DocumentUpload) (*models.Document, error)
	RemoveDocument(ctx context.Context, applicationID, documentID, actorID string, actorRole models.UserRole) error
	DownloadDocument(ctx context.Context, applicationID, documentID, actorID string, actorRole models.UserRole) (*models.Document, *os.File, error)
	Cancel(ctx context.Context, id, actorID string, actorRole models.UserRole) error
	IsComplete(ctx context.Context, id, actorID string, actorRole models.UserRole) (bool, error)
	History(ctx context.Context, id, actorID string, actorRole models.UserRole) ([]models.ApplicationHistory, error)
}

type applicationExportService interface {
	ApplicationsCSV(ctx context.Context, filter models.ApplicationFilter) ([]byte, error)
	ApplicationsPDF(ctx context.Context, filter models.ApplicationFilter) ([]byte, error)
}

// ApplicationHandler exposes application lifecycle endpoints.
type ApplicationHandler struct {
	service applicationService
	exports applicationExportService
}

// NewApplicationHandler builds a new handler.
func NewApplicationHandler(svc applicationService, exports applicationExportService) *ApplicationHandler {
	return &ApplicationHandler{service: svc, exports: exports}
}

// Create godoc
// @Summary Submit an application with its documents
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body service.CreateApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /applications [post]
func (h *ApplicationHandler) Create(c *gin.Context) {
	var req service.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	app, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// List godoc
// @Summary List applications
// @Tags Applications
// @Produce json
// @Param announcement_id query string false "Filter by announcement"
// @Param academic_year_id query string false "Filter by academic year"
// @Param status query string false "Filter by status"
// @Param search query string false "Search by candidate name or email"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := h.filterFromQuery(c, claims)

	apps, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, pagination)
}

// Get godoc
// @Summary Get an application with documents and history
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	app, err := h.service.Get(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Update godoc
// @Summary Replace an application's type and document set
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.UpdateApplicationRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/{id} [put]
func (h *ApplicationHandler) Update(c *gin.Context) {
	var req service.UpdateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	app, err := h.service.Update(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Transition godoc
// @Summary Move an application to a new status
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.TransitionRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/{id}/status [put]
func (h *ApplicationHandler) Transition(c *gin.Context) {
	var req service.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transition payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	app, err := h.service.Transition(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Cancel godoc
// @Summary Cancel an application, removing its documents and history
// @Tags Applications
// @Param id path string true "Application ID"
// @Success 204
// @Security BearerAuth
// @Router /applications/{id} [delete]
func (h *ApplicationHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Cancel(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Complete godoc
// @Summary Check whether an application's document set is complete
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/{id}/complete [get]
func (h *ApplicationHandler) Complete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	complete, err := h.service.IsComplete(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"complete": complete}, nil)
}

// History godoc
// @Summary Get an application's status history
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/{id}/history [get]
func (h *ApplicationHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	history, err := h.service.History(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// AddDocument godoc
// @Summary Attach a document to an application
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.DocumentUpload true "Document payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/{id}/documents [post]
func (h *ApplicationHandler) AddDocument(c *gin.Context) {
	var upload service.DocumentUpload
	if err := c.ShouldBindJSON(&upload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	doc, err := h.service.AddDocument(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// RemoveDocument godoc
// @Summary Detach a document from an application
// @Tags Applications
// @Param id path string true "Application ID"
// @Param documentId path string true "Document ID"
// @Success 204
// @Security BearerAuth
// @Router /applications/{id}/documents/{documentId} [delete]
func (h *ApplicationHandler) RemoveDocument(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.RemoveDocument(c.Request.Context(), c.Param("id"), c.Param("documentId"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DownloadDocument godoc
// @Summary Download a stored document
// @Tags Applications
// @Produce octet-stream
// @Param id path string true "Application ID"
// @Param documentId path string true "Document ID"
// @Success 200
// @Security BearerAuth
// @Router /applications/{id}/documents/{documentId}/file [get]
func (h *ApplicationHandler) DownloadDocument(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	doc, file, err := h.service.DownloadDocument(c.Request.Context(), c.Param("id"), c.Param("documentId"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	c.DataFromReader(http.StatusOK, doc.FileSize, doc.MimeType, file, nil)
}

// ExportCSV godoc
// @Summary Export applications as CSV
// @Tags Applications
// @Produce text/csv
// @Success 200
// @Security BearerAuth
// @Router /applications/export/csv [get]
func (h *ApplicationHandler) ExportCSV(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	data, err := h.exports.ApplicationsCSV(c.Request.Context(), h.filterFromQuery(c, claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="applications.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// ExportPDF godoc
// @Summary Export applications as PDF
// @Tags Applications
// @Produce application/pdf
// @Success 200
// @Security BearerAuth
// @Router /applications/export/pdf [get]
func (h *ApplicationHandler) ExportPDF(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	data, err := h.exports.ApplicationsPDF(c.Request.Context(), h.filterFromQuery(c, claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="applications.pdf"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// filterFromQuery builds an ApplicationFilter from query params. Candidates
// are always scoped to their own applications.
func (h *ApplicationHandler) filterFromQuery(c *gin.Context, claims *models.JWTClaims) models.ApplicationFilter {
	filter := models.ApplicationFilter{
		AnnouncementID: c.Query("announcement_id"),
		AcademicYearID: c.Query("academic_year_id"),
		Search:         c.Query("search"),
		Page:           queryInt(c, "page", 1),
		PageSize:       queryInt(c, "page_size", 20),
	}
	if status := c.Query("status"); status != "" {
		s := models.ApplicationStatus(status)
		filter.Status = &s
	}
	if claims.Role == models.RoleAdmin {
		filter.CandidateID = c.Query("candidate_id")
	} else {
		filter.CandidateID = claims.UserID
	}
	return filter
}
