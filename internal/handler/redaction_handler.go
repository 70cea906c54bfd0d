package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"caseguard/internal/auditexport"
	"caseguard/internal/domain"
	"caseguard/internal/service"
)

// RedactionHandler exposes the redaction pipeline over HTTP.
type RedactionHandler struct {
	redactionService service.RedactionService
	maxFileBytes     int64
}

// NewRedactionHandler creates a new RedactionHandler. maxFileBytes caps the
// bytes read from an upload; 0 disables the cap.
func NewRedactionHandler(redactionService service.RedactionService, maxFileBytes int64) *RedactionHandler {
	return &RedactionHandler{redactionService: redactionService, maxFileBytes: maxFileBytes}
}

// ProcessDocument handles POST /api/v1/cases/:caseId/documents
func (h *RedactionHandler) ProcessDocument(c *gin.Context) {
	caseID := c.Param("caseId")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	var reader io.Reader = file
	if h.maxFileBytes > 0 {
		// One byte past the limit lets the service report the overflow.
		reader = io.LimitReader(file, h.maxFileBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "UNREADABLE_FILE", "file could not be read")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = domain.MIMETypeOctetStr
	}

	result, err := h.redactionService.ProcessDocumentForPII(c.Request.Context(), &service.ProcessDocumentInput{
		Data:         data,
		FileName:     header.Filename,
		MIMEType:     mimeType,
		CaseID:       caseID,
		SubmissionID: c.PostForm("submission_id"),
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, result)
}

// GetStatus handles GET /api/v1/cases/:caseId/redaction-status
func (h *RedactionHandler) GetStatus(c *gin.Context) {
	status, err := h.redactionService.GetCaseRedactionStatus(c.Request.Context(), c.Param("caseId"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, status)
}

// ExportAudits handles GET /api/v1/cases/:caseId/redaction-audits/export?format=xlsx|csv
func (h *RedactionHandler) ExportAudits(c *gin.Context) {
	caseID := c.Param("caseId")
	format := auditexport.Format(c.DefaultQuery("format", string(auditexport.FormatXLSX)))

	data, err := h.redactionService.ExportCaseAudits(c.Request.Context(), caseID, format)
	if err != nil {
		HandleError(c, err)
		return
	}
	filename := auditexport.BuildFilename(caseID, format, time.Now().UTC())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, format.ContentType(), data)
}
