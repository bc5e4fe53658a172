package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/testflowhq/testflow/backend/internal/middleware"
	"github.com/testflowhq/testflow/backend/internal/services"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

type EvidenceHandler struct {
	evidence *services.EvidenceService
}

func NewEvidenceHandler(evidence *services.EvidenceService) *EvidenceHandler {
	return &EvidenceHandler{evidence: evidence}
}

// Upload stores a multipart file as evidence for an execution or a bug.
// POST /api/projects/:id/evidence
func (h *EvidenceHandler) Upload(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	defer file.Close()

	req := &services.UploadEvidenceRequest{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		ExecutionID: optionalUintForm(c, "execution_id"),
		BugID:       optionalUintForm(c, "bug_id"),
		Body:        file,
	}

	ev, err := h.evidence.Upload(c.Request.Context(), middleware.GetUserID(c), projectID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ev)
}

// List returns evidence rows for an execution or a bug.
// GET /api/projects/:id/evidence
func (h *EvidenceHandler) List(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	items, err := h.evidence.List(middleware.GetUserID(c), projectID,
		optionalUintQuery(c, "execution_id"), optionalUintQuery(c, "bug_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}

// Download redirects to a presigned URL or streams the blob.
// GET /api/projects/:id/evidence/:evidenceID/download
func (h *EvidenceHandler) Download(c *gin.Context) {
	projectID, evidenceID, ok := childParam(c, "evidenceID", "invalid evidence id")
	if !ok {
		return
	}

	result, err := h.evidence.Download(c.Request.Context(), middleware.GetUserID(c), projectID, evidenceID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.URL != "" {
		c.Redirect(http.StatusFound, result.URL)
		return
	}

	defer result.Body.Close()
	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, result.SizeBytes, contentType, result.Body, map[string]string{
		"Content-Disposition": `attachment; filename="` + result.FileName + `"`,
	})
}

// Delete removes an evidence attachment.
// DELETE /api/projects/:id/evidence/:evidenceID
func (h *EvidenceHandler) Delete(c *gin.Context) {
	projectID, evidenceID, ok := childParam(c, "evidenceID", "invalid evidence id")
	if !ok {
		return
	}

	if err := h.evidence.Delete(c.Request.Context(), middleware.GetUserID(c), projectID, evidenceID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "evidence deleted"})
}

func optionalUintForm(c *gin.Context, name string) *uint {
	return parseOptionalUint(c.PostForm(name))
}

func optionalUintQuery(c *gin.Context, name string) *uint {
	return parseOptionalUint(c.Query(name))
}

func parseOptionalUint(raw string) *uint {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil
	}
	u := uint(v)
	return &u
}
