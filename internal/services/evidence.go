package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/pkg/logger"
	"github.com/testflowhq/testflow/backend/pkg/response"
	"github.com/testflowhq/testflow/backend/pkg/storage"
)

const presignExpire = 15 * time.Minute

// EvidenceService stores execution and bug attachments in the configured
// blob backend and tracks their metadata rows.
type EvidenceService struct {
	db       *gorm.DB
	store    storage.Store
	maxBytes int64
}

func NewEvidenceService(db *gorm.DB, store storage.Store, maxUploadMB int64) *EvidenceService {
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	return &EvidenceService{db: db, store: store, maxBytes: maxUploadMB << 20}
}

type UploadEvidenceRequest struct {
	FileName    string
	ContentType string
	Size        int64
	ExecutionID *uint
	BugID       *uint
	Body        io.Reader
}

// DownloadResult carries either a presigned URL or a stream to proxy.
type DownloadResult struct {
	URL         string
	Body        io.ReadCloser
	FileName    string
	ContentType string
	SizeBytes   int64
}

// Upload attaches a file to an execution or a bug. Exactly one anchor must be
// given. Approvers have read-only standing and may not upload.
func (s *EvidenceService) Upload(ctx context.Context, userID, projectID uint, req *UploadEvidenceRequest) (*models.Evidence, error) {
	access, err := resolveAccess(s.db, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !access.canAuthor() {
		return nil, response.NewForbidden("approver may not upload evidence")
	}

	if (req.ExecutionID == nil) == (req.BugID == nil) {
		return nil, response.NewBadRequest("evidence must reference exactly one of execution or bug")
	}
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		return nil, response.NewBadRequest("file name is required")
	}
	if req.Size > s.maxBytes {
		return nil, response.NewBadRequest(fmt.Sprintf("file exceeds the %d MB upload limit", s.maxBytes>>20))
	}

	if req.ExecutionID != nil {
		var count int64
		s.db.Model(&models.Execution{}).
			Where("id = ? AND project_id = ?", *req.ExecutionID, projectID).
			Count(&count)
		if count == 0 {
			return nil, response.NewNotFound("execution not found")
		}
	}
	if req.BugID != nil {
		var count int64
		s.db.Model(&models.Bug{}).
			Where("id = ? AND project_id = ?", *req.BugID, projectID).
			Count(&count)
		if count == 0 {
			return nil, response.NewNotFound("bug not found")
		}
	}

	key := fmt.Sprintf("projects/%d/evidence/%s%s", projectID, uuid.NewString(), filepath.Ext(fileName))

	body := req.Body
	if s.maxBytes > 0 {
		// Guard against clients lying about Content-Length.
		body = io.LimitReader(body, s.maxBytes+1)
	}
	if err := s.store.Put(ctx, key, body, req.Size, req.ContentType); err != nil {
		return nil, err
	}

	ev := &models.Evidence{
		ProjectID:   projectID,
		ExecutionID: req.ExecutionID,
		BugID:       req.BugID,
		FileName:    fileName,
		ObjectKey:   key,
		ContentType: req.ContentType,
		SizeBytes:   req.Size,
		UploadedBy:  userID,
	}
	if err := s.db.Create(ev).Error; err != nil {
		// Metadata write failed; drop the orphaned blob.
		if derr := s.store.Delete(ctx, key); derr != nil {
			logger.Warn().Err(derr).Str("key", key).Msg("Failed to remove orphaned evidence blob")
		}
		return nil, err
	}
	return ev, nil
}

// List returns the evidence attached to an execution or a bug.
func (s *EvidenceService) List(userID, projectID uint, executionID, bugID *uint) ([]models.Evidence, error) {
	if _, err := resolveAccess(s.db, projectID, userID); err != nil {
		return nil, err
	}

	query := s.db.Where("project_id = ?", projectID)
	if executionID != nil {
		query = query.Where("execution_id = ?", *executionID)
	}
	if bugID != nil {
		query = query.Where("bug_id = ?", *bugID)
	}

	var items []models.Evidence
	if err := query.Preload("Uploader").Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Download resolves the evidence to a presigned URL when the backend supports
// it, otherwise to a stream the handler proxies.
func (s *EvidenceService) Download(ctx context.Context, userID, projectID, evidenceID uint) (*DownloadResult, error) {
	if _, err := resolveAccess(s.db, projectID, userID); err != nil {
		return nil, err
	}

	ev, err := s.find(projectID, evidenceID)
	if err != nil {
		return nil, err
	}

	url, err := s.store.PresignURL(ctx, ev.ObjectKey, presignExpire)
	if err != nil {
		return nil, err
	}
	if url != "" {
		return &DownloadResult{URL: url, FileName: ev.FileName, ContentType: ev.ContentType, SizeBytes: ev.SizeBytes}, nil
	}

	body, err := s.store.Get(ctx, ev.ObjectKey)
	if err != nil {
		return nil, err
	}
	return &DownloadResult{Body: body, FileName: ev.FileName, ContentType: ev.ContentType, SizeBytes: ev.SizeBytes}, nil
}

// Delete removes the metadata row and the blob. Uploader or administrative
// members only.
func (s *EvidenceService) Delete(ctx context.Context, userID, projectID, evidenceID uint) error {
	access, err := resolveAccess(s.db, projectID, userID)
	if err != nil {
		return err
	}

	ev, err := s.find(projectID, evidenceID)
	if err != nil {
		return err
	}
	if ev.UploadedBy != userID && !access.canManage() {
		return response.NewForbidden("only the uploader or a manager may delete evidence")
	}

	if err := s.db.Delete(ev).Error; err != nil {
		return err
	}
	if err := s.store.Delete(ctx, ev.ObjectKey); err != nil {
		logger.Warn().Err(err).Str("key", ev.ObjectKey).Msg("Failed to delete evidence blob")
	}
	return nil
}

func (s *EvidenceService) find(projectID, evidenceID uint) (*models.Evidence, error) {
	var ev models.Evidence
	if err := s.db.Where("project_id = ?", projectID).First(&ev, evidenceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("evidence not found")
		}
		return nil, err
	}
	return &ev, nil
}
