package tasks

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/pkg/apperr"
	"github.com/nexusesi/backend/pkg/storage"
)

// Upload is a file received with a progress or incident report.
type Upload struct {
	Name string
	Size int64
	Body io.Reader
}

func allowedExtensions() string {
	exts := make([]string, 0, len(storage.AllowedAttachmentExtensions))
	for ext := range storage.AllowedAttachmentExtensions {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}

func validateUpload(f *Upload) error {
	if f == nil {
		return nil
	}
	if _, ok := storage.ValidateAttachment(f.Name); !ok {
		return apperr.Invalid("file", "must be a file of type: "+allowedExtensions())
	}
	if f.Size > storage.MaxAttachmentSize {
		return apperr.Invalid("file", fmt.Sprintf("may not be greater than %d kilobytes", storage.MaxAttachmentSize/1024))
	}
	return nil
}

// putFile uploads f under the task's prefix and returns its key and original name.
func (s *Service) putFile(ctx context.Context, taskID uuid.UUID, kind string, objectID uuid.UUID, f *Upload) (*string, *string, error) {
	if f == nil {
		return nil, nil, nil
	}
	if s.files == nil {
		return nil, nil, apperr.Business("file attachments are not available")
	}
	contentType, _ := storage.ValidateAttachment(f.Name)
	key := storage.AttachmentKey(taskID.String(), kind, objectID.String(), f.Name)
	if err := s.files.Upload(ctx, key, contentType, f.Body, f.Size); err != nil {
		return nil, nil, fmt.Errorf("upload attachment: %w", err)
	}
	name := f.Name
	return &key, &name, nil
}

// dropFile removes an uploaded object whose row could not be saved.
func (s *Service) dropFile(ctx context.Context, key *string) {
	if key == nil || s.files == nil {
		return
	}
	if err := s.files.Delete(ctx, *key); err != nil {
		s.logger.Warn("orphaned attachment", zap.String("key", *key), zap.Error(err))
	}
}

// fileURL signs a download link. Failures leave the link empty.
func (s *Service) fileURL(ctx context.Context, key *string) string {
	if key == nil || s.files == nil {
		return ""
	}
	url, err := s.files.PresignDownload(ctx, *key)
	if err != nil {
		s.logger.Warn("presign failed", zap.String("key", *key), zap.Error(err))
		return ""
	}
	return url
}
