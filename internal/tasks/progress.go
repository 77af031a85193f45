package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/internal/policy"
	"github.com/nexusesi/backend/pkg/apperr"
)

// ReportProgress appends a progress entry to the actor's task. Task status is untouched.
func (s *Service) ReportProgress(ctx context.Context, actor policy.Actor, id uuid.UUID, description string, file *Upload) (*models.TaskProgress, error) {
	t, ev, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanWorkTask(actor, ev, t) {
		return nil, apperr.ErrForbidden
	}
	if strings.TrimSpace(description) == "" {
		return nil, apperr.Invalid("description", "is required")
	}
	if err := validateUpload(file); err != nil {
		return nil, err
	}
	p := &models.TaskProgress{ID: uuid.New(), TaskID: t.ID, UserID: actor.UserID, Description: strings.TrimSpace(description)}
	if p.FileKey, p.FileName, err = s.putFile(ctx, t.ID, "progress", p.ID, file); err != nil {
		return nil, err
	}
	if err := s.store.AddProgress(ctx, p); err != nil {
		s.dropFile(ctx, p.FileKey)
		return nil, fmt.Errorf("save progress: %w", err)
	}
	p.FileURL = s.fileURL(ctx, p.FileKey)
	return p, nil
}

// Progress lists a task's progress entries with signed file links.
func (s *Service) Progress(ctx context.Context, actor policy.Actor, id uuid.UUID) ([]models.TaskProgress, error) {
	t, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListProgress(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].FileURL = s.fileURL(ctx, list[i].FileKey)
	}
	return list, nil
}
