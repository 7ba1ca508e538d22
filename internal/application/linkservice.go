package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emiliorios/mpgateway/internal/domain/model"
	"github.com/emiliorios/mpgateway/internal/domain/port/driven"
)

// LinkService records mp-connect authorization lifecycle changes in the
// link store. The business consequences of a link change (enabling POS,
// invalidating tokens) live outside this service.
type LinkService struct {
	store  driven.LinkStore
	logger *slog.Logger
}

// NewLinkService creates a LinkService backed by the given store.
func NewLinkService(store driven.LinkStore, logger *slog.Logger) *LinkService {
	return &LinkService{store: store, logger: logger}
}

// Authorize marks the subject's account as linked.
func (s *LinkService) Authorize(ctx context.Context, subjectID string) error {
	now := time.Now().UTC()
	account := model.LinkedAccount{
		SubjectID: subjectID,
		Linked:    true,
		LinkedAt:  &now,
		UpdatedAt: now,
	}
	if err := s.store.Upsert(ctx, account); err != nil {
		return fmt.Errorf("record authorization for subject %s: %w", subjectID, err)
	}
	s.logger.Info("account linked", "subject_id", subjectID)
	return nil
}

// Deauthorize marks the subject's account as unlinked.
func (s *LinkService) Deauthorize(ctx context.Context, subjectID string) error {
	now := time.Now().UTC()
	account := model.LinkedAccount{
		SubjectID:  subjectID,
		Linked:     false,
		UnlinkedAt: &now,
		UpdatedAt:  now,
	}
	if err := s.store.Upsert(ctx, account); err != nil {
		return fmt.Errorf("record deauthorization for subject %s: %w", subjectID, err)
	}
	s.logger.Info("account unlinked", "subject_id", subjectID)
	return nil
}
