package service

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/Harshitk-cp/psychograph/internal/store"
	"github.com/google/uuid"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileService is the read side of fused profiles.
type ProfileService struct {
	profiles domain.ProfileStore
	audits   domain.ProfileAuditStore
}

func NewProfileService(profiles domain.ProfileStore, audits domain.ProfileAuditStore) *ProfileService {
	return &ProfileService{profiles: profiles, audits: audits}
}

func (s *ProfileService) Get(ctx context.Context, tenantID uuid.UUID, userID string) (*domain.FusedProfile, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	p, err := s.profiles.Get(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *ProfileService) History(ctx context.Context, tenantID uuid.UUID, userID string, limit int) ([]domain.ProfileUpdateAudit, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	return s.audits.ListByUser(ctx, tenantID, userID, limit)
}

// Similar finds users whose latest behavioral features are closest to this
// user's.
func (s *ProfileService) Similar(ctx context.Context, tenantID uuid.UUID, userID string, limit int) ([]domain.ProfileWithScore, error) {
	p, err := s.Get(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if len(p.Features) == 0 {
		return []domain.ProfileWithScore{}, nil
	}
	return s.profiles.FindSimilar(ctx, tenantID, p.Features, userID, limit)
}
