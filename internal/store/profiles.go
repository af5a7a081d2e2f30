package store

import (
	"context"

	"github.com/localnerve/vaxtrack/internal/models"
	"github.com/localnerve/vaxtrack/internal/types"
	"go.uber.org/zap"
)

// EnsureProfile returns the profile for seed.ID, creating it with role=user
// when absent. The seed's role is ignored; roles are never self-service.
func (s *Store) EnsureProfile(ctx context.Context, seed models.Profile) (*models.Profile, error) {
	if seed.ID == "" {
		return nil, types.Validation("id", "identity is required")
	}

	var profile models.Profile
	err := tag(s.app.WithContext(ctx), "select", "profiles.ensure").
		Where(models.Profile{ID: seed.ID}).
		Attrs(models.Profile{
			Email:    seed.Email,
			FullName: seed.FullName,
			Role:     models.RoleUser,
		}).
		FirstOrCreate(&profile).Error
	if err != nil {
		return nil, mapError("ensure profile", err)
	}

	if profile.Role == "" {
		profile.Role = models.RoleUser
	}
	return &profile, nil
}

// ListProfiles is the owner directory offered to admins
func (s *Store) ListProfiles(ctx context.Context, caller Caller) ([]models.Profile, error) {
	if !caller.Admin {
		return nil, types.AccessDenied("owner directory requires the admin role")
	}

	var profiles []models.Profile
	err := tag(s.app.WithContext(ctx), "select", "profiles.list").
		Order("email ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, mapError("list profiles", err)
	}
	return profiles, nil
}

// attachOwners loads owner profiles through the app pool.
// Failure leaves Owner unset and is only logged.
func (s *Store) attachOwners(ctx context.Context, records []models.VaccinationRecord) {
	if len(records) == 0 {
		return
	}

	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.UserID]; !ok {
			seen[r.UserID] = struct{}{}
			ids = append(ids, r.UserID)
		}
	}

	var profiles []models.Profile
	err := tag(s.app.WithContext(ctx), "select", "profiles.owners").
		Where("id IN ?", ids).
		Find(&profiles).Error
	if err != nil {
		s.log.Warn("owner lookup failed", zap.Error(err))
		return
	}

	byID := make(map[string]*models.Profile, len(profiles))
	for i := range profiles {
		byID[profiles[i].ID] = &profiles[i]
	}
	for i := range records {
		records[i].Owner = byID[records[i].UserID]
	}
}
