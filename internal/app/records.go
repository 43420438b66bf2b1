package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/okian/follicle/internal/domain/model"
)

// CreateProfile stores a new profile. Name and email are required; ID and
// timestamps are assigned here.
func (s *Service) CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error) { //nolint:gocritic // hugeParam
	if err := validateProfile(p, true); err != nil {
		return model.Profile{}, err
	}
	return s.createProfile(ctx, p)
}

func (s *Service) createProfile(ctx context.Context, p model.Profile) (model.Profile, error) { //nolint:gocritic // hugeParam
	now := s.now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := s.store.CreateProfile(ctx, p); err != nil {
		return model.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

// UpdateProfile replaces the editable fields of profile p.ID.
func (s *Service) UpdateProfile(ctx context.Context, p model.Profile) (model.Profile, error) { //nolint:gocritic // hugeParam
	if err := validateProfile(p, true); err != nil {
		return model.Profile{}, err
	}
	cur, err := s.store.Profile(ctx, p.ID)
	if err != nil {
		return model.Profile{}, fmt.Errorf("update profile %s: %w", p.ID, err)
	}
	cur.Name, cur.Email, cur.Age, cur.Gender = p.Name, p.Email, p.Age, p.Gender
	cur.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateProfile(ctx, cur); err != nil {
		return model.Profile{}, fmt.Errorf("update profile %s: %w", p.ID, err)
	}
	return cur, nil
}

// Profile returns a profile by ID.
func (s *Service) Profile(ctx context.Context, id string) (model.Profile, error) {
	return s.store.Profile(ctx, id)
}

// ProfileByUser returns the profile owned by an authenticated user.
func (s *Service) ProfileByUser(ctx context.Context, userID string) (model.Profile, error) {
	return s.store.ProfileByUser(ctx, userID)
}

// GetOrCreateProfile returns the profile of userID, creating it from p when
// none exists. created reports whether a new profile was stored. A new
// profile needs only an email; the name may be filled in later.
func (s *Service) GetOrCreateProfile(ctx context.Context, userID string, p model.Profile) (model.Profile, bool, error) { //nolint:gocritic // hugeParam
	if userID == "" {
		return model.Profile{}, false, fmt.Errorf("%w: user id is required", ErrInvalidProfile)
	}
	existing, err := s.store.ProfileByUser(ctx, userID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.Profile{}, false, fmt.Errorf("get profile for user %s: %w", userID, err)
	}

	p.UserID = userID
	if err := validateProfile(p, false); err != nil {
		return model.Profile{}, false, err
	}
	created, err := s.createProfile(ctx, p)
	if errors.Is(err, ErrConflict) {
		// lost a race with a concurrent create for the same user
		existing, err = s.store.ProfileByUser(ctx, userID)
		return existing, false, err
	}
	if err != nil {
		return model.Profile{}, false, err
	}
	return created, true, nil
}

func validateProfile(p model.Profile, requireName bool) error { //nolint:gocritic // hugeParam
	var missing []string
	if requireName && strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidProfile, strings.Join(missing, ", "))
	}
	if p.Age != nil && (*p.Age < 0 || *p.Age > 150) {
		return fmt.Errorf("%w: age out of range", ErrInvalidProfile)
	}
	return nil
}

// SaveQuestionnaire stores answers for a profile without scoring them.
func (s *Service) SaveQuestionnaire(ctx context.Context, profileID string, answers model.Answers) (model.QuestionnaireRecord, error) {
	q := model.QuestionnaireRecord{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		Answers:   answers,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.SaveQuestionnaire(ctx, q); err != nil {
		return model.QuestionnaireRecord{}, fmt.Errorf("save questionnaire: %w", err)
	}
	return q, nil
}

// LatestQuestionnaire returns the most recent questionnaire of a profile.
func (s *Service) LatestQuestionnaire(ctx context.Context, profileID string) (model.QuestionnaireRecord, error) {
	return s.store.LatestQuestionnaire(ctx, profileID)
}

// QuestionnaireHistory returns questionnaires newest first.
func (s *Service) QuestionnaireHistory(ctx context.Context, profileID string, limit int) ([]model.QuestionnaireRecord, error) {
	if _, err := s.store.Profile(ctx, profileID); err != nil {
		return nil, err
	}
	return s.store.Questionnaires(ctx, profileID, s.historyLimit(limit))
}

// Report returns a stored report by ID.
func (s *Service) Report(ctx context.Context, id string) (model.ReportRecord, error) {
	return s.store.Report(ctx, id)
}

// LatestReport returns the most recent report of a profile.
func (s *Service) LatestReport(ctx context.Context, profileID string) (model.ReportRecord, error) {
	return s.store.LatestReport(ctx, profileID)
}

// ReportHistory returns reports newest first.
func (s *Service) ReportHistory(ctx context.Context, profileID string, limit int) ([]model.ReportRecord, error) {
	if _, err := s.store.Profile(ctx, profileID); err != nil {
		return nil, err
	}
	return s.store.Reports(ctx, profileID, s.historyLimit(limit))
}

// AddImage stores metadata of an uploaded photo.
func (s *Service) AddImage(ctx context.Context, img model.ImageRecord) (model.ImageRecord, error) { //nolint:gocritic // hugeParam
	if !img.Label.Valid() {
		return model.ImageRecord{}, fmt.Errorf("%w: unknown label %q", ErrInvalidImage, img.Label)
	}
	if strings.TrimSpace(img.FileName) == "" || strings.TrimSpace(img.FilePath) == "" {
		return model.ImageRecord{}, fmt.Errorf("%w: file name and path are required", ErrInvalidImage)
	}
	if img.FileSize != nil && *img.FileSize < 0 {
		return model.ImageRecord{}, fmt.Errorf("%w: negative file size", ErrInvalidImage)
	}
	img.ID = uuid.NewString()
	img.CreatedAt = s.now().UTC()
	if err := s.store.AddImage(ctx, img); err != nil {
		return model.ImageRecord{}, fmt.Errorf("add image: %w", err)
	}
	return img, nil
}

// Images lists image metadata of a profile in upload order.
func (s *Service) Images(ctx context.Context, profileID string) ([]model.ImageRecord, error) {
	if _, err := s.store.Profile(ctx, profileID); err != nil {
		return nil, err
	}
	return s.store.Images(ctx, profileID)
}

// DeleteImage removes image metadata.
func (s *Service) DeleteImage(ctx context.Context, profileID, imageID string) error {
	return s.store.DeleteImage(ctx, profileID, imageID)
}
