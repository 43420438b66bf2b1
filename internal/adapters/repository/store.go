// Package repository persists profiles, questionnaires, reports and image
// metadata behind one Store interface.
package repository

import (
	"context"

	"github.com/okian/follicle/internal/domain/model"
)

// Counts summarizes what a store holds.
type Counts struct {
	Profiles       int `json:"profiles"`
	Questionnaires int `json:"questionnaires"`
	Reports        int `json:"reports"`
	Images         int `json:"images"`
}

// Store provides read/write access to assessment records.
//
// History methods return records newest first. A limit <= 0 means no limit.
// Lookups of unknown IDs return ErrNotFound.
type Store interface {
	// CreateProfile inserts p. Returns ErrConflict if the ID or UserID is taken.
	CreateProfile(ctx context.Context, p model.Profile) error
	// UpdateProfile replaces the mutable fields of an existing profile.
	UpdateProfile(ctx context.Context, p model.Profile) error
	Profile(ctx context.Context, id string) (model.Profile, error)
	ProfileByUser(ctx context.Context, userID string) (model.Profile, error)

	SaveQuestionnaire(ctx context.Context, q model.QuestionnaireRecord) error
	Questionnaire(ctx context.Context, id string) (model.QuestionnaireRecord, error)
	LatestQuestionnaire(ctx context.Context, profileID string) (model.QuestionnaireRecord, error)
	Questionnaires(ctx context.Context, profileID string, limit int) ([]model.QuestionnaireRecord, error)

	// SaveAssessment writes an optional questionnaire and its report
	// atomically. Either both are stored or neither is.
	SaveAssessment(ctx context.Context, q *model.QuestionnaireRecord, r model.ReportRecord) error
	Report(ctx context.Context, id string) (model.ReportRecord, error)
	LatestReport(ctx context.Context, profileID string) (model.ReportRecord, error)
	Reports(ctx context.Context, profileID string, limit int) ([]model.ReportRecord, error)

	AddImage(ctx context.Context, img model.ImageRecord) error
	Images(ctx context.Context, profileID string) ([]model.ImageRecord, error)
	DeleteImage(ctx context.Context, profileID, imageID string) error

	Counts(ctx context.Context) (Counts, error)
	Close() error
}
