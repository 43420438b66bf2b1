package model

import "time"

// Profile identifies the person an assessment belongs to.
type Profile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Age       *int      `json:"age,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuestionnaireRecord is a stored questionnaire submission.
type QuestionnaireRecord struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	Answers   Answers   `json:"answers"`
	CreatedAt time.Time `json:"created_at"`
}

// ImageLabel names the view an uploaded photo shows.
type ImageLabel string

// Image labels accepted by the upload form.
const (
	LabelFrontHairline ImageLabel = "front_hairline"
	LabelCrownTop      ImageLabel = "crown_top"
	LabelSideView      ImageLabel = "side_view"
	LabelScalpCloseup  ImageLabel = "scalp_closeup"
)

// Valid reports whether l is a known label.
func (l ImageLabel) Valid() bool {
	switch l {
	case LabelFrontHairline, LabelCrownTop, LabelSideView, LabelScalpCloseup:
		return true
	}
	return false
}

// ImageRecord is metadata for an uploaded photo. The bytes live elsewhere.
type ImageRecord struct {
	ID        string     `json:"id"`
	ProfileID string     `json:"profile_id"`
	Label     ImageLabel `json:"label"`
	FileName  string     `json:"file_name"`
	FilePath  string     `json:"file_path"`
	FileSize  *int64     `json:"file_size,omitempty"`
	MimeType  string     `json:"mime_type,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ImageRef points the external signal service at a photo.
type ImageRef struct {
	Label ImageLabel `json:"label"`
	URL   string     `json:"url"`
}

// UserInfo is the demographic context sent with a signal request.
type UserInfo struct {
	Age    *int   `json:"age"`
	Gender string `json:"gender,omitempty"`
}
