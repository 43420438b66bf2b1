package api

import (
	"net/http"

	"github.com/okian/follicle/internal/domain/model"
)

// profileRequest mirrors the OpenAPI schema for profile writes.
type profileRequest struct {
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Age    *int   `json:"age,omitempty"`
	Gender string `json:"gender,omitempty"`
}

func (p profileRequest) profile() model.Profile {
	return model.Profile{Name: p.Name, Email: p.Email, Age: p.Age, Gender: p.Gender}
}

// handleCreateProfile handles POST /profiles. With a user ID (the token
// subject, or user_id when auth is off) the user's existing profile is
// returned with 200 instead of creating a second one.
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_profile"
	var req profileRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	userID := req.UserID
	if sub, ok := SubjectFromContext(r.Context()); ok {
		userID = sub
	}

	if userID == "" {
		p, err := s.deps.CreateProfile(r.Context(), req.profile())
		if err != nil {
			s.fail(w, r, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusCreated, p)
		return
	}

	p, created, err := s.deps.GetOrCreateProfile(r.Context(), userID, req.profile())
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, p)
}

// handleGetProfile handles GET /profiles/{id}.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.authorizeProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, Wrap("api.get_profile", err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleUpdateProfile handles PUT /profiles/{id}.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_profile"
	id := r.PathValue("id")
	if _, err := s.authorizeProfile(r.Context(), id); err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	var req profileRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	in := req.profile()
	in.ID = id
	p, err := s.deps.UpdateProfile(r.Context(), in)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handlePostQuestionnaire handles POST /profiles/{id}/questionnaires.
func (s *Server) handlePostQuestionnaire(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_questionnaire"
	id := r.PathValue("id")
	if _, err := s.authorizeProfile(r.Context(), id); err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	var in model.Answers
	if err := decode(w, r, op, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.Validate(); err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	q, err := s.deps.SaveQuestionnaire(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// handleListQuestionnaires handles GET /profiles/{id}/questionnaires?limit=N.
func (s *Server) handleListQuestionnaires(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_questionnaires"
	id := r.PathValue("id")
	limit, err := limitParam(r, op)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.authorizeProfile(r.Context(), id); err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	list, err := s.deps.QuestionnaireHistory(r.Context(), id, limit)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleLatestQuestionnaire handles GET /profiles/{id}/questionnaires/latest.
func (s *Server) handleLatestQuestionnaire(w http.ResponseWriter, r *http.Request) {
	const op = "api.latest_questionnaire"
	id := r.PathValue("id")
	if _, err := s.authorizeProfile(r.Context(), id); err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	q, err := s.deps.LatestQuestionnaire(r.Context(), id)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// imageRequest mirrors the OpenAPI schema for POST /profiles/{id}/images.
type imageRequest struct {
	Label    model.ImageLabel `json:"label"`
	FileName string           `json:"file_name"`
	FilePath string           `json:"file_path"`
	FileSize *int64           `json:"file_size,omitempty"`
	MimeType string           `json:"mime_type,omitempty"`
}

// handlePostImage handles POST /profiles/{id}/images. Only metadata is
// stored; the bytes live wherever file_path points.
func (s *Server) handlePostImage(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_image"
	id := r.PathValue("id")
	if _, err := s.authorizeProfile(r.Context(), id); err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	var req imageRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	img, err := s.deps.AddImage(r.Context(), model.ImageRecord{
		ProfileID: id,
		Label:     req.Label,
		FileName:  req.FileName,
		FilePath:  req.FilePath,
		FileSize:  req.FileSize,
		MimeType:  req.MimeType,
	})
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

// handleListImages handles GET /profiles/{id}/images.
func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_images"
	id := r.PathValue("id")
	if _, err := s.authorizeProfile(r.Context(), id); err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	list, err := s.deps.Images(r.Context(), id)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	if list == nil {
		list = []model.ImageRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleDeleteImage handles DELETE /profiles/{id}/images/{imageID}.
func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_image"
	id := r.PathValue("id")
	if _, err := s.authorizeProfile(r.Context(), id); err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	if err := s.deps.DeleteImage(r.Context(), id, r.PathValue("imageID")); err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
