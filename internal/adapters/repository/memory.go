package repository

import (
	"context"
	"sync"

	"github.com/okian/follicle/internal/domain/model"
)

// MemoryStore is a mutex-guarded in-process Store. Records per profile are
// kept in insertion order so history is returned newest first without
// sorting.
type MemoryStore struct {
	mu     sync.RWMutex
	closed bool

	profiles     map[string]model.Profile
	profileByUID map[string]string

	questionnaires map[string]model.QuestionnaireRecord
	qByProfile     map[string][]string

	reports    map[string]model.ReportRecord
	rByProfile map[string][]string

	images map[string][]model.ImageRecord
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:       make(map[string]model.Profile),
		profileByUID:   make(map[string]string),
		questionnaires: make(map[string]model.QuestionnaireRecord),
		qByProfile:     make(map[string][]string),
		reports:        make(map[string]model.ReportRecord),
		rByProfile:     make(map[string][]string),
		images:         make(map[string][]model.ImageRecord),
	}
}

func (s *MemoryStore) CreateProfile(_ context.Context, p model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.profiles[p.ID]; ok {
		return ErrConflict
	}
	if p.UserID != "" {
		if _, ok := s.profileByUID[p.UserID]; ok {
			return ErrConflict
		}
		s.profileByUID[p.UserID] = p.ID
	}
	s.profiles[p.ID] = p
	return nil
}

func (s *MemoryStore) UpdateProfile(_ context.Context, p model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	cur, ok := s.profiles[p.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Name = p.Name
	cur.Email = p.Email
	cur.Age = p.Age
	cur.Gender = p.Gender
	cur.UpdatedAt = p.UpdatedAt
	s.profiles[p.ID] = cur
	return nil
}

func (s *MemoryStore) Profile(_ context.Context, id string) (model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) ProfileByUser(ctx context.Context, userID string) (model.Profile, error) {
	s.mu.RLock()
	id, ok := s.profileByUID[userID]
	s.mu.RUnlock()
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	return s.Profile(ctx, id)
}

func (s *MemoryStore) SaveQuestionnaire(_ context.Context, q model.QuestionnaireRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWritable(q.ProfileID); err != nil {
		return err
	}
	return s.putQuestionnaire(q)
}

func (s *MemoryStore) putQuestionnaire(q model.QuestionnaireRecord) error {
	if _, ok := s.questionnaires[q.ID]; ok {
		return ErrConflict
	}
	s.questionnaires[q.ID] = q
	s.qByProfile[q.ProfileID] = append(s.qByProfile[q.ProfileID], q.ID)
	return nil
}

func (s *MemoryStore) Questionnaire(_ context.Context, id string) (model.QuestionnaireRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questionnaires[id]
	if !ok {
		return model.QuestionnaireRecord{}, ErrNotFound
	}
	return q, nil
}

func (s *MemoryStore) LatestQuestionnaire(ctx context.Context, profileID string) (model.QuestionnaireRecord, error) {
	list, err := s.Questionnaires(ctx, profileID, 1)
	if err != nil {
		return model.QuestionnaireRecord{}, err
	}
	if len(list) == 0 {
		return model.QuestionnaireRecord{}, ErrNotFound
	}
	return list[0], nil
}

func (s *MemoryStore) Questionnaires(_ context.Context, profileID string, limit int) ([]model.QuestionnaireRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := newestFirst(s.qByProfile[profileID], limit)
	out := make([]model.QuestionnaireRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.questionnaires[id])
	}
	return out, nil
}

func (s *MemoryStore) SaveAssessment(_ context.Context, q *model.QuestionnaireRecord, r model.ReportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWritable(r.ProfileID); err != nil {
		return err
	}
	if _, ok := s.reports[r.ID]; ok {
		return ErrConflict
	}
	if q != nil {
		if err := s.putQuestionnaire(*q); err != nil {
			return err
		}
	}
	r.Report = r.Report.Clone()
	s.reports[r.ID] = r
	s.rByProfile[r.ProfileID] = append(s.rByProfile[r.ProfileID], r.ID)
	return nil
}

func (s *MemoryStore) Report(_ context.Context, id string) (model.ReportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return model.ReportRecord{}, ErrNotFound
	}
	r.Report = r.Report.Clone()
	return r, nil
}

func (s *MemoryStore) LatestReport(ctx context.Context, profileID string) (model.ReportRecord, error) {
	list, err := s.Reports(ctx, profileID, 1)
	if err != nil {
		return model.ReportRecord{}, err
	}
	if len(list) == 0 {
		return model.ReportRecord{}, ErrNotFound
	}
	return list[0], nil
}

func (s *MemoryStore) Reports(_ context.Context, profileID string, limit int) ([]model.ReportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := newestFirst(s.rByProfile[profileID], limit)
	out := make([]model.ReportRecord, 0, len(ids))
	for _, id := range ids {
		r := s.reports[id]
		r.Report = r.Report.Clone()
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryStore) AddImage(_ context.Context, img model.ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWritable(img.ProfileID); err != nil {
		return err
	}
	for _, cur := range s.images[img.ProfileID] {
		if cur.ID == img.ID {
			return ErrConflict
		}
	}
	s.images[img.ProfileID] = append(s.images[img.ProfileID], img)
	return nil
}

func (s *MemoryStore) Images(_ context.Context, profileID string) ([]model.ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ImageRecord(nil), s.images[profileID]...), nil
}

func (s *MemoryStore) DeleteImage(_ context.Context, profileID, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.images[profileID]
	for i, img := range list {
		if img.ID == imageID {
			s.images[profileID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) Counts(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := Counts{
		Profiles:       len(s.profiles),
		Questionnaires: len(s.questionnaires),
		Reports:        len(s.reports),
	}
	for _, list := range s.images {
		c.Images += len(list)
	}
	return c, nil
}

// Close marks the store closed; reads keep working.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// checkWritable must be called with the write lock held.
func (s *MemoryStore) checkWritable(profileID string) error {
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.profiles[profileID]; !ok {
		return ErrNotFound
	}
	return nil
}

// newestFirst returns up to limit ids from the end of an insertion-ordered list.
func newestFirst(ids []string, limit int) []string {
	n := len(ids)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]string, 0, n)
	for i := len(ids) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, ids[i])
	}
	return out
}
