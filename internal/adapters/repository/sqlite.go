package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/okian/follicle/internal/domain/model"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// timeLayout is fixed width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is a Store on a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at dsn and applies the
// embedded schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dsn+sep+"_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		// every connection to :memory: is a new database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// sqliteErr maps constraint violations onto the package sentinels.
func sqliteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("sqlite: %s: %w", op, ErrNotFound)
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("sqlite: %s: %w", op, ErrConflict)
		}
	}
	return fmt.Errorf("sqlite: %s: %w", op, err)
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func (s *SQLiteStore) CreateProfile(ctx context.Context, p model.Profile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, user_id, name, email, age, gender, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, nullString(p.UserID), p.Name, p.Email, p.Age, nullString(p.Gender),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	return sqliteErr("create profile", err)
}

func (s *SQLiteStore) UpdateProfile(ctx context.Context, p model.Profile) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET name = ?, email = ?, age = ?, gender = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Email, p.Age, nullString(p.Gender), formatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return sqliteErr("update profile", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const profileColumns = `id, user_id, name, email, age, gender, created_at, updated_at`

func scanProfile(row *sql.Row) (model.Profile, error) {
	var (
		p                model.Profile
		userID, gender   sql.NullString
		age              sql.NullInt64
		created, updated string
	)
	if err := row.Scan(&p.ID, &userID, &p.Name, &p.Email, &age, &gender, &created, &updated); err != nil {
		return model.Profile{}, err
	}
	p.UserID, p.Gender = userID.String, gender.String
	if age.Valid {
		v := int(age.Int64)
		p.Age = &v
	}
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return model.Profile{}, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

func (s *SQLiteStore) Profile(ctx context.Context, id string) (model.Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id))
	return p, sqliteErr("get profile", err)
}

func (s *SQLiteStore) ProfileByUser(ctx context.Context, userID string) (model.Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID))
	return p, sqliteErr("get profile by user", err)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertQuestionnaire(ctx context.Context, ex execer, q model.QuestionnaireRecord) error {
	answers, err := json.Marshal(q.Answers)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO questionnaire_responses (id, profile_id, answers, created_at) VALUES (?, ?, ?, ?)`,
		q.ID, q.ProfileID, string(answers), formatTime(q.CreatedAt))
	return err
}

func (s *SQLiteStore) SaveQuestionnaire(ctx context.Context, q model.QuestionnaireRecord) error {
	return sqliteErr("save questionnaire", insertQuestionnaire(ctx, s.db, q))
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const questionnaireColumns = `id, profile_id, answers, created_at`

func scanQuestionnaire(row rowScanner) (model.QuestionnaireRecord, error) {
	var (
		q                model.QuestionnaireRecord
		answers, created string
	)
	if err := row.Scan(&q.ID, &q.ProfileID, &answers, &created); err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(answers), &q.Answers); err != nil {
		return q, err
	}
	var err error
	q.CreatedAt, err = parseTime(created)
	return q, err
}

func (s *SQLiteStore) Questionnaire(ctx context.Context, id string) (model.QuestionnaireRecord, error) {
	q, err := scanQuestionnaire(s.db.QueryRowContext(ctx,
		`SELECT `+questionnaireColumns+` FROM questionnaire_responses WHERE id = ?`, id))
	return q, sqliteErr("get questionnaire", err)
}

func (s *SQLiteStore) LatestQuestionnaire(ctx context.Context, profileID string) (model.QuestionnaireRecord, error) {
	list, err := s.Questionnaires(ctx, profileID, 1)
	if err != nil {
		return model.QuestionnaireRecord{}, err
	}
	if len(list) == 0 {
		return model.QuestionnaireRecord{}, ErrNotFound
	}
	return list[0], nil
}

func (s *SQLiteStore) Questionnaires(ctx context.Context, profileID string, limit int) ([]model.QuestionnaireRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionnaireColumns+` FROM questionnaire_responses
		 WHERE profile_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		profileID, sqlLimit(limit))
	if err != nil {
		return nil, sqliteErr("list questionnaires", err)
	}
	defer rows.Close()

	var out []model.QuestionnaireRecord
	for rows.Next() {
		q, err := scanQuestionnaire(rows)
		if err != nil {
			return nil, sqliteErr("scan questionnaire", err)
		}
		out = append(out, q)
	}
	return out, sqliteErr("list questionnaires", rows.Err())
}

func (s *SQLiteStore) SaveAssessment(ctx context.Context, q *model.QuestionnaireRecord, r model.ReportRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sqliteErr("begin", err)
	}
	if q != nil {
		if err := insertQuestionnaire(ctx, tx, *q); err != nil {
			_ = tx.Rollback()
			return sqliteErr("save questionnaire", err)
		}
	}
	causes, err := json.Marshal(r.PossibleCauses)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	recs, err := json.Marshal(r.Recommendations)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO reports (id, profile_id, questionnaire_id, source, overall_risk_level, risk_score,
		   lifestyle_impact, possible_causes, recommendations, scalp_health_warning, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProfileID, nullString(r.QuestionnaireID), string(r.Source), string(r.OverallRiskLevel),
		r.RiskScore, string(r.LifestyleImpact), string(causes), string(recs), r.ScalpHealthWarning,
		formatTime(r.GeneratedAt))
	if err != nil {
		_ = tx.Rollback()
		return sqliteErr("save report", err)
	}
	return sqliteErr("commit", tx.Commit())
}

const reportColumns = `id, profile_id, questionnaire_id, source, overall_risk_level, risk_score,
	lifestyle_impact, possible_causes, recommendations, scalp_health_warning, generated_at`

func scanReport(row rowScanner) (model.ReportRecord, error) {
	var (
		r                       model.ReportRecord
		qid                     sql.NullString
		source, level, impact   string
		causes, recs, generated string
	)
	err := row.Scan(&r.ID, &r.ProfileID, &qid, &source, &level, &r.RiskScore,
		&impact, &causes, &recs, &r.ScalpHealthWarning, &generated)
	if err != nil {
		return r, err
	}
	r.QuestionnaireID = qid.String
	r.Source = model.ReportSource(source)
	r.OverallRiskLevel = model.RiskLevel(level)
	r.LifestyleImpact = model.LifestyleImpact(impact)
	if err := json.Unmarshal([]byte(causes), &r.PossibleCauses); err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(recs), &r.Recommendations); err != nil {
		return r, err
	}
	r.GeneratedAt, err = parseTime(generated)
	return r, err
}

func (s *SQLiteStore) Report(ctx context.Context, id string) (model.ReportRecord, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	return r, sqliteErr("get report", err)
}

func (s *SQLiteStore) LatestReport(ctx context.Context, profileID string) (model.ReportRecord, error) {
	list, err := s.Reports(ctx, profileID, 1)
	if err != nil {
		return model.ReportRecord{}, err
	}
	if len(list) == 0 {
		return model.ReportRecord{}, ErrNotFound
	}
	return list[0], nil
}

func (s *SQLiteStore) Reports(ctx context.Context, profileID string, limit int) ([]model.ReportRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports
		 WHERE profile_id = ? ORDER BY generated_at DESC, rowid DESC LIMIT ?`,
		profileID, sqlLimit(limit))
	if err != nil {
		return nil, sqliteErr("list reports", err)
	}
	defer rows.Close()

	var out []model.ReportRecord
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, sqliteErr("scan report", err)
		}
		out = append(out, r)
	}
	return out, sqliteErr("list reports", rows.Err())
}

func (s *SQLiteStore) AddImage(ctx context.Context, img model.ImageRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploaded_images (id, profile_id, label, file_name, file_path, file_size, mime_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.ProfileID, string(img.Label), img.FileName, img.FilePath, img.FileSize,
		nullString(img.MimeType), formatTime(img.CreatedAt))
	return sqliteErr("add image", err)
}

func (s *SQLiteStore) Images(ctx context.Context, profileID string) ([]model.ImageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, profile_id, label, file_name, file_path, file_size, mime_type, created_at
		 FROM uploaded_images WHERE profile_id = ? ORDER BY created_at, rowid`, profileID)
	if err != nil {
		return nil, sqliteErr("list images", err)
	}
	defer rows.Close()

	var out []model.ImageRecord
	for rows.Next() {
		var (
			img            model.ImageRecord
			label, created string
			size           sql.NullInt64
			mime           sql.NullString
		)
		if err := rows.Scan(&img.ID, &img.ProfileID, &label, &img.FileName, &img.FilePath, &size, &mime, &created); err != nil {
			return nil, sqliteErr("scan image", err)
		}
		img.Label = model.ImageLabel(label)
		img.MimeType = mime.String
		if size.Valid {
			v := size.Int64
			img.FileSize = &v
		}
		if img.CreatedAt, err = parseTime(created); err != nil {
			return nil, sqliteErr("scan image", err)
		}
		out = append(out, img)
	}
	return out, sqliteErr("list images", rows.Err())
}

func (s *SQLiteStore) DeleteImage(ctx context.Context, profileID, imageID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM uploaded_images WHERE id = ? AND profile_id = ?`, imageID, profileID)
	if err != nil {
		return sqliteErr("delete image", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM profiles),
		(SELECT COUNT(*) FROM questionnaire_responses),
		(SELECT COUNT(*) FROM reports),
		(SELECT COUNT(*) FROM uploaded_images)`).Scan(&c.Profiles, &c.Questionnaires, &c.Reports, &c.Images)
	return c, sqliteErr("counts", err)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqlLimit maps "no limit" onto SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
