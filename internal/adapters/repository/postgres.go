package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/follicle/internal/domain/model"
)

//go:embed schema/postgres.sql
var postgresSchema string

// Postgres SQLSTATE codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to dsn, verifies connectivity and applies the
// embedded schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	o := newOptions(opts)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if o.maxConns > 0 {
		poolCfg.MaxConns = o.maxConns
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// withTx runs fn inside a transaction, rolling back when fn fails.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("postgres: rollback tx: %w (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

func pgErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch pe.Code {
		case pgUniqueViolation:
			return fmt.Errorf("postgres: %s: %w", op, ErrConflict)
		case pgForeignKeyViolation:
			return fmt.Errorf("postgres: %s: %w", op, ErrNotFound)
		}
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}

func nullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefText(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *PostgresStore) CreateProfile(ctx context.Context, p model.Profile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, user_id, name, email, age, gender, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, nullText(p.UserID), p.Name, p.Email, p.Age, nullText(p.Gender), p.CreatedAt, p.UpdatedAt)
	return pgErr("create profile", err)
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, p model.Profile) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET name = $1, email = $2, age = $3, gender = $4, updated_at = $5 WHERE id = $6`,
		p.Name, p.Email, p.Age, nullText(p.Gender), p.UpdatedAt, p.ID)
	if err != nil {
		return pgErr("update profile", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) scanProfile(row pgx.Row) (model.Profile, error) {
	var (
		p              model.Profile
		userID, gender *string
	)
	if err := row.Scan(&p.ID, &userID, &p.Name, &p.Email, &p.Age, &gender, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Profile{}, err
	}
	p.UserID, p.Gender = derefText(userID), derefText(gender)
	return p, nil
}

func (s *PostgresStore) Profile(ctx context.Context, id string) (model.Profile, error) {
	p, err := s.scanProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	return p, pgErr("get profile", err)
}

func (s *PostgresStore) ProfileByUser(ctx context.Context, userID string) (model.Profile, error) {
	p, err := s.scanProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	return p, pgErr("get profile by user", err)
}

func pgInsertQuestionnaire(ctx context.Context, q querier, rec model.QuestionnaireRecord) error {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx,
		`INSERT INTO questionnaire_responses (id, profile_id, answers, created_at) VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.ProfileID, answers, rec.CreatedAt)
	return err
}

func (s *PostgresStore) SaveQuestionnaire(ctx context.Context, q model.QuestionnaireRecord) error {
	return pgErr("save questionnaire", pgInsertQuestionnaire(ctx, s.pool, q))
}

func pgScanQuestionnaire(row pgx.Row) (model.QuestionnaireRecord, error) {
	var (
		q       model.QuestionnaireRecord
		answers []byte
	)
	if err := row.Scan(&q.ID, &q.ProfileID, &answers, &q.CreatedAt); err != nil {
		return q, err
	}
	return q, json.Unmarshal(answers, &q.Answers)
}

func (s *PostgresStore) Questionnaire(ctx context.Context, id string) (model.QuestionnaireRecord, error) {
	q, err := pgScanQuestionnaire(s.pool.QueryRow(ctx,
		`SELECT `+questionnaireColumns+` FROM questionnaire_responses WHERE id = $1`, id))
	return q, pgErr("get questionnaire", err)
}

func (s *PostgresStore) LatestQuestionnaire(ctx context.Context, profileID string) (model.QuestionnaireRecord, error) {
	list, err := s.Questionnaires(ctx, profileID, 1)
	if err != nil {
		return model.QuestionnaireRecord{}, err
	}
	if len(list) == 0 {
		return model.QuestionnaireRecord{}, ErrNotFound
	}
	return list[0], nil
}

func (s *PostgresStore) Questionnaires(ctx context.Context, profileID string, limit int) ([]model.QuestionnaireRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+questionnaireColumns+` FROM questionnaire_responses
		 WHERE profile_id = $1 ORDER BY created_at DESC, seq DESC LIMIT $2`,
		profileID, pgLimit(limit))
	if err != nil {
		return nil, pgErr("list questionnaires", err)
	}
	defer rows.Close()

	var out []model.QuestionnaireRecord
	for rows.Next() {
		q, err := pgScanQuestionnaire(rows)
		if err != nil {
			return nil, pgErr("scan questionnaire", err)
		}
		out = append(out, q)
	}
	return out, pgErr("list questionnaires", rows.Err())
}

func (s *PostgresStore) SaveAssessment(ctx context.Context, q *model.QuestionnaireRecord, r model.ReportRecord) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if q != nil {
			if err := pgInsertQuestionnaire(ctx, tx, *q); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO reports (id, profile_id, questionnaire_id, source, overall_risk_level, risk_score,
			   lifestyle_impact, possible_causes, recommendations, scalp_health_warning, generated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			r.ID, r.ProfileID, nullText(r.QuestionnaireID), string(r.Source), string(r.OverallRiskLevel),
			r.RiskScore, string(r.LifestyleImpact), r.PossibleCauses, r.Recommendations,
			r.ScalpHealthWarning, r.GeneratedAt)
		return err
	})
	return pgErr("save assessment", err)
}

func pgScanReport(row pgx.Row) (model.ReportRecord, error) {
	var (
		r                     model.ReportRecord
		qid                   *string
		source, level, impact string
	)
	err := row.Scan(&r.ID, &r.ProfileID, &qid, &source, &level, &r.RiskScore,
		&impact, &r.PossibleCauses, &r.Recommendations, &r.ScalpHealthWarning, &r.GeneratedAt)
	if err != nil {
		return r, err
	}
	r.QuestionnaireID = derefText(qid)
	r.Source = model.ReportSource(source)
	r.OverallRiskLevel = model.RiskLevel(level)
	r.LifestyleImpact = model.LifestyleImpact(impact)
	return r, nil
}

func (s *PostgresStore) Report(ctx context.Context, id string) (model.ReportRecord, error) {
	r, err := pgScanReport(s.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	return r, pgErr("get report", err)
}

func (s *PostgresStore) LatestReport(ctx context.Context, profileID string) (model.ReportRecord, error) {
	list, err := s.Reports(ctx, profileID, 1)
	if err != nil {
		return model.ReportRecord{}, err
	}
	if len(list) == 0 {
		return model.ReportRecord{}, ErrNotFound
	}
	return list[0], nil
}

func (s *PostgresStore) Reports(ctx context.Context, profileID string, limit int) ([]model.ReportRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM reports
		 WHERE profile_id = $1 ORDER BY generated_at DESC, seq DESC LIMIT $2`,
		profileID, pgLimit(limit))
	if err != nil {
		return nil, pgErr("list reports", err)
	}
	defer rows.Close()

	var out []model.ReportRecord
	for rows.Next() {
		r, err := pgScanReport(rows)
		if err != nil {
			return nil, pgErr("scan report", err)
		}
		out = append(out, r)
	}
	return out, pgErr("list reports", rows.Err())
}

func (s *PostgresStore) AddImage(ctx context.Context, img model.ImageRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO uploaded_images (id, profile_id, label, file_name, file_path, file_size, mime_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		img.ID, img.ProfileID, string(img.Label), img.FileName, img.FilePath, img.FileSize,
		nullText(img.MimeType), img.CreatedAt)
	return pgErr("add image", err)
}

func (s *PostgresStore) Images(ctx context.Context, profileID string) ([]model.ImageRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, profile_id, label, file_name, file_path, file_size, mime_type, created_at
		 FROM uploaded_images WHERE profile_id = $1 ORDER BY created_at, seq`, profileID)
	if err != nil {
		return nil, pgErr("list images", err)
	}
	defer rows.Close()

	var out []model.ImageRecord
	for rows.Next() {
		var (
			img   model.ImageRecord
			label string
			mime  *string
		)
		if err := rows.Scan(&img.ID, &img.ProfileID, &label, &img.FileName, &img.FilePath,
			&img.FileSize, &mime, &img.CreatedAt); err != nil {
			return nil, pgErr("scan image", err)
		}
		img.Label = model.ImageLabel(label)
		img.MimeType = derefText(mime)
		out = append(out, img)
	}
	return out, pgErr("list images", rows.Err())
}

func (s *PostgresStore) DeleteImage(ctx context.Context, profileID, imageID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM uploaded_images WHERE id = $1 AND profile_id = $2`, imageID, profileID)
	if err != nil {
		return pgErr("delete image", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM profiles),
		(SELECT COUNT(*) FROM questionnaire_responses),
		(SELECT COUNT(*) FROM reports),
		(SELECT COUNT(*) FROM uploaded_images)`).Scan(&c.Profiles, &c.Questionnaires, &c.Reports, &c.Images)
	return c, pgErr("counts", err)
}

// Close releases every pooled connection.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// pgLimit maps "no limit" onto LIMIT NULL.
func pgLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
