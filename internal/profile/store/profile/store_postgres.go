package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"badguys/internal/platform/postgres"
	"badguys/internal/profile/models"
	"badguys/pkg/domain"
	"badguys/pkg/platform/sentinel"
	"badguys/pkg/platform/tx"
)

// PostgresStore persists profile records in PostgreSQL.
// It is pure I/O: moderation rules live in the service.
// Queries join the caller's transaction when the context carries one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const profileColumns = `id, source_url, display_name, display_title, risk_score, status, report_count,
	is_active_on_source, analysis_rationale, created_at, last_checked_at, reported_by`

// Create inserts p. The unique index on source_url arbitrates concurrent duplicates.
func (s *PostgresStore) Create(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID),
		p.SourceURL,
		p.DisplayName,
		p.DisplayTitle,
		p.RiskScore,
		string(p.Status),
		p.ReportCount,
		p.IsActiveOnSource,
		p.AnalysisRationale,
		p.CreatedAt,
		p.LastCheckedAt,
		reporterArg(p.ReportedBy),
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ProfileID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(tx.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile by id: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByURL(ctx context.Context, sourceURL string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE source_url = $1`
	p, err := scanProfile(tx.Exec(ctx, s.db).QueryRowContext(ctx, query, sourceURL))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile by url: %w", err)
	}
	return p, nil
}

// UpdateStatus sets the status in a single statement; concurrent updates are last-writer-wins.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id domain.ProfileID, status models.Status) (*models.Profile, error) {
	query := `
		UPDATE profiles SET status = $2
		WHERE id = $1
		RETURNING ` + profileColumns
	p, err := scanProfile(tx.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(id), string(status)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("update profile status: %w", err)
	}
	return p, nil
}

// Execute locks the row with SELECT ... FOR UPDATE, runs validate and mutate,
// then writes the mutable columns back. Identity, source_url and created_at are never written.
func (s *PostgresStore) Execute(ctx context.Context, id domain.ProfileID, validate func(*models.Profile) error, mutate func(*models.Profile)) (*models.Profile, error) {
	var result *models.Profile
	err := s.inTx(ctx, func(ctx context.Context, q tx.Executor) error {
		query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1 FOR UPDATE`
		p, err := scanProfile(q.QueryRowContext(ctx, query, uuid.UUID(id)))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("lock profile: %w", err)
		}
		if err := validate(p); err != nil {
			return err
		}
		mutate(p)

		update := `
			UPDATE profiles SET
				display_name = $2,
				display_title = $3,
				risk_score = $4,
				status = $5,
				report_count = $6,
				is_active_on_source = $7,
				analysis_rationale = $8,
				last_checked_at = $9,
				reported_by = $10
			WHERE id = $1
		`
		if _, err := q.ExecContext(ctx, update,
			uuid.UUID(p.ID),
			p.DisplayName,
			p.DisplayTitle,
			p.RiskScore,
			string(p.Status),
			p.ReportCount,
			p.IsActiveOnSource,
			p.AnalysisRationale,
			p.LastCheckedAt,
			reporterArg(p.ReportedBy),
		); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// IncrementReports atomically adds one report to the record with sourceURL.
func (s *PostgresStore) IncrementReports(ctx context.Context, sourceURL string) (*models.Profile, error) {
	query := `
		UPDATE profiles SET report_count = report_count + 1
		WHERE source_url = $1
		RETURNING ` + profileColumns
	p, err := scanProfile(tx.Exec(ctx, s.db).QueryRowContext(ctx, query, sourceURL))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("increment profile reports: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.ProfileID) error {
	result, err := tx.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete profile rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// DetachReporter clears reported_by explicitly. The foreign key's ON DELETE SET NULL
// covers account deletion too; the explicit update keeps the in-memory and SQL stores aligned.
func (s *PostgresStore) DetachReporter(ctx context.Context, userID domain.UserID) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE profiles SET reported_by = NULL WHERE reported_by = $1`, uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("detach reporter: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at DESC, id`
	return s.list(ctx, query)
}

func (s *PostgresStore) ListPublic(ctx context.Context, kind models.PublicListKind, limit int) ([]*models.Profile, error) {
	order := `created_at DESC, id`
	if kind == models.ListMostReported {
		order = `report_count DESC, created_at DESC, id`
	}
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE status = 'verified' ORDER BY ` + order + ` LIMIT $1`
	return s.list(ctx, query, limit)
}

func (s *PostgresStore) Count(ctx context.Context, f models.Filter) (int, error) {
	query := `
		SELECT COUNT(*) FROM profiles
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::boolean IS NULL OR is_active_on_source = $2)
	`
	var status *string
	if f.Status != nil {
		v := string(*f.Status)
		status = &v
	}
	var n int
	if err := tx.Exec(ctx, s.db).QueryRowContext(ctx, query, status, f.IsActiveOnSource).Scan(&n); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Profile, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

// inTx joins the caller's transaction or opens a short one of its own.
func (s *PostgresStore) inTx(ctx context.Context, fn func(ctx context.Context, q tx.Executor) error) error {
	if existing, ok := tx.From(ctx); ok {
		return fn(ctx, existing)
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin profile transaction: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()
	if err := fn(ctx, sqlTx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit profile transaction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*models.Profile, error) {
	var (
		p          models.Profile
		id         uuid.UUID
		status     string
		reportedBy uuid.NullUUID
		name       sql.NullString
		title      sql.NullString
		rationale  sql.NullString
		checkedAt  sql.NullTime
	)
	if err := row.Scan(
		&id,
		&p.SourceURL,
		&name,
		&title,
		&p.RiskScore,
		&status,
		&p.ReportCount,
		&p.IsActiveOnSource,
		&rationale,
		&p.CreatedAt,
		&checkedAt,
		&reportedBy,
	); err != nil {
		return nil, err
	}
	p.ID = domain.ProfileID(id)
	p.Status = models.Status(status)
	p.DisplayName = nullString(name)
	p.DisplayTitle = nullString(title)
	p.AnalysisRationale = nullString(rationale)
	if checkedAt.Valid {
		t := checkedAt.Time
		p.LastCheckedAt = &t
	}
	if reportedBy.Valid {
		r := domain.UserID(reportedBy.UUID)
		p.ReportedBy = &r
	}
	return &p, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func reporterArg(r *domain.UserID) uuid.NullUUID {
	if r == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*r), Valid: true}
}
