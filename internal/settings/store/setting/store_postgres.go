package setting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"badguys/internal/settings/models"
	"badguys/pkg/domain"
	"badguys/pkg/platform/sentinel"
	"badguys/pkg/platform/tx"
)

// PostgresStore persists settings in the admin_settings table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Put(ctx context.Context, s *models.Setting) error {
	query := `
		INSERT INTO admin_settings (key, value, updated_at, updated_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`
	var by any
	if !s.UpdatedBy.IsNil() {
		by = uuid.UUID(s.UpdatedBy)
	}
	if _, err := tx.Exec(ctx, p.db).ExecContext(ctx, query, s.Key, s.Value, s.UpdatedAt, by); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) (*models.Setting, error) {
	var (
		s  models.Setting
		by uuid.NullUUID
	)
	err := tx.Exec(ctx, p.db).QueryRowContext(ctx,
		`SELECT key, value, updated_at, updated_by FROM admin_settings WHERE key = $1`, key,
	).Scan(&s.Key, &s.Value, &s.UpdatedAt, &by)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find setting: %w", err)
	}
	if by.Valid {
		s.UpdatedBy = domain.UserID(by.UUID)
	}
	return &s, nil
}
