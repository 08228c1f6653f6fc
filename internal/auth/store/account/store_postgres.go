package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"badguys/internal/auth/models"
	"badguys/internal/platform/postgres"
	"badguys/pkg/domain"
	"badguys/pkg/platform/sentinel"
	"badguys/pkg/platform/tx"
)

// PostgresStore persists accounts in PostgreSQL. Email uniqueness is enforced
// by a unique index on LOWER(email).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, email, password_hash, role, created_at`

func (s *PostgresStore) Create(ctx context.Context, a *models.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `) VALUES ($1, $2, $3, $4, $5)`
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(a.ID), a.Email, a.PasswordHash, string(a.Role), a.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, a *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ((LOWER(email))) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role
		RETURNING ` + accountColumns
	stored, err := scanAccount(tx.Exec(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(a.ID), a.Email, a.PasswordHash, string(a.Role), a.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("upsert account: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.UserID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	a, err := scanAccount(tx.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`
	a, err := scanAccount(tx.Exec(ctx, s.db).QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.UserID) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		a    models.Account
		id   uuid.UUID
		role string
	)
	if err := row.Scan(&id, &a.Email, &a.PasswordHash, &role, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.ID = domain.UserID(id)
	a.Role = domain.Role(role)
	return &a, nil
}
