package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/hr-records/internal/core/auth"
	pgdb "github.com/ogurasousui/hr-records/internal/platform/db/postgres"
)

const (
	credentialUniqueViolationCode     = "23505"
	credentialForeignKeyViolationCode = "23503"
)

// CredentialRepository は PostgreSQL を利用した認証情報永続化の実装です。
type CredentialRepository struct {
	pool pgdb.Queryer
}

// NewCredentialRepository は CredentialRepository を生成します。
func NewCredentialRepository(pool pgdb.Queryer) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

// Create は認証情報を新規作成します。ID はデータベース側で採番されます。
func (r *CredentialRepository) Create(ctx context.Context, c *auth.Credential) (*auth.Credential, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO credentials (username, password_hash, role, linked_employee_id, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, username, password_hash, role, linked_employee_id, active, last_login_at, created_at, updated_at
    `,
		c.Username,
		c.PasswordHash,
		string(c.Role),
		c.LinkedEmployeeID,
		c.Active,
		c.CreatedAt,
		c.UpdatedAt,
	)

	created, err := scanCredential(row)
	if err != nil {
		return nil, translateCredentialPgError(err)
	}
	return created, nil
}

// FindActiveByUsername はユーザー名で有効な認証情報を取得します。
func (r *CredentialRepository) FindActiveByUsername(ctx context.Context, username string) (*auth.Credential, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, username, password_hash, role, linked_employee_id, active, last_login_at, created_at, updated_at
          FROM credentials
         WHERE username = $1 AND active
         LIMIT 1
    `, username)

	found, err := scanCredential(row)
	if err != nil {
		return nil, translateCredentialPgError(err)
	}
	return found, nil
}

// FindByID は ID で認証情報を取得します。
func (r *CredentialRepository) FindByID(ctx context.Context, id string) (*auth.Credential, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, username, password_hash, role, linked_employee_id, active, last_login_at, created_at, updated_at
          FROM credentials
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanCredential(row)
	if err != nil {
		return nil, translateCredentialPgError(err)
	}
	return found, nil
}

// UpdatePassword はパスワードハッシュを差し替えます。
func (r *CredentialRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE credentials
           SET password_hash = $2,
               updated_at = $3
         WHERE id = $1
    `, id, passwordHash, updatedAt)
	if err != nil {
		return translateCredentialPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrCredentialNotFound
	}
	return nil
}

// Deactivate は認証情報を無効化します。物理削除は行いません。
func (r *CredentialRepository) Deactivate(ctx context.Context, id string, updatedAt time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE credentials
           SET active = FALSE,
               updated_at = $2
         WHERE id = $1
    `, id, updatedAt)
	if err != nil {
		return translateCredentialPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrCredentialNotFound
	}
	return nil
}

// TouchLastLogin は最終ログイン日時を更新します。
func (r *CredentialRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE credentials
           SET last_login_at = $2
         WHERE id = $1
    `, id, at)
	if err != nil {
		return translateCredentialPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrCredentialNotFound
	}
	return nil
}

// CountActiveAdmins は有効な admin 認証情報の件数を返します。
func (r *CredentialRepository) CountActiveAdmins(ctx context.Context) (int, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT COUNT(*)
          FROM credentials
         WHERE role = $1 AND active
    `, string(auth.RoleAdmin))

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, translateCredentialPgError(err)
	}
	return count, nil
}

func scanCredential(row pgx.Row) (*auth.Credential, error) {
	var (
		id           string
		username     string
		passwordHash string
		role         string
		linkedID     sql.NullString
		active       bool
		lastLoginAt  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
	)

	if err := row.Scan(
		&id,
		&username,
		&passwordHash,
		&role,
		&linkedID,
		&active,
		&lastLoginAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrCredentialNotFound
		}
		return nil, err
	}

	var linkedPtr *string
	if linkedID.Valid {
		v := linkedID.String
		linkedPtr = &v
	}

	var lastLoginPtr *time.Time
	if lastLoginAt.Valid {
		t := lastLoginAt.Time.UTC()
		lastLoginPtr = &t
	}

	return &auth.Credential{
		ID:               id,
		Username:         username,
		PasswordHash:     passwordHash,
		Role:             auth.Role(role),
		LinkedEmployeeID: linkedPtr,
		Active:           active,
		LastLoginAt:      lastLoginPtr,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

func translateCredentialPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.ErrCredentialNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case credentialUniqueViolationCode:
			return auth.ErrUsernameAlreadyExists
		case credentialForeignKeyViolationCode:
			return auth.ErrLinkedEmployeeNotFound
		}
	}

	return err
}

var _ auth.CredentialRepository = (*CredentialRepository)(nil)
