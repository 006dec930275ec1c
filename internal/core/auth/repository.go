package auth

import (
	"context"
	"time"
)

// CredentialRepository は認証情報永続化の抽象です。
type CredentialRepository interface {
	Create(ctx context.Context, credential *Credential) (*Credential, error)
	FindActiveByUsername(ctx context.Context, username string) (*Credential, error)
	FindByID(ctx context.Context, id string) (*Credential, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	Deactivate(ctx context.Context, id string, updatedAt time.Time) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	CountActiveAdmins(ctx context.Context) (int, error)
}
