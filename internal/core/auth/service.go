package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

const minSecretLength = 8

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Gate は認証とセッション単位の認可判定をまとめます。
// セッションはプロセスローカルに保持され、永続化されません。
type Gate struct {
	repo   CredentialRepository
	hasher PasswordHasher
	clock  Clock
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	// dummyHash は存在しないユーザー名に対しても照合コストを揃えるために使います。
	dummyHash string
}

// NewGate は Gate を生成します。
func NewGate(repo CredentialRepository, hasher PasswordHasher, clock Clock, logger *zap.Logger) *Gate {
	if hasher == nil {
		hasher = NewArgon2Hasher(DefaultArgon2Params())
	}
	if clock == nil {
		clock = realClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dummy, err := hasher.Hash("gate-dummy-secret")
	if err != nil {
		dummy = ""
	}

	return &Gate{
		repo:      repo,
		hasher:    hasher,
		clock:     clock,
		logger:    logger,
		sessions:  make(map[string]*Session),
		dummyHash: dummy,
	}
}

// Authenticate はユーザー名とシークレットを検証し、成功時にセッションを発行します。
// 未知のユーザー名と誤ったシークレットは区別せず ErrInvalidCredentials を返します。
func (g *Gate) Authenticate(ctx context.Context, username, secret string) (*Session, error) {
	normalized, err := normalizeUsername(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	cred, err := g.repo.FindActiveByUsername(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			g.hasher.Verify(secret, g.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: find credential: %w", err)
	}

	if !g.hasher.Verify(secret, cred.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := g.clock.Now()
	session := &Session{
		ID:               uuid.NewString(),
		UserID:           cred.ID,
		Username:         cred.Username,
		Role:             cred.Role,
		LinkedEmployeeID: cloneStringPtr(cred.LinkedEmployeeID),
		CreatedAt:        now,
	}

	g.mu.Lock()
	g.sessions[session.ID] = session
	g.mu.Unlock()

	// 最終ログイン時刻の記録はベストエフォートで、失敗してもログインは成立します。
	if err := g.repo.TouchLastLogin(ctx, cred.ID, now); err != nil {
		g.logger.Warn("failed to record last login",
			zap.String("user_id", cred.ID),
			zap.Error(err),
		)
	}

	return session, nil
}

// Logout はセッションを無効化します。冪等です。
func (g *Gate) Logout(session *Session) {
	if session == nil {
		return
	}
	g.mu.Lock()
	delete(g.sessions, session.ID)
	g.mu.Unlock()
}

// CanRead は対象社員のデータを session が閲覧できるかを返します。
func (g *Gate) CanRead(session *Session, employeeID string) bool {
	if !g.isActive(session) {
		return false
	}
	switch session.Role {
	case RoleAdmin:
		return true
	case RoleMember:
		return session.LinkedEmployeeID != nil && *session.LinkedEmployeeID == employeeID
	default:
		return false
	}
}

// CanWrite は session が書き込み操作を行えるかを返します。admin のみ true です。
func (g *Gate) CanWrite(session *Session) bool {
	return g.isActive(session) && session.Role == RoleAdmin
}

// HasCapability は session の役割が capability を持つかを返します。
// 未知の capability は常に false です。
func (g *Gate) HasCapability(session *Session, capability Capability) bool {
	if !g.isActive(session) {
		return false
	}
	switch session.Role {
	case RoleAdmin:
		_, ok := adminCapabilities[capability]
		return ok
	case RoleMember:
		_, ok := memberCapabilities[capability]
		return ok
	default:
		return false
	}
}

// BootstrapAdminInput は初期 admin 作成時の入力です。
type BootstrapAdminInput struct {
	Username string
	Secret   string
}

// BootstrapAdmin は有効な admin が存在しない場合に限り、最初の admin 認証情報を作成します。
func (g *Gate) BootstrapAdmin(ctx context.Context, in BootstrapAdminInput) (*Credential, error) {
	username, err := normalizeUsername(in.Username)
	if err != nil {
		return nil, err
	}
	if err := validateSecret(in.Secret); err != nil {
		return nil, err
	}

	count, err := g.repo.CountActiveAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: count active admins: %w", err)
	}
	if count > 0 {
		return nil, ErrAdminAlreadyExists
	}

	return g.createCredential(ctx, username, in.Secret, RoleAdmin, nil)
}

// CreateLoginInput は認証情報作成時の入力です。
type CreateLoginInput struct {
	Username         string
	Secret           string
	Role             Role
	LinkedEmployeeID *string
}

// CreateLogin は admin セッションによる認証情報の作成です。
func (g *Gate) CreateLogin(ctx context.Context, session *Session, in CreateLoginInput) (*Credential, error) {
	if !g.CanWrite(session) {
		return nil, ErrNotAuthorized
	}

	username, err := normalizeUsername(in.Username)
	if err != nil {
		return nil, err
	}
	if err := validateSecret(in.Secret); err != nil {
		return nil, err
	}
	if !isValidRole(in.Role) {
		return nil, ErrInvalidRole
	}

	return g.createCredential(ctx, username, in.Secret, in.Role, cloneStringPtr(in.LinkedEmployeeID))
}

// ChangePassword は自身のシークレットを更新します。現在のシークレットの照合が必要です。
func (g *Gate) ChangePassword(ctx context.Context, session *Session, currentSecret, newSecret string) error {
	if !g.isActive(session) {
		return ErrNotAuthorized
	}
	if err := validateSecret(newSecret); err != nil {
		return err
	}

	cred, err := g.repo.FindByID(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("auth: find credential: %w", err)
	}

	if !g.hasher.Verify(currentSecret, cred.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := g.hasher.Hash(newSecret)
	if err != nil {
		return fmt.Errorf("auth: hash secret: %w", err)
	}

	if err := g.repo.UpdatePassword(ctx, cred.ID, hash, g.clock.Now()); err != nil {
		return fmt.Errorf("auth: update password: %w", err)
	}
	return nil
}

// Deactivate は認証情報を無効化します。レコードは削除せず、該当ユーザーの
// 生きているセッションも破棄します。
func (g *Gate) Deactivate(ctx context.Context, session *Session, username string) error {
	if !g.CanWrite(session) {
		return ErrNotAuthorized
	}

	normalized, err := normalizeUsername(username)
	if err != nil {
		return err
	}

	cred, err := g.repo.FindActiveByUsername(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("auth: find credential: %w", err)
	}

	if err := g.repo.Deactivate(ctx, cred.ID, g.clock.Now()); err != nil {
		return fmt.Errorf("auth: deactivate credential: %w", err)
	}

	g.mu.Lock()
	for id, s := range g.sessions {
		if s.UserID == cred.ID {
			delete(g.sessions, id)
		}
	}
	g.mu.Unlock()

	return nil
}

func (g *Gate) createCredential(ctx context.Context, username, secret string, role Role, linkedEmployeeID *string) (*Credential, error) {
	hash, err := g.hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("auth: hash secret: %w", err)
	}

	now := g.clock.Now()
	created, err := g.repo.Create(ctx, &Credential{
		Username:         username,
		PasswordHash:     hash,
		Role:             role,
		LinkedEmployeeID: linkedEmployeeID,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (g *Gate) isActive(session *Session) bool {
	if session == nil {
		return false
	}
	g.mu.Lock()
	registered, ok := g.sessions[session.ID]
	g.mu.Unlock()
	return ok && registered.UserID == session.UserID
}

func normalizeUsername(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidUsername
	}

	lower := strings.ToLower(trimmed)
	if !usernamePattern.MatchString(lower) {
		return "", ErrInvalidUsername
	}
	return lower, nil
}

func validateSecret(secret string) error {
	if len(secret) < minSecretLength {
		return ErrWeakSecret
	}
	return nil
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}
