package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// PasswordHasher はパスワードの導出と照合を行う差し替え可能な戦略です。
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) bool
}

// Argon2Params は argon2id の作業係数です。
type Argon2Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params は本番向けの既定値を返します。
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (p Argon2Params) complete() bool {
	return p.MemoryKiB > 0 && p.Iterations > 0 && p.Parallelism > 0 && p.SaltLength > 0 && p.KeyLength > 0
}

// Argon2Hasher は argon2id による PasswordHasher の実装です。
type Argon2Hasher struct {
	params Argon2Params
}

// NewArgon2Hasher は Argon2Hasher を生成します。ゼロ値のパラメータは既定値で補われます。
func NewArgon2Hasher(params Argon2Params) *Argon2Hasher {
	if !params.complete() {
		params = DefaultArgon2Params()
	}
	return &Argon2Hasher{params: params}
}

// Hash は新しいランダムソルトで secret から鍵を導出し、
// `$argon2id$v=19$m=..,t=..,p=..$<salt>$<key>` 形式で符号化して返します。
func (h *Argon2Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify は encoded に埋め込まれたパラメータで鍵を再導出し、一定時間で比較します。
// 不正な形式の encoded は不一致として false を返します。
func (h *Argon2Hasher) Verify(secret, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false
	}
	if memory == 0 || iterations == 0 || parallelism == 0 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return false
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return false
	}

	derived := argon2.IDKey([]byte(secret), salt, iterations, memory, parallelism, uint32(len(key)))

	return subtle.ConstantTimeCompare(key, derived) == 1
}
