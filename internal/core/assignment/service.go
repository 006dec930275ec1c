package assignment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ogurasousui/hr-records/internal/core/auth"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// Authorizer は書き込み権限の判定を提供します。auth.Gate が実装します。
type Authorizer interface {
	CanWrite(session *auth.Session) bool
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Service は所属履歴に関するユースケースをまとめます。
type Service struct {
	repo  Repository
	authz Authorizer
	clock Clock
	tx    TransactionManager
}

// UseCase は所属履歴ユースケースの公開インターフェースです。
type UseCase interface {
	Assign(ctx context.Context, session *auth.Session, employeeID string, kind Kind, targetID string, effectiveDate time.Time) (*Record, error)
	End(ctx context.Context, session *auth.Session, employeeID string, kind Kind, endDate time.Time) error
	GetCurrent(ctx context.Context, employeeID string, kind Kind) (*Record, error)
	GetHistory(ctx context.Context, employeeID string, kind Kind) ([]*Record, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, authz Authorizer, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, authz: authz, clock: clock, tx: tx}
}

// Assign は effectiveDate を開始日とする新しい所属を開きます。既存の現在
// レコードがあれば、同じトランザクション内で effectiveDate の前日に閉じます。
// 途中で失敗した場合は全体をロールバックします(開かずに閉じることはありません)。
func (s *Service) Assign(ctx context.Context, session *auth.Session, employeeID string, kind Kind, targetID string, effectiveDate time.Time) (*Record, error) {
	if !s.authz.CanWrite(session) {
		return nil, ErrNotAuthorized
	}

	employeeID, kind, err := normalizeKey(employeeID, kind)
	if err != nil {
		return nil, err
	}

	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return nil, ErrInvalidTargetID
	}

	if effectiveDate.IsZero() {
		return nil, ErrInvalidEffectiveDate
	}
	startDate := normalizeDate(effectiveDate)

	var created *Record
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		current, err := s.currentForUpdate(txCtx, employeeID, kind)
		if err != nil {
			return err
		}

		if current != nil {
			if startDate.Before(current.StartDate) {
				return ErrEffectiveDateBeforeCurrent
			}
			if startDate.Equal(current.StartDate) {
				return ErrDuplicateEffectiveDate
			}
			if err := s.repo.Close(txCtx, current.ID, startDate.AddDate(0, 0, -1)); err != nil {
				return err
			}
		}

		record, err := s.repo.Insert(txCtx, &Record{
			EmployeeID: employeeID,
			Kind:       kind,
			TargetID:   targetID,
			StartDate:  startDate,
			CreatedAt:  s.clock.Now(),
		})
		if err != nil {
			return err
		}

		if err := s.verifyHistory(txCtx, employeeID, kind); err != nil {
			return err
		}

		created = record
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// End は現在の所属を endDate で閉じます。現在レコードが無ければ
// ErrNoCurrentAssignment を返します。
func (s *Service) End(ctx context.Context, session *auth.Session, employeeID string, kind Kind, endDate time.Time) error {
	if !s.authz.CanWrite(session) {
		return ErrNotAuthorized
	}

	employeeID, kind, err := normalizeKey(employeeID, kind)
	if err != nil {
		return err
	}

	if endDate.IsZero() {
		return ErrInvalidEffectiveDate
	}
	closeDate := normalizeDate(endDate)

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		current, err := s.repo.FindCurrentForUpdate(txCtx, employeeID, kind)
		if err != nil {
			return err
		}

		if closeDate.Before(current.StartDate) {
			return ErrInvalidDateRange
		}

		return s.repo.Close(txCtx, current.ID, closeDate)
	})
}

// GetCurrent は現在の所属を返します。無い場合は nil を返します。
func (s *Service) GetCurrent(ctx context.Context, employeeID string, kind Kind) (*Record, error) {
	employeeID, kind, err := normalizeKey(employeeID, kind)
	if err != nil {
		return nil, err
	}

	var found *Record
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		record, err := s.repo.FindCurrent(txCtx, employeeID, kind)
		if err != nil {
			if errors.Is(err, ErrNoCurrentAssignment) {
				return nil
			}
			return err
		}
		found = record
		return nil
	}); err != nil {
		return nil, err
	}

	return found, nil
}

// GetHistory は開始日の昇順で所属履歴を返します。
func (s *Service) GetHistory(ctx context.Context, employeeID string, kind Kind) ([]*Record, error) {
	employeeID, kind, err := normalizeKey(employeeID, kind)
	if err != nil {
		return nil, err
	}

	var records []*Record
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		listed, err := s.repo.ListByEmployee(txCtx, employeeID, kind)
		if err != nil {
			return err
		}
		records = listed
		return nil
	}); err != nil {
		return nil, err
	}

	return records, nil
}

func (s *Service) currentForUpdate(ctx context.Context, employeeID string, kind Kind) (*Record, error) {
	current, err := s.repo.FindCurrentForUpdate(ctx, employeeID, kind)
	if err != nil {
		if errors.Is(err, ErrNoCurrentAssignment) {
			return nil, nil
		}
		return nil, err
	}
	return current, nil
}

// verifyHistory はコミット前に不変条件を再検証します。並行する書き込みが
// 同じ (employee, kind) の履歴を崩していれば ErrConcurrentModification を返します。
func (s *Service) verifyHistory(ctx context.Context, employeeID string, kind Kind) error {
	records, err := s.repo.ListByEmployee(ctx, employeeID, kind)
	if err != nil {
		return err
	}

	open := 0
	for _, record := range records {
		if record.IsCurrent() {
			open++
		}
	}
	if open > 1 {
		return ErrConcurrentModification
	}

	// 開始日昇順に並んでいるため、隣接ペアの判定で全ての重なりを検出できます。
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if Overlaps(prev.StartDate, prev.EndDate, cur.StartDate, cur.EndDate) {
			return ErrConcurrentModification
		}
	}

	return nil
}

func normalizeKey(employeeID string, kind Kind) (string, Kind, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return "", "", ErrInvalidEmployeeID
	}
	if !isValidKind(kind) {
		return "", "", ErrInvalidKind
	}
	return employeeID, kind, nil
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
