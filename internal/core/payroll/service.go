package payroll

import (
	"context"
	"math"
	"time"

	"github.com/ogurasousui/hr-records/internal/core/auth"
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

// Authorizer は書き込み権限の判定を提供します。auth.Gate が実装します。
type Authorizer interface {
	CanWrite(session *auth.Session) bool
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

const (
	minPercent = -50.0
	maxPercent = 100.0
)

// Service は給与一括調整のユースケースです。
type Service struct {
	repo   Repository
	authz  Authorizer
	clock  Clock
	tx     TransactionManager
	logger *zap.Logger
}

// UseCase は給与一括調整の公開インターフェースです。
type UseCase interface {
	ApplyPercentageToRange(ctx context.Context, session *auth.Session, minSalary, maxSalary int64, percent float64) (*BatchResult, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, authz Authorizer, clock Clock, tx TransactionManager, logger *zap.Logger) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, authz: authz, clock: clock, tx: tx, logger: logger}
}

// ApplyPercentageToRange は給与が [minSalary, maxSalary] にある在籍中の社員全員に
// percent% の調整を適用します。適用は単一トランザクションで行われ、1件でも
// 失敗すれば全体をロールバックします(部分適用はありません)。
func (s *Service) ApplyPercentageToRange(ctx context.Context, session *auth.Session, minSalary, maxSalary int64, percent float64) (*BatchResult, error) {
	if !s.authz.CanWrite(session) {
		return nil, ErrNotAuthorized
	}

	if minSalary < 0 || minSalary > maxSalary {
		return nil, ErrInvalidSalaryRange
	}
	if percent < minPercent || percent > maxPercent || math.IsNaN(percent) {
		return nil, ErrInvalidPercent
	}

	var result *BatchResult
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		targets, err := s.repo.ListActiveInSalaryRange(txCtx, minSalary, maxSalary)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return ErrNoEmployeesInRange
		}

		now := s.clock.Now()
		batch := &BatchResult{}
		for _, target := range targets {
			newSalary := adjust(target.Salary, percent)
			if err := s.repo.UpdateSalary(txCtx, target.ID, newSalary, now); err != nil {
				return err
			}
			batch.Count++
			batch.TotalOld += target.Salary
			batch.TotalNew += newSalary
		}
		batch.Delta = batch.TotalNew - batch.TotalOld

		result = batch
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("salary adjustment applied",
		zap.Int("count", result.Count),
		zap.Int64("total_old", result.TotalOld),
		zap.Int64("total_new", result.TotalNew),
		zap.Int64("delta", result.Delta),
		zap.Float64("percent", percent),
	)

	return result, nil
}

func adjust(salary int64, percent float64) int64 {
	return int64(math.Round(float64(salary) * (1 + percent/100)))
}
