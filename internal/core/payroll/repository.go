package payroll

import (
	"context"
	"time"
)

// Repository は給与一括調整に必要な永続化操作の抽象です。
type Repository interface {
	// ListActiveInSalaryRange は在籍中かつ給与が [min, max](両端含む)の社員を
	// id 昇順・行ロック付きで返します。
	ListActiveInSalaryRange(ctx context.Context, minSalary, maxSalary int64) ([]*Target, error)
	// UpdateSalary は対象の行がまだ存在する場合に限り給与を更新します。
	// 行が消えていた場合は ErrConcurrentModification を返します。
	UpdateSalary(ctx context.Context, id string, newSalary int64, updatedAt time.Time) error
}
