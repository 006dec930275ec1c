package assignment

import (
	"context"
	"time"
)

// Repository は所属レコード永続化の抽象です。レコードは追記専用で、
// 既存レコードへの変更は終了日の設定のみが許されます。
type Repository interface {
	Insert(ctx context.Context, record *Record) (*Record, error)
	// Close は id のレコードがまだ開いている場合に限り終了日を設定します。
	// 既に閉じられていた場合は ErrConcurrentModification を返します。
	Close(ctx context.Context, id string, endDate time.Time) error
	FindCurrent(ctx context.Context, employeeID string, kind Kind) (*Record, error)
	// FindCurrentForUpdate は現在レコードを行ロック付きで取得します。
	FindCurrentForUpdate(ctx context.Context, employeeID string, kind Kind) (*Record, error)
	// ListByEmployee は開始日の昇順で履歴を返します。
	ListByEmployee(ctx context.Context, employeeID string, kind Kind) ([]*Record, error)
}
