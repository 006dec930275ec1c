package employee

import "time"

// Status は社員の在籍状態を表します。
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Employee は社員レコードです。所属や認証情報は別ドメインが持ち、
// ここでは給与と在籍状態のみを扱います。
type Employee struct {
	ID            string
	CurrentSalary int64
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
