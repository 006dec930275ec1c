package assignment

import "time"

// Kind は時系列所属レコードの種別を表します。部署と職位は同じ
// 不変条件を共有する一つの汎用レコードとして扱います。
type Kind string

const (
	KindDivision Kind = "division"
	KindJobTitle Kind = "job_title"
)

// Record は社員の所属期間を表す追記専用のレコードです。
// 「現在の所属」であるかは EndDate が nil かどうかのみで決まります。
type Record struct {
	ID         string
	EmployeeID string
	Kind       Kind
	TargetID   string
	StartDate  time.Time
	EndDate    *time.Time
	CreatedAt  time.Time
}

// IsCurrent は現在有効な所属であるかを返します。
func (r *Record) IsCurrent() bool {
	return r != nil && r.EndDate == nil
}

// Overlaps は2つの期間 [aStart, aEnd] と [bStart, bEnd] が重なるかを判定します。
// nil の終了日は無期限として扱います。判定は保存済みレコード同士に対して
// のみ行い、現在時刻には依存しません。
func Overlaps(aStart time.Time, aEnd *time.Time, bStart time.Time, bEnd *time.Time) bool {
	if aEnd != nil && bStart.After(*aEnd) {
		return false
	}
	if bEnd != nil && aStart.After(*bEnd) {
		return false
	}
	return true
}

func isValidKind(kind Kind) bool {
	switch kind {
	case KindDivision, KindJobTitle:
		return true
	default:
		return false
	}
}
