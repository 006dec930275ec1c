package payroll

// Target は一括調整の対象となる社員の抜粋です。
type Target struct {
	ID     string
	Salary int64
}

// BatchResult は範囲指定の給与一括調整の集計結果です。
// 金額は通貨の最小単位の整数で扱います。
type BatchResult struct {
	Count    int
	TotalOld int64
	TotalNew int64
	Delta    int64
}
