package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/hr-records/internal/core/assignment"
	pgdb "github.com/ogurasousui/hr-records/internal/platform/db/postgres"
)

const (
	assignmentUniqueViolationCode     = "23505"
	assignmentForeignKeyViolationCode = "23503"
	assignmentCheckViolationCode      = "23514"

	assignmentStartUniqueConstraint   = "assignments_employee_kind_start_key"
	assignmentSingleCurrentConstraint = "assignments_single_current_idx"
)

// AssignmentRepository は PostgreSQL を利用した所属レコード永続化の実装です。
// レコードは追記専用で、UPDATE は終了日の設定のみに限られます。
type AssignmentRepository struct {
	pool pgdb.Queryer
}

// NewAssignmentRepository は AssignmentRepository を生成します。
func NewAssignmentRepository(pool pgdb.Queryer) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

// Insert は所属レコードを追加します。ID はデータベース側で採番されます。
func (r *AssignmentRepository) Insert(ctx context.Context, rec *assignment.Record) (*assignment.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO assignments (employee_id, kind, target_id, start_date, end_date, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, employee_id, kind, target_id, start_date, end_date, created_at
    `,
		rec.EmployeeID,
		string(rec.Kind),
		rec.TargetID,
		dateOnly(rec.StartDate),
		nullableDate(rec.EndDate),
		rec.CreatedAt,
	)

	inserted, err := scanAssignment(row)
	if err != nil {
		return nil, translateAssignmentPgError(err)
	}
	return inserted, nil
}

// Close は開いているレコードに終了日を設定します。
// 既に閉じられていた場合は ErrConcurrentModification を返します。
func (r *AssignmentRepository) Close(ctx context.Context, id string, endDate time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE assignments
           SET end_date = $2
         WHERE id = $1
           AND end_date IS NULL
    `, id, dateOnly(endDate))
	if err != nil {
		return translateAssignmentPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return assignment.ErrConcurrentModification
	}
	return nil
}

// FindCurrent は現在の所属レコードを取得します。
func (r *AssignmentRepository) FindCurrent(ctx context.Context, employeeID string, kind assignment.Kind) (*assignment.Record, error) {
	return r.findCurrent(ctx, employeeID, kind, false)
}

// FindCurrentForUpdate は現在の所属レコードを行ロック付きで取得します。
// 呼び出しはトランザクション内で行う前提です。
func (r *AssignmentRepository) FindCurrentForUpdate(ctx context.Context, employeeID string, kind assignment.Kind) (*assignment.Record, error) {
	return r.findCurrent(ctx, employeeID, kind, true)
}

func (r *AssignmentRepository) findCurrent(ctx context.Context, employeeID string, kind assignment.Kind, forUpdate bool) (*assignment.Record, error) {
	query := `
        SELECT id, employee_id, kind, target_id, start_date, end_date, created_at
          FROM assignments
         WHERE employee_id = $1
           AND kind = $2
           AND end_date IS NULL
         LIMIT 1
    `
	if forUpdate {
		query += " FOR UPDATE"
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, query, employeeID, string(kind))

	found, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, assignment.ErrNoCurrentAssignment
		}
		return nil, translateAssignmentPgError(err)
	}
	return found, nil
}

// ListByEmployee は社員と種別で履歴を開始日の昇順に返します。
func (r *AssignmentRepository) ListByEmployee(ctx context.Context, employeeID string, kind assignment.Kind) ([]*assignment.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, employee_id, kind, target_id, start_date, end_date, created_at
          FROM assignments
         WHERE employee_id = $1
           AND kind = $2
         ORDER BY start_date ASC
    `, employeeID, string(kind))
	if err != nil {
		return nil, translateAssignmentPgError(err)
	}
	defer rows.Close()

	records := make([]*assignment.Record, 0)
	for rows.Next() {
		rec, err := scanAssignment(rows)
		if err != nil {
			return nil, translateAssignmentPgError(err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, translateAssignmentPgError(err)
	}

	return records, nil
}

func scanAssignment(row pgx.Row) (*assignment.Record, error) {
	var (
		id         string
		employeeID string
		kind       string
		targetID   string
		startDate  time.Time
		endDate    sql.NullTime
		createdAt  time.Time
	)

	if err := row.Scan(
		&id,
		&employeeID,
		&kind,
		&targetID,
		&startDate,
		&endDate,
		&createdAt,
	); err != nil {
		return nil, err
	}

	var endPtr *time.Time
	if endDate.Valid {
		d := dateOnly(endDate.Time)
		endPtr = &d
	}

	return &assignment.Record{
		ID:         id,
		EmployeeID: employeeID,
		Kind:       assignment.Kind(kind),
		TargetID:   targetID,
		StartDate:  dateOnly(startDate),
		EndDate:    endPtr,
		CreatedAt:  createdAt,
	}, nil
}

func translateAssignmentPgError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case assignmentUniqueViolationCode:
			switch pgErr.ConstraintName {
			case assignmentStartUniqueConstraint:
				return assignment.ErrDuplicateEffectiveDate
			case assignmentSingleCurrentConstraint:
				return assignment.ErrConcurrentModification
			default:
				return err
			}
		case assignmentForeignKeyViolationCode:
			return assignment.ErrEmployeeNotFound
		case assignmentCheckViolationCode:
			return assignment.ErrInvalidDateRange
		}
	}

	return err
}

func dateOnly(value time.Time) time.Time {
	t := value.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nullableDate(value *time.Time) any {
	if value == nil {
		return nil
	}
	return dateOnly(*value)
}

var _ assignment.Repository = (*AssignmentRepository)(nil)
