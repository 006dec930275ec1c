package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/hr-records/internal/core/employee"
	"github.com/ogurasousui/hr-records/internal/core/payroll"
	pgdb "github.com/ogurasousui/hr-records/internal/platform/db/postgres"
)

const (
	employeeUniqueViolationCode = "23505"
	employeeCheckViolationCode  = "23514"
)

// EmployeeRepository は PostgreSQL を利用した社員永続化の実装です。
// employee.Repository と payroll.Repository の両方を満たします。
type EmployeeRepository struct {
	pool pgdb.Queryer
}

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(pool pgdb.Queryer) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// Create は社員を新規作成します。
func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO employees (id, current_salary, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, current_salary, status, created_at, updated_at
    `,
		e.ID,
		e.CurrentSalary,
		string(e.Status),
		e.CreatedAt,
		e.UpdatedAt,
	)

	created, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return created, nil
}

// FindByID は ID で社員を取得します。
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, current_salary, status, created_at, updated_at
          FROM employees
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// List は社員の一覧を取得します。
func (r *EmployeeRepository) List(ctx context.Context, filter employee.ListEmployeesFilter) ([]*employee.Employee, string, error) {
	if filter.Limit <= 0 {
		return nil, "", employee.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", employee.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 3)
	whereClause := ""
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		whereClause = " WHERE status = $1"
	}

	limitPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, limitWithBuffer)
	offsetPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, filter.Offset)

	query := `
        SELECT id, current_salary, status, created_at, updated_at
          FROM employees` + whereClause + `
         ORDER BY id ASC
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder + `
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateEmployeePgError(err)
	}
	defer rows.Close()

	employees := make([]*employee.Employee, 0, filter.Limit)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, "", translateEmployeePgError(err)
		}
		employees = append(employees, emp)
	}

	if err := rows.Err(); err != nil {
		return nil, "", translateEmployeePgError(err)
	}

	var nextToken string
	if len(employees) == limitWithBuffer {
		employees = employees[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	return employees, nextToken, nil
}

// ListActiveInSalaryRange は在籍中かつ給与が範囲内の社員を id 昇順・行ロック付きで返します。
// 呼び出しはトランザクション内で行う前提です。
func (r *EmployeeRepository) ListActiveInSalaryRange(ctx context.Context, minSalary, maxSalary int64) ([]*payroll.Target, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, current_salary
          FROM employees
         WHERE status = $1
           AND current_salary BETWEEN $2 AND $3
         ORDER BY id ASC
           FOR UPDATE
    `, string(employee.StatusActive), minSalary, maxSalary)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	targets := make([]*payroll.Target, 0)
	for rows.Next() {
		var t payroll.Target
		if err := rows.Scan(&t.ID, &t.Salary); err != nil {
			return nil, err
		}
		targets = append(targets, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return targets, nil
}

// UpdateSalary は社員の給与を更新します。行が消えていた場合は ErrConcurrentModification を返します。
func (r *EmployeeRepository) UpdateSalary(ctx context.Context, id string, newSalary int64, updatedAt time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE employees
           SET current_salary = $2,
               updated_at = $3
         WHERE id = $1
    `, id, newSalary, updatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == employeeCheckViolationCode {
			return payroll.ErrInvalidSalaryRange
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrConcurrentModification
	}
	return nil
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var (
		id        string
		salary    int64
		status    string
		createdAt time.Time
		updatedAt time.Time
	)

	if err := row.Scan(&id, &salary, &status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrEmployeeNotFound
		}
		return nil, err
	}

	return &employee.Employee{
		ID:            id,
		CurrentSalary: salary,
		Status:        employee.Status(status),
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

func translateEmployeePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return employee.ErrEmployeeNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case employeeUniqueViolationCode:
			return employee.ErrEmployeeAlreadyExists
		case employeeCheckViolationCode:
			return employee.ErrInvalidSalary
		}
	}

	return err
}

var _ interface {
	employee.Repository
	payroll.Repository
} = (*EmployeeRepository)(nil)
