package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/hr-records/internal/core/employee"
	"github.com/ogurasousui/hr-records/internal/core/payroll"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

type stubRow struct {
	scanFn func(dest ...interface{}) error
}

func (s stubRow) Scan(dest ...interface{}) error {
	return s.scanFn(dest...)
}

func TestScanEmployee_Success(t *testing.T) {
	t.Parallel()

	createdAt := time.Now().UTC()
	updatedAt := createdAt.Add(time.Minute)

	row := stubRow{scanFn: func(dest ...interface{}) error {
		if len(dest) != 5 {
			return errors.New("unexpected dest length")
		}
		*(dest[0].(*string)) = "emp-1"
		*(dest[1].(*int64)) = 50000
		*(dest[2].(*string)) = string(employee.StatusActive)
		*(dest[3].(*time.Time)) = createdAt
		*(dest[4].(*time.Time)) = updatedAt
		return nil
	}}

	emp, err := scanEmployee(row)
	if err != nil {
		t.Fatalf("scanEmployee returned error: %v", err)
	}

	if emp.ID != "emp-1" || emp.CurrentSalary != 50000 {
		t.Fatalf("unexpected employee: %+v", emp)
	}
	if emp.Status != employee.StatusActive {
		t.Fatalf("unexpected status: %s", emp.Status)
	}
}

func TestScanEmployee_NoRows(t *testing.T) {
	t.Parallel()

	row := stubRow{scanFn: func(dest ...interface{}) error {
		return pgx.ErrNoRows
	}}

	_, err := scanEmployee(row)
	if !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
}

func TestTranslateEmployeePgError(t *testing.T) {
	t.Parallel()

	uniqueErr := &pgconn.PgError{Code: employeeUniqueViolationCode}
	if !errors.Is(translateEmployeePgError(uniqueErr), employee.ErrEmployeeAlreadyExists) {
		t.Fatalf("expected unique violation to map to ErrEmployeeAlreadyExists")
	}

	checkErr := &pgconn.PgError{Code: employeeCheckViolationCode}
	if !errors.Is(translateEmployeePgError(checkErr), employee.ErrInvalidSalary) {
		t.Fatalf("expected check violation to map to ErrInvalidSalary")
	}

	other := errors.New("other")
	if translateEmployeePgError(other) != other {
		t.Fatalf("unexpected translation for generic error")
	}
}

func TestEmployeeRepository_List_Pagination(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "current_salary", "status", "created_at", "updated_at"}).
		AddRow("emp-1", int64(40000), "active", now, now).
		AddRow("emp-2", int64(50000), "active", now, now).
		AddRow("emp-3", int64(60000), "active", now, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, current_salary, status, created_at, updated_at")).
		WithArgs(3, 0).
		WillReturnRows(rows)

	employees, nextToken, err := repo.List(context.Background(), employee.ListEmployeesFilter{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(employees) != 2 {
		t.Fatalf("expected 2 employees, got %d", len(employees))
	}
	if nextToken != "2" {
		t.Fatalf("expected next token 2, got %q", nextToken)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmployeeRepository_List_StatusFilter(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "current_salary", "status", "created_at", "updated_at"}).
		AddRow("emp-9", int64(30000), "inactive", now, now)

	mock.ExpectQuery("WHERE status").
		WithArgs("inactive", 51, 0).
		WillReturnRows(rows)

	inactive := employee.StatusInactive
	employees, nextToken, err := repo.List(context.Background(), employee.ListEmployeesFilter{Status: &inactive, Limit: 50, Offset: 0})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(employees) != 1 || nextToken != "" {
		t.Fatalf("expected single page, got %d / %q", len(employees), nextToken)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmployeeRepository_ListActiveInSalaryRange(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)

	rows := pgxmock.NewRows([]string{"id", "current_salary"}).
		AddRow("emp-1", int64(60000)).
		AddRow("emp-2", int64(70000))

	mock.ExpectQuery("FOR UPDATE").
		WithArgs("active", int64(55000), int64(80000)).
		WillReturnRows(rows)

	targets, err := repo.ListActiveInSalaryRange(context.Background(), 55000, 80000)
	if err != nil {
		t.Fatalf("ListActiveInSalaryRange returned error: %v", err)
	}
	if len(targets) != 2 || targets[0].ID != "emp-1" || targets[1].Salary != 70000 {
		t.Fatalf("unexpected targets: %+v", targets)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmployeeRepository_UpdateSalary_Missing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE employees").
		WithArgs("emp-404", int64(1234), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdateSalary(context.Background(), "emp-404", 1234, now)
	if !errors.Is(err, payroll.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
