package employee

import (
	"context"
	"strconv"
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

// Authorizer は閲覧可否と権限の判定を提供します。auth.Gate が実装します。
type Authorizer interface {
	CanRead(session *auth.Session, employeeID string) bool
	HasCapability(session *auth.Session, capability auth.Capability) bool
}

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
)

// Service は社員レコードに関するユースケースをまとめます。
type Service struct {
	repo  Repository
	authz Authorizer
	clock Clock
}

// UseCase は社員ユースケースの公開インターフェースです。
type UseCase interface {
	CreateEmployee(ctx context.Context, session *auth.Session, in CreateEmployeeInput) (*Employee, error)
	GetEmployee(ctx context.Context, session *auth.Session, id string) (*Employee, error)
	ListEmployees(ctx context.Context, session *auth.Session, in ListEmployeesInput) (*ListEmployeesResult, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, authz Authorizer, clock Clock) *Service {
	if clock == nil {
		clock = realClock{}
	}
	return &Service{repo: repo, authz: authz, clock: clock}
}

// CreateEmployeeInput は社員作成時の入力です。
type CreateEmployeeInput struct {
	ID            string
	CurrentSalary int64
	Status        *Status
}

// ListEmployeesInput は一覧取得時の入力です。
type ListEmployeesInput struct {
	PageSize  int
	PageToken string
	Status    *Status
}

// ListEmployeesResult は一覧取得結果を表します。
type ListEmployeesResult struct {
	Employees     []*Employee
	NextPageToken string
}

// CreateEmployee は新しい社員レコードを作成します。
func (s *Service) CreateEmployee(ctx context.Context, session *auth.Session, in CreateEmployeeInput) (*Employee, error) {
	if !s.authz.HasCapability(session, auth.CapabilityCreateEmployee) {
		return nil, ErrNotAuthorized
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, ErrInvalidID
	}
	if in.CurrentSalary < 0 {
		return nil, ErrInvalidSalary
	}

	status := StatusActive
	if in.Status != nil {
		if !isValidStatus(*in.Status) {
			return nil, ErrInvalidStatus
		}
		status = *in.Status
	}

	now := s.clock.Now()
	created, err := s.repo.Create(ctx, &Employee{
		ID:            id,
		CurrentSalary: in.CurrentSalary,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// GetEmployee は社員を取得します。閲覧可否は session の役割と紐付けで決まります。
func (s *Service) GetEmployee(ctx context.Context, session *auth.Session, id string) (*Employee, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidID
	}

	if !s.authz.CanRead(session, id) {
		return nil, ErrNotAuthorized
	}

	return s.repo.FindByID(ctx, id)
}

// ListEmployees は社員の一覧を取得します。全件閲覧権限が必要です。
func (s *Service) ListEmployees(ctx context.Context, session *auth.Session, in ListEmployeesInput) (*ListEmployeesResult, error) {
	if !s.authz.HasCapability(session, auth.CapabilityViewAllEmployees) {
		return nil, ErrNotAuthorized
	}

	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	var statusPtr *Status
	if in.Status != nil {
		if !isValidStatus(*in.Status) {
			return nil, ErrInvalidStatus
		}
		status := *in.Status
		statusPtr = &status
	}

	employees, nextToken, err := s.repo.List(ctx, ListEmployeesFilter{
		Status: statusPtr,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}

	return &ListEmployeesResult{Employees: employees, NextPageToken: nextToken}, nil
}

func isValidStatus(status Status) bool {
	switch status {
	case StatusActive, StatusInactive:
		return true
	default:
		return false
	}
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return defaultListPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}
