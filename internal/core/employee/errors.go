package employee

import "errors"

var (
	ErrNotAuthorized         = errors.New("employee: not authorized")
	ErrInvalidID             = errors.New("employee: invalid id")
	ErrInvalidSalary         = errors.New("employee: invalid salary")
	ErrInvalidStatus         = errors.New("employee: invalid status")
	ErrInvalidPageSize       = errors.New("employee: invalid page size")
	ErrInvalidPageToken      = errors.New("employee: invalid page token")
	ErrEmployeeNotFound      = errors.New("employee: not found")
	ErrEmployeeAlreadyExists = errors.New("employee: already exists")
)
