package payroll

import "errors"

var (
	ErrNotAuthorized          = errors.New("payroll: not authorized")
	ErrInvalidSalaryRange     = errors.New("payroll: invalid salary range")
	ErrInvalidPercent         = errors.New("payroll: percent out of allowed range")
	ErrNoEmployeesInRange     = errors.New("payroll: no employees in range")
	ErrConcurrentModification = errors.New("payroll: concurrent modification detected")
)
