package assignment

import "errors"

var (
	ErrNotAuthorized              = errors.New("assignment: not authorized")
	ErrInvalidEmployeeID          = errors.New("assignment: invalid employee id")
	ErrInvalidTargetID            = errors.New("assignment: invalid target id")
	ErrInvalidKind                = errors.New("assignment: invalid kind")
	ErrInvalidEffectiveDate       = errors.New("assignment: invalid effective date")
	ErrEffectiveDateBeforeCurrent = errors.New("assignment: effective date precedes current assignment start")
	ErrDuplicateEffectiveDate     = errors.New("assignment: duplicate effective date")
	ErrInvalidDateRange           = errors.New("assignment: end date precedes start date")
	ErrNoCurrentAssignment        = errors.New("assignment: no current assignment")
	ErrEmployeeNotFound           = errors.New("assignment: employee not found")
	ErrConcurrentModification     = errors.New("assignment: concurrent modification detected")
)
