package auth

import "errors"

var (
	ErrInvalidCredentials     = errors.New("auth: invalid username or password")
	ErrNotAuthorized          = errors.New("auth: not authorized")
	ErrInvalidUsername        = errors.New("auth: invalid username")
	ErrWeakSecret             = errors.New("auth: secret does not meet minimum length")
	ErrInvalidRole            = errors.New("auth: invalid role")
	ErrCredentialNotFound     = errors.New("auth: credential not found")
	ErrUsernameAlreadyExists  = errors.New("auth: username already exists")
	ErrLinkedEmployeeNotFound = errors.New("auth: linked employee not found")
	ErrAdminAlreadyExists     = errors.New("auth: an active admin credential already exists")
)
