package model

import "errors"

// Failure taxonomy shared by the repository and the HTTP layer. Callers wrap
// these with context and check with errors.Is.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
