package expense

import (
	"errors"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
)

var (
	ErrNotFound = errors.New("expense not found")
	// ErrConflict means the expense changed since it was read. The caller may retry.
	ErrConflict     = errors.New("expense was modified concurrently")
	ErrInvalidState = approval.ErrInvalidState
)
