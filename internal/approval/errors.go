package approval

import (
	"errors"

	"github.com/MrJamesThe3rd/outlay/internal/validation"
)

var (
	ErrNotFound              = errors.New("approval rule not found")
	ErrInvalidState          = errors.New("expense is not in a state that allows this action")
	ErrNotAuthorizedApprover = errors.New("user is not a current approver for this expense")
	ErrNoApprovalPath        = errors.New("no approval rule matched and submitter has no manager")
)

// ValidationError reports rejected input. It matches validation.ErrValidation.
type ValidationError = validation.Error
