package util

import (
	"errors"
	"fmt"
)

// Base error classes. Services wrap these with fmt.Errorf("...: %w", ...)
// so controllers can map them to HTTP statuses with errors.Is.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrValidation       = errors.New("validation failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("operation conflict")
	ErrIntegrity        = errors.New("content verification failed")
)

// Named preconditions built on the base classes.
var (
	ErrPaperNotFound        = fmt.Errorf("paper not found: %w", ErrNotFound)
	ErrVersionNotFound      = fmt.Errorf("version not found: %w", ErrNotFound)
	ErrRequestNotFound      = fmt.Errorf("approval request not found: %w", ErrNotFound)
	ErrLogEntryNotFound     = fmt.Errorf("security log entry not found: %w", ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("user not found: %w", ErrNotFound)
	ErrEmailRegistered      = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrAlreadySubmitted     = fmt.Errorf("paper is already awaiting approval: %w", ErrConflict)
	ErrNotAwaitingApproval  = fmt.Errorf("paper is not awaiting approval: %w", ErrConflict)
	ErrAlreadyDecided       = fmt.Errorf("approval request already decided: %w", ErrConflict)
	ErrVersionNumberRace    = fmt.Errorf("version number already claimed: %w", ErrConflict)
	ErrNotApprover          = fmt.Errorf("only the assigned approver may act on this request: %w", ErrPermissionDenied)
	ErrNotCreator           = fmt.Errorf("only the paper creator may act on it: %w", ErrPermissionDenied)
	ErrNotApproved          = fmt.Errorf("paper must be approved before publishing: %w", ErrConflict)
	ErrInvestigationStarted = fmt.Errorf("investigation already started: %w", ErrConflict)
	ErrNotInvestigating     = fmt.Errorf("entry is not under investigation: %w", ErrConflict)
)
