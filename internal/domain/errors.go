package domain

import (
	"fmt"
	"time"
)

type Code string

const (
	CodeValidation        Code = "validation"
	CodeInsufficientFunds Code = "insufficient_funds"
	CodeInsufficientBank  Code = "insufficient_bank"
	CodeItemNotFound      Code = "item_not_found"
	CodeOutOfStock        Code = "out_of_stock"
	CodeCooldownActive    Code = "cooldown_active"
	CodePermissionDenied  Code = "permission_denied"
	CodePlatform          Code = "platform"
)

// Error is an economy error. Two errors match under errors.Is when their codes match.
type Error struct {
	Code      Code
	Message   string
	Remaining time.Duration // set for CodeCooldownActive
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

var (
	ErrValidation        = &Error{Code: CodeValidation, Message: "invalid arguments"}
	ErrInsufficientFunds = &Error{Code: CodeInsufficientFunds, Message: "not enough coins"}
	ErrInsufficientBank  = &Error{Code: CodeInsufficientBank, Message: "not enough in bank"}
	ErrItemNotFound      = &Error{Code: CodeItemNotFound, Message: "item not found"}
	ErrOutOfStock        = &Error{Code: CodeOutOfStock, Message: "out of stock"}
	ErrCooldownActive    = &Error{Code: CodeCooldownActive, Message: "cooldown active"}
	ErrPermissionDenied  = &Error{Code: CodePermissionDenied, Message: "permission denied"}
	ErrPlatform          = &Error{Code: CodePlatform, Message: "platform call failed"}
)

func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

func Cooldown(kind ActionKind, remaining time.Duration) *Error {
	return &Error{
		Code:      CodeCooldownActive,
		Message:   fmt.Sprintf("%s cooldown active", kind),
		Remaining: remaining,
	}
}

func Platform(message string, cause error) *Error {
	return &Error{Code: CodePlatform, Message: message, Cause: cause}
}
