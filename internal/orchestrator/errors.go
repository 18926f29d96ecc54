package orchestrator

import (
	"errors"
	"fmt"

	"github.com/transcribot/transcribot/internal/quota"
)

// Kind groups failures by how they are handled
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindQuotaExceeded
	KindExternalService
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindExternalService:
		return "external_service"
	default:
		return "internal"
	}
}

// Code identifies the specific failure
type Code string

const (
	CodeUnsupportedFormat   Code = "unsupported_format"
	CodeFileTooLarge        Code = "file_too_large"
	CodeDailyLimitReached   Code = "daily_limit_reached"
	CodeConversionFailed    Code = "conversion_failed"
	CodeTranscriptionFailed Code = "transcription_failed"
	CodeTranslationFailed   Code = "translation_failed"
	CodeInternal            Code = "internal"
)

// Error is the only error type that leaves the orchestrator
type Error struct {
	Kind     Kind
	Code     Code
	Language string // set for CodeTranslationFailed
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Language != "" {
		msg += "(" + e.Language + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code Code, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func validationError(code Code, format string, args ...interface{}) *Error {
	return newError(KindValidation, code, fmt.Errorf(format, args...))
}

// Classify maps any error onto an *Error. Unknown errors are internal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}

	var le *quota.LimitError
	if errors.As(err, &le) {
		return newError(KindQuotaExceeded, CodeDailyLimitReached, err)
	}

	return newError(KindInternal, CodeInternal, err)
}
