// Package kcerrors provides the structured error taxonomy shared by every
// subsystem of kcjpm: manifest loading, dependency resolution, lock file
// handling, the compilation pipeline and the workspace coordinator.
//
// Every failure surfaced to a caller of this module falls into one of the
// Code values below. Codes are machine-readable so callers (a CLI, a build
// server, a test) can branch on failure kind without string matching.
package kcerrors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error category.
type Code string

// Error codes, grouped by failure category. Subkinds that need their own
// code (DependencyError's
// NotFound/VersionConflict/CycleDetected/InvalidSpec, FetchError's
// NetworkFailure/GitFailure/ChecksumMismatch/UnpackFailure) get distinct
// constants rather than a nested field, so Is(err, Code) dispatch stays
// flat.
const (
	ErrCodeManifest    Code = "MANIFEST_ERROR"
	ErrCodeValidation  Code = "VALIDATION_ERROR"
	ErrCodeConfig      Code = "CONFIG_ERROR"
	ErrCodeIO          Code = "IO_ERROR"

	ErrCodeDependencyNotFound  Code = "DEPENDENCY_NOT_FOUND"
	ErrCodeVersionConflict     Code = "DEPENDENCY_VERSION_CONFLICT"
	ErrCodeCycleDetected       Code = "DEPENDENCY_CYCLE_DETECTED"
	ErrCodeInvalidDepSpec      Code = "DEPENDENCY_INVALID_SPEC"

	ErrCodeNetworkFailure   Code = "FETCH_NETWORK_FAILURE"
	ErrCodeGitFailure       Code = "FETCH_GIT_FAILURE"
	ErrCodeChecksumMismatch Code = "FETCH_CHECKSUM_MISMATCH"
	ErrCodeUnpackFailure    Code = "FETCH_UNPACK_FAILURE"
	ErrCodeDownloadFailure  Code = "FETCH_DOWNLOAD_FAILURE"

	ErrCodeLockSchema     Code = "LOCK_SCHEMA_MISMATCH"
	ErrCodeLockCorrupt    Code = "LOCK_CORRUPT"
	ErrCodeLockValidation Code = "LOCK_VALIDATION_FAILED"

	ErrCodeCompile Code = "COMPILE_ERROR"

	ErrCodeBuildScript Code = "BUILD_SCRIPT_ERROR"

	ErrCodeWorkspace Code = "WORKSPACE_ERROR"

	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error carrying a machine-readable Code, a
// human-readable Message and an optional wrapped Cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, enabling errors.Is/As to see through it.
func (e *Error) Unwrap() error { return e.Cause }

// New creates an *Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given code and message, wrapping cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the Code from err, or "" if err is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
