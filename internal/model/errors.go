package model

import "errors"

// Code identifies a member of the ocrlocate error taxonomy. Each Code maps
// to a fixed recovery policy: per-file codes are logged and skipped by the
// pipeline, structural codes abort the run.
type Code string

const (
	CodeInvalidLanguage  Code = "invalid_language"
	CodeOcrInit          Code = "ocr_init"
	CodeOcrRuntime       Code = "ocr_runtime"
	CodeDecodeFailed     Code = "decode_failed"
	CodeSchemaTooNew     Code = "schema_too_new"
	CodeSchemaPreRelease Code = "schema_pre_release"
	CodeStoreWrite       Code = "store_write"
	CodeStoreRead        Code = "store_read"
	CodeNotADirectory    Code = "not_a_directory"
	CodeQueryParse       Code = "query_parse"
	CodeWalkError        Code = "walk_error"
	CodeMetadataMissing  Code = "metadata_missing"
)

// TaggedError carries a taxonomy Code alongside a human message and an
// optional underlying cause, the same shared-struct-per-taxonomy shape the
// teacher uses for its provider error taxonomy.
type TaggedError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *TaggedError) Error() string {
	if e == nil {
		return "<nil TaggedError>"
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

func (e *TaggedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is lets errors.Is(err, model.ErrSchemaTooNew) work by comparing Codes,
// so any *TaggedError target with the same Code matches regardless of
// its Message or Cause.
func (e *TaggedError) Is(target error) bool {
	var other *TaggedError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

func NewError(code Code, message string, cause error) *TaggedError {
	return &TaggedError{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is comparisons against a bare code, e.g.
// errors.Is(err, model.ErrSchemaTooNew).
var (
	ErrInvalidLanguage  = &TaggedError{Code: CodeInvalidLanguage}
	ErrOcrInit          = &TaggedError{Code: CodeOcrInit}
	ErrOcrRuntime       = &TaggedError{Code: CodeOcrRuntime}
	ErrDecodeFailed     = &TaggedError{Code: CodeDecodeFailed}
	ErrSchemaTooNew     = &TaggedError{Code: CodeSchemaTooNew}
	ErrSchemaPreRelease = &TaggedError{Code: CodeSchemaPreRelease}
	ErrStoreWrite       = &TaggedError{Code: CodeStoreWrite}
	ErrStoreRead        = &TaggedError{Code: CodeStoreRead}
	ErrNotADirectory    = &TaggedError{Code: CodeNotADirectory}
	ErrQueryParse       = &TaggedError{Code: CodeQueryParse}
	ErrWalkError        = &TaggedError{Code: CodeWalkError}
	ErrMetadataMissing  = &TaggedError{Code: CodeMetadataMissing}
)
