package dataprocessing

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindMissingRequiredField ErrorKind = "missing_required_field"
	KindUnsupportedFormat    ErrorKind = "unsupported_format"
	KindDecode               ErrorKind = "decode"
	KindCoordinateType       ErrorKind = "coordinate_type"
	KindDatasetTooLarge      ErrorKind = "dataset_too_large"
	KindGenericProcessing    ErrorKind = "generic_processing"
)

// Pipeline stage names used in errors, logs and spans.
const (
	StageDecode     = "decode"
	StageValidate   = "validate"
	StagePrepare    = "prepare"
	StageAggregate  = "aggregate"
	StageCategorize = "categorize"
)

var errNilTable = errors.New("no table to process")

// ErrInvalidEncoding marks decode failures caused by bytes that are not UTF-8.
var ErrInvalidEncoding = errors.New("invalid UTF-8 encoding")

// PipelineError is the single error type returned by the pipeline. No
// partial result ever accompanies it.
type PipelineError struct {
	Kind    ErrorKind `json:"kind"`
	Stage   string    `json:"stage,omitempty"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e == nil {
		return "unknown pipeline error"
	}
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Kind, e.Stage, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// UserMessage is the fixed text shown to the person who uploaded the file.
func (e *PipelineError) UserMessage() string {
	switch e.Kind {
	case KindMissingRequiredField:
		return fmt.Sprintf("Source data does not have '%s' column.", e.Field)
	case KindUnsupportedFormat:
		return "The source file is not a valid CSV format."
	case KindDecode:
		if errors.Is(e.Cause, ErrInvalidEncoding) {
			return "There was a UnicodeDecode error processing this file."
		}
		return "There was an error processing this file."
	case KindDatasetTooLarge:
		return "The dataset is too large to process. " + e.Message
	default:
		return "There was an error processing this file."
	}
}

// MissingRequiredFieldError reports a required coordinate column that is absent.
func MissingRequiredFieldError(field string) *PipelineError {
	return &PipelineError{
		Kind:    KindMissingRequiredField,
		Stage:   StageValidate,
		Field:   field,
		Message: fmt.Sprintf("required field %q is missing", field),
	}
}

// UnsupportedFormatError reports an upload whose name matches no decoder.
func UnsupportedFormatError(filename string) *PipelineError {
	return &PipelineError{
		Kind:    KindUnsupportedFormat,
		Stage:   StageDecode,
		Message: fmt.Sprintf("unsupported file type %q", filename),
	}
}

// DecodeError reports undecodable upload bytes.
func DecodeError(message string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindDecode,
		Stage:   StageDecode,
		Message: message,
		Cause:   cause,
	}
}

// CoordinateTypeError reports a coordinate column with no numeric cell.
func CoordinateTypeError(field string) *PipelineError {
	return &PipelineError{
		Kind:    KindCoordinateType,
		Stage:   StageValidate,
		Field:   field,
		Message: fmt.Sprintf("field %q cannot be interpreted as numbers", field),
	}
}

// DatasetTooLargeError reports a dataset over the record limit or the time budget.
func DatasetTooLargeError(message string) *PipelineError {
	return &PipelineError{
		Kind:    KindDatasetTooLarge,
		Stage:   StageAggregate,
		Message: message,
	}
}

// GenericProcessingError wraps any other failure.
func GenericProcessingError(stage string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindGenericProcessing,
		Stage:   stage,
		Message: "processing failed",
		Cause:   cause,
	}
}

// KindOf returns the kind of a pipeline error, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var pErr *PipelineError
	if errors.As(err, &pErr) {
		return pErr.Kind
	}
	return ""
}

// AsPipelineError returns err as a PipelineError, wrapping unknown errors as
// generic processing failures of stage.
func AsPipelineError(err error, stage string) *PipelineError {
	if err == nil {
		return nil
	}
	var pErr *PipelineError
	if errors.As(err, &pErr) {
		return pErr
	}
	return GenericProcessingError(stage, err)
}
