package service

import (
	"errors"
	"fmt"
	"net/http"
)

// FailCode is the machine-readable error taxonomy surfaced to callers.
type FailCode string

const (
	CodeValidation           FailCode = "VALIDATION_ERROR"
	CodeUpstreamSubmission   FailCode = "UPSTREAM_SUBMISSION_FAILED"
	CodeWebhookMalformed     FailCode = "WEBHOOK_MALFORMED"
	CodeRunNotMapped         FailCode = "RUN_NOT_MAPPED"
	CodeJobNotFound          FailCode = "JOB_NOT_FOUND"
	CodeUpstreamNotSucceeded FailCode = "UPSTREAM_NOT_SUCCEEDED"
	CodeDatasetFetch         FailCode = "DATASET_FETCH_ERROR"
	CodeDatasetEmpty         FailCode = "DATASET_EMPTY_AFTER_RETRY"
	CodeStage2Submission     FailCode = "STAGE2_SUBMISSION_FAILED"
	CodeStage2NoRunID        FailCode = "STAGE2_NO_RUN_ID"
	CodeInternal             FailCode = "INTERNAL_ERROR"
)

var httpStatusByCode = map[FailCode]int{
	CodeValidation:           http.StatusBadRequest,
	CodeUpstreamSubmission:   http.StatusBadGateway,
	CodeWebhookMalformed:     http.StatusBadRequest,
	CodeRunNotMapped:         http.StatusNotFound,
	CodeJobNotFound:          http.StatusNotFound,
	CodeUpstreamNotSucceeded: http.StatusConflict,
	CodeDatasetFetch:         http.StatusBadGateway,
	CodeDatasetEmpty:         http.StatusUnprocessableEntity,
	CodeStage2Submission:     http.StatusBadGateway,
	CodeStage2NoRunID:        http.StatusBadGateway,
	CodeInternal:             http.StatusInternalServerError,
}

// Failure is a coded error handled at the transport boundary and converted
// into a structured JSON response, never an unstructured crash.
type Failure struct {
	Code   FailCode
	Reason string
	Meta   map[string]any
	cause  error
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Code, f.Reason, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Reason)
}

func (f *Failure) Unwrap() error { return f.cause }

func (f *Failure) HTTPStatus() int {
	if s, ok := httpStatusByCode[f.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func Fail(code FailCode, reason string) *Failure {
	return &Failure{Code: code, Reason: reason}
}

func Failf(code FailCode, format string, args ...any) *Failure {
	return &Failure{Code: code, Reason: fmt.Sprintf(format, args...)}
}

func FailWrap(code FailCode, reason string, cause error) *Failure {
	return &Failure{Code: code, Reason: reason, cause: cause}
}

func (f *Failure) WithMeta(key string, value any) *Failure {
	if f.Meta == nil {
		f.Meta = make(map[string]any)
	}
	f.Meta[key] = value
	return f
}

// AsFailure extracts a Failure from an error chain; unknown errors map to
// INTERNAL_ERROR.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return FailWrap(CodeInternal, "internal error", err)
}
