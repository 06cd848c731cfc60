package planapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"truckplanner/internal/models"
)

// APIError is a non-success response from the planning backend.
type APIError struct {
	Status int
	Detail string
	Body   string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend error %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Body)
}

type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s response: %v", e.Op, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

type PresignError struct{ Err error }

func (e *PresignError) Error() string  { return fmt.Sprintf("presign request failed: %v", e.Err) }
func (e *PresignError) Unwrap() error  { return e.Err }
func (e *PresignError) Detail() string { return detailOf(e.Err) }

// UploadError is a failed direct transfer to blob storage.
type UploadError struct {
	Status int
	Body   string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Status == 0 && e.Err != nil {
		return fmt.Sprintf("S3 upload failed: %v", e.Err)
	}
	return fmt.Sprintf("S3 upload failed: %d %s", e.Status, e.Body)
}

func (e *UploadError) Unwrap() error { return e.Err }

const genericPreviewMessage = "preview request failed"

type PreviewError struct{ Err error }

func (e *PreviewError) Error() string {
	if d := detailOf(e.Err); d != "" {
		return d
	}
	if e.Err == nil {
		return genericPreviewMessage
	}
	return fmt.Sprintf("%s: %v", genericPreviewMessage, e.Err)
}
func (e *PreviewError) Unwrap() error  { return e.Err }
func (e *PreviewError) Detail() string { return detailOf(e.Err) }

type OptimizeError struct{ Err error }

func (e *OptimizeError) Error() string  { return fmt.Sprintf("optimize request failed: %v", e.Err) }
func (e *OptimizeError) Unwrap() error  { return e.Err }
func (e *OptimizeError) Detail() string { return detailOf(e.Err) }

type ExportError struct {
	Kind models.ExportKind
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s failed: %v", e.Kind, e.Err)
}
func (e *ExportError) Unwrap() error  { return e.Err }
func (e *ExportError) Detail() string { return detailOf(e.Err) }

func detailOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// Message extracts the text shown to the user: collaborator detail first,
// then the error message, then a plain string conversion.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var d interface{ Detail() string }
	if errors.As(err, &d) {
		if s := strings.TrimSpace(d.Detail()); s != "" {
			return s
		}
	}
	if s := err.Error(); s != "" {
		return s
	}
	return fmt.Sprint(err)
}

// parseDetail reads FastAPI's {"detail": ...}; list details are re-encoded.
func parseDetail(body []byte) string {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		return s
	}
	if string(env.Detail) == "null" {
		return ""
	}
	return string(env.Detail)
}

type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindClient     ErrorKind = "client"
	KindServer     ErrorKind = "server"
	KindTransport  ErrorKind = "transport"
	KindDecode     ErrorKind = "decode"
	KindValidation ErrorKind = "validation"
	KindCanceled   ErrorKind = "canceled"
)

func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var (
		apiErr    *APIError
		upErr     *UploadError
		decErr    *DecodeError
		valErr    *models.ValidationError
		netErr    net.Error
		statusErr int
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &valErr):
		return KindValidation
	case errors.As(err, &decErr):
		return KindDecode
	case errors.As(err, &apiErr):
		statusErr = apiErr.Status
	case errors.As(err, &upErr) && upErr.Status != 0:
		statusErr = upErr.Status
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	default:
		return KindTransport
	}
	if statusErr >= 500 {
		return KindServer
	}
	return KindClient
}
