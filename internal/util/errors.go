package util

import "errors"

var (
	ErrNoFileSelected = errors.New("no file selected")
	ErrNotUploaded    = errors.New("file has not been uploaded")
	ErrNoPreview      = errors.New("preview has not been generated")
	ErrMissingColumns = errors.New("required columns are missing")
	ErrStale          = errors.New("superseded by a newer file selection")
	ErrFieldDisabled  = errors.New("field is disabled")
	ErrUnknownField   = errors.New("unknown configuration field")
	ErrInProgress     = errors.New("already in progress")
)
