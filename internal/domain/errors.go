package domain

import "errors"

// Upload and validation errors. Each maps to one HTTP status and message at
// the handler boundary.
var (
	ErrMissingFile   = errors.New("missing required image")
	ErrEmptyFilename = errors.New("no selected file")
	ErrPersistence   = errors.New("file not found after saving")
	ErrDecode        = errors.New("invalid image format")
	ErrProcessing    = errors.New("error processing file with model")
)
