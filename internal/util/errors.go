package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found in document")
	ErrRevisionConflict  = errors.New("bid revision conflict")
	ErrNotFound          = errors.New("record not found")
)
