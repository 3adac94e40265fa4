package validation

import "errors"

var (
	ErrNotAnImage   = errors.New("payload is not a supported image")
	ErrFileTooLarge = errors.New("file size exceeds upload limit")
	ErrEmptyFile    = errors.New("empty file")
)
