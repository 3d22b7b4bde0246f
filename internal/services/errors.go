package services

import "errors"

// Dataset service errors
var (
	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrNoDataset       = errors.New("no dataset has been uploaded in this session")

	// Input errors
	ErrInvalidInput   = errors.New("invalid input")
	ErrEmptyUpload    = errors.New("upload is empty")
	ErrUploadTooLarge = errors.New("upload exceeds the size limit")

	// General errors
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
