package services

import "errors"

var (
	// ErrInvalidRange is returned when a turn ends before it starts
	ErrInvalidRange = errors.New("end_ms must be >= start_ms")

	// ErrInvalidParameter is returned for malformed turn input
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrCollaborator is returned when reply generation or speech synthesis fails
	// and no safe default exists
	ErrCollaborator = errors.New("collaborator failed")
)
