package core

import "errors"

var (
	// ErrInputMissing indicates that an input artifact does not exist.
	ErrInputMissing = errors.New("input file not found")
	// ErrEngine indicates that the external audio engine failed.
	ErrEngine = errors.New("audio engine failed")
)
